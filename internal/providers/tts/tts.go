package tts

import "context"

// Message is one synthesis-service reply. Final marks the end of the utterance.
type Message struct {
	Audio []byte
	Final bool
}

// Synthesizer opens duplex text-to-speech streams.
type Synthesizer interface {
	Connect(ctx context.Context) (Stream, error)
}

// Stream accepts text incrementally and yields audio as it is produced.
// SendText and Flush may be called concurrently with Receive.
type Stream interface {
	SendText(ctx context.Context, text string) error
	// Flush marks the end of the text; the service then emits the remaining
	// audio followed by a final message.
	Flush(ctx context.Context) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}
