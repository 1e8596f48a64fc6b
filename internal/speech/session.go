package speech

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/tts"
)

// Stats describes one Speak call.
type Stats struct {
	TextChunks  int
	AudioChunks int
	// Err is the synthesis failure that cut audio short, if any.
	Err error
}

// Session speaks text through a synthesizer into a Worker. A nil synthesizer
// runs text-only.
type Session struct {
	synth  tts.Synthesizer
	worker *Worker
	log    *logrus.Logger
}

func NewSession(synth tts.Synthesizer, worker *Worker, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{synth: synth, worker: worker, log: log}
}

func (s *Session) Worker() *Worker { return s.worker }

// Speak forwards every chunk to the synthesizer as it arrives while a second
// goroutine moves audio onto the playback queue. It returns once both sides
// are done. Failures are logged, never returned, and chunks is always drained.
func (s *Session) Speak(ctx context.Context, chunks <-chan string) Stats {
	var st Stats
	if s.synth == nil || s.worker == nil {
		st.TextChunks = drain(chunks)
		return st
	}
	s.worker.Start()

	stream, err := s.synth.Connect(ctx)
	if err != nil {
		s.log.WithError(err).Warn("speech synthesis unavailable; continuing without audio")
		st.TextChunks = drain(chunks)
		st.Err = err
		return st
	}
	defer stream.Close()

	g, gctx := errgroup.WithContext(ctx)
	// unblocks Receive when the other side fails or ctx is cancelled
	stop := context.AfterFunc(gctx, func() { _ = stream.Close() })
	defer stop()

	g.Go(func() error {
		for chunk := range chunks {
			if chunk == "" {
				continue
			}
			if err := stream.SendText(gctx, chunk); err != nil {
				st.TextChunks += 1 + drain(chunks)
				return err
			}
			st.TextChunks++
		}
		return stream.Flush(gctx)
	})

	g.Go(func() error {
		for {
			msg, err := stream.Receive(gctx)
			if err != nil {
				return err
			}
			if len(msg.Audio) > 0 {
				if err := s.worker.Enqueue(gctx, msg.Audio); err != nil {
					return err
				}
				st.AudioChunks++
			}
			if msg.Final {
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		st.Err = err
		s.log.WithError(err).WithFields(logrus.Fields{
			"text_chunks":  st.TextChunks,
			"audio_chunks": st.AudioChunks,
		}).Warn("speech stream failed; continuing without audio")
	}
	return st
}

// SpeakText speaks a fixed string, sent a few words at a time.
func (s *Session) SpeakText(ctx context.Context, text string) Stats {
	parts := ChunkWords(text, 5)
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return s.Speak(ctx, ch)
}

// SpeakPrompt streams a completion into Speak and returns the generated text.
// The error is the completion failure; speech failures only show in Stats.
func (s *Session) SpeakPrompt(ctx context.Context, provider llm.Provider, msgs []llm.Message, opts ...llm.Option) (string, Stats, error) {
	chunks, errs := provider.Stream(ctx, msgs, opts...)

	var b strings.Builder
	fwd := make(chan string)
	go func() {
		defer close(fwd)
		for c := range chunks {
			b.WriteString(c)
			fwd <- c
		}
	}()

	st := s.Speak(ctx, fwd)
	err := <-errs
	return strings.TrimSpace(b.String()), st, err
}

// ChunkWords splits text into pieces of n words, each ending with a space.
func ChunkWords(text string, n int) []string {
	if n <= 0 {
		n = 1
	}
	words := strings.Fields(text)
	var out []string
	for i := 0; i < len(words); i += n {
		end := min(i+n, len(words))
		out = append(out, strings.Join(words[i:end], " ")+" ")
	}
	return out
}

func drain(ch <-chan string) int {
	n := 0
	for c := range ch {
		if c != "" {
			n++
		}
	}
	return n
}
