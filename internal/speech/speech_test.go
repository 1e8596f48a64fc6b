package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/providers/llm/llmtest"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	"github.com/yoockh/yoointerview/internal/providers/tts/ttstest"
)

type recordingPlayer struct {
	mu     sync.Mutex
	played []string
	active int
	maxPar int
	fail   string
}

func (p *recordingPlayer) Play(_ context.Context, audio []byte) error {
	p.mu.Lock()
	p.active++
	if p.active > p.maxPar {
		p.maxPar = p.active
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	if string(audio) == p.fail {
		return errors.New("corrupt chunk")
	}
	p.played = append(p.played, string(audio))
	return nil
}

func (p *recordingPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func stopWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestWorkerPlaysSequentiallyInOrder(t *testing.T) {
	p := &recordingPlayer{}
	w := NewWorker(p, make(chan []byte, 2), logger.NewNop())
	w.PollInterval = 10 * time.Millisecond
	w.Start()
	w.Start()

	ctx := context.Background()
	for _, c := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, w.Enqueue(ctx, []byte(c)))
	}
	stopWorker(t, w)

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, p.Played())
	assert.Equal(t, 1, p.maxPar)
	assert.False(t, w.Running())
}

func TestWorkerSkipsFailedChunks(t *testing.T) {
	p := &recordingPlayer{fail: "bad"}
	w := NewWorker(p, make(chan []byte, 8), logger.NewNop())
	w.Start()

	ctx := context.Background()
	for _, c := range []string{"a", "bad", "b"} {
		require.NoError(t, w.Enqueue(ctx, []byte(c)))
	}
	stopWorker(t, w)

	assert.Equal(t, []string{"a", "b"}, p.Played())
}

func TestWorkerEnqueueAfterStop(t *testing.T) {
	w := NewWorker(&recordingPlayer{}, make(chan []byte, 1), logger.NewNop())
	w.Start()
	stopWorker(t, w)
	stopWorker(t, w)

	assert.ErrorIs(t, w.Enqueue(context.Background(), []byte("late")), ErrStopped)

	w.Start()
	assert.False(t, w.Running())
}

func TestWorkerEnqueueBlocksWhenFull(t *testing.T) {
	w := NewWorker(&recordingPlayer{}, make(chan []byte, 1), logger.NewNop())
	require.NoError(t, w.Enqueue(context.Background(), []byte("x")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Enqueue(ctx, []byte("y")), context.DeadlineExceeded)
}

func TestSessionSpeakPreservesAudioOrder(t *testing.T) {
	srv := ttstest.NewServer(t, []byte("A"), []byte("B"), []byte("C"))
	synth, err := tts.NewElevenLabs(tts.ElevenLabsConfig{APIKey: "k", VoiceID: "v", BaseWSURL: srv.URL})
	require.NoError(t, err)

	p := &recordingPlayer{}
	w := NewWorker(p, make(chan []byte, 4), logger.NewNop())
	s := NewSession(synth, w, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st := s.SpeakText(ctx, "Tell me about a system you designed end to end.")
	require.NoError(t, st.Err)
	assert.Equal(t, 3, st.AudioChunks)
	assert.Equal(t, 2, st.TextChunks)
	assert.Equal(t, []string{"Tell me about a system ", "you designed end to end. "}, srv.Texts())

	stopWorker(t, w)
	assert.Equal(t, []string{"A", "B", "C"}, p.Played())
}

type failingSynth struct{}

func (failingSynth) Connect(context.Context) (tts.Stream, error) {
	return nil, errors.New("connection refused")
}

func TestSessionSpeakDegradesWhenSynthesisIsDown(t *testing.T) {
	w := NewWorker(&recordingPlayer{}, nil, logger.NewNop())
	s := NewSession(failingSynth{}, w, logger.NewNop())

	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, c := range []string{"one ", "two ", "three "} {
			ch <- c
		}
	}()

	st := s.Speak(context.Background(), ch)
	assert.Error(t, st.Err)
	assert.Equal(t, 3, st.TextChunks)
	assert.Zero(t, st.AudioChunks)
	stopWorker(t, w)
}

func TestSpeakPromptReturnsGeneratedText(t *testing.T) {
	srv := ttstest.NewServer(t, []byte("pcm"))
	synth, err := tts.NewElevenLabs(tts.ElevenLabsConfig{APIKey: "k", VoiceID: "v", BaseWSURL: srv.URL})
	require.NoError(t, err)

	p := &recordingPlayer{}
	w := NewWorker(p, nil, logger.NewNop())
	s := NewSession(synth, w, logger.NewNop())

	fake := llmtest.Fixed("Great, let's move on to the next question.")
	fake.ChunkSize = 10

	text, st, err := s.SpeakPrompt(context.Background(), fake, nil)
	require.NoError(t, err)
	assert.Equal(t, "Great, let's move on to the next question.", text)
	assert.Equal(t, 5, st.TextChunks)
	assert.Equal(t, 1, st.AudioChunks)

	stopWorker(t, w)
	assert.Equal(t, []string{"pcm"}, p.Played())
}

func TestChunkWords(t *testing.T) {
	assert.Equal(t, []string{"a b ", "c "}, ChunkWords(" a  b c ", 2))
	assert.Empty(t, ChunkWords("   ", 3))
}
