package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrStopped = errors.New("speech: worker stopped")

const defaultPollInterval = time.Second

// Worker plays queued audio chunks one at a time, in queue order.
//
// The queue is injected so its capacity bounds memory: Enqueue blocks while it
// is full. A nil value on the queue is the stop sentinel; empty chunks are
// never enqueued.
type Worker struct {
	player Player
	queue  chan []byte
	log    *logrus.Logger

	// PollInterval bounds each wait on an empty queue.
	PollInterval time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	done    chan struct{}
	closing chan struct{}
}

func NewWorker(player Player, queue chan []byte, log *logrus.Logger) *Worker {
	if player == nil {
		player = DiscardPlayer{}
	}
	if queue == nil {
		queue = make(chan []byte, 64)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		player:       player,
		queue:        queue,
		log:          log,
		PollInterval: defaultPollInterval,
		closing:      make(chan struct{}),
	}
}

// Start launches the playback goroutine. Calling it again while running, or
// after Stop, does nothing.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return
	}
	w.running = true
	w.done = make(chan struct{})
	go w.loop(w.done)
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running && !w.stopped
}

// Enqueue adds a chunk to the playback queue, waiting for room when it is full.
func (w *Worker) Enqueue(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	select {
	case <-w.closing:
		return ErrStopped
	default:
	}

	select {
	case w.queue <- chunk:
		return nil
	case <-w.closing:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop pushes the stop sentinel once and waits until everything queued before
// it has been played.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	first := !w.stopped
	w.stopped = true
	running, done := w.running, w.done
	w.mu.Unlock()

	if first {
		close(w.closing)
	}
	if !running {
		return nil
	}
	if first {
		select {
		case w.queue <- nil:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(done chan struct{}) {
	defer close(done)

	poll := w.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		select {
		case chunk := <-w.queue:
			if chunk == nil {
				return
			}
			w.play(chunk)
		case <-timer.C:
		}
		timer.Reset(poll)
	}
}

func (w *Worker) play(chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Error("audio playback panicked")
		}
	}()
	if err := w.player.Play(context.Background(), chunk); err != nil {
		w.log.WithError(err).WithField("bytes", len(chunk)).Warn("audio playback failed; skipping chunk")
	}
}
