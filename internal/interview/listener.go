package interview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yoockh/yoointerview/internal/providers/stt"
)

// ErrListenTimeout ends one listen cycle that heard nothing. The driver
// simply listens again.
var ErrListenTimeout = errors.New("interview: no answer within listen window")

// ErrTranscription marks an answer that arrived but could not be turned
// into text. The driver records it as an empty answer and moves on.
var ErrTranscription = errors.New("interview: answer could not be transcribed")

type Answer struct {
	Text     string
	Duration float64 // seconds
}

// Listener collects the candidate's answer to question n (0 is the intro).
// Listen returns ErrListenTimeout when timeout elapses without an answer.
type Listener interface {
	Listen(ctx context.Context, n int, timeout time.Duration) (Answer, error)
}

// ConsoleListener reads one typed line per answer.
type ConsoleListener struct {
	lines chan string
	errs  chan error
	once  sync.Once
	in    io.Reader
	Now   func() time.Time
}

func NewConsoleListener(in io.Reader) *ConsoleListener {
	return &ConsoleListener{in: in, Now: time.Now}
}

// start reads the input on a single goroutine so a cancelled cycle never
// loses a line.
func (l *ConsoleListener) start() {
	l.once.Do(func() {
		l.lines = make(chan string)
		l.errs = make(chan error, 1)
		go func() {
			sc := bufio.NewScanner(l.in)
			for sc.Scan() {
				l.lines <- sc.Text()
			}
			err := sc.Err()
			if err == nil {
				err = io.EOF
			}
			l.errs <- err
		}()
	})
}

func (l *ConsoleListener) Listen(ctx context.Context, _ int, timeout time.Duration) (Answer, error) {
	l.start()
	began := l.Now()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-l.lines:
		return Answer{
			Text:     strings.TrimSpace(line),
			Duration: l.Now().Sub(began).Seconds(),
		}, nil
	case err := <-l.errs:
		l.errs <- err // later cycles see the same end of input
		return Answer{}, err
	case <-timer.C:
		return Answer{}, ErrListenTimeout
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
}

// SpeechListener waits for a recorded answer file per question and
// transcribes it. Files are named answer_{n}{Ext} inside Dir.
type SpeechListener struct {
	STT      stt.Provider
	Dir      string
	Ext      string
	Language string
	Poll     time.Duration
	Now      func() time.Time
}

func NewSpeechListener(provider stt.Provider, dir, language string) *SpeechListener {
	return &SpeechListener{STT: provider, Dir: dir, Ext: ".wav", Language: language, Poll: 250 * time.Millisecond, Now: time.Now}
}

func (l *SpeechListener) AnswerPath(n int) string {
	return filepath.Join(l.Dir, fmt.Sprintf("answer_%d%s", n, l.Ext))
}

func (l *SpeechListener) Listen(ctx context.Context, n int, timeout time.Duration) (Answer, error) {
	began := l.Now()
	path := l.AnswerPath(n)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(l.Poll)
	defer tick.Stop()

	for {
		audio, err := os.ReadFile(path)
		if err == nil {
			return l.transcribe(ctx, audio, began)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Answer{}, err
		}

		select {
		case <-ctx.Done():
			return Answer{}, ctx.Err()
		case <-deadline.C:
			return Answer{}, ErrListenTimeout
		case <-tick.C:
		}
	}
}

func (l *SpeechListener) transcribe(ctx context.Context, audio []byte, began time.Time) (Answer, error) {
	ans := Answer{Duration: l.Now().Sub(began).Seconds()}
	text, _, err := l.STT.Transcribe(ctx, audio, l.Language)
	if errors.Is(err, stt.ErrNoSpeech) {
		return ans, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		return ans, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	ans.Text = strings.TrimSpace(text)
	return ans, nil
}
