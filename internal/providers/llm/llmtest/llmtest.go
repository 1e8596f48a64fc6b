// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/yoockh/yoointerview/internal/providers/llm"
)

// RespondFunc answers one request. prompt is the content of the last message.
type RespondFunc func(prompt string, opts llm.Options) (string, error)

// Provider records every prompt it receives and answers through Respond.
type Provider struct {
	Respond RespondFunc
	// ChunkSize splits streamed answers into pieces of this many runes (default 8).
	ChunkSize int

	mu      sync.Mutex
	prompts []string
}

func New(fn RespondFunc) *Provider { return &Provider{Respond: fn} }

// Fixed always answers with text.
func Fixed(text string) *Provider {
	return New(func(string, llm.Options) (string, error) { return text, nil })
}

// Failing always fails with err.
func Failing(err error) *Provider {
	return New(func(string, llm.Options) (string, error) { return "", err })
}

func (p *Provider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// Calls counts prompts containing substr.
func (p *Provider) Calls(substr string) int {
	n := 0
	for _, pr := range p.Prompts() {
		if strings.Contains(pr, substr) {
			n++
		}
	}
	return n
}

func (p *Provider) answer(msgs []llm.Message, opts []llm.Option) (string, error) {
	prompt := ""
	if len(msgs) > 0 {
		prompt = msgs[len(msgs)-1].Content
	}
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()

	if p.Respond == nil {
		return "", nil
	}
	return p.Respond(prompt, llm.BuildOptions(opts...))
}

func (p *Provider) Complete(ctx context.Context, msgs []llm.Message, opts ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.answer(msgs, opts)
}

func (p *Provider) Stream(ctx context.Context, msgs []llm.Message, opts ...llm.Option) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		text, err := p.answer(msgs, opts)
		if err != nil {
			errs <- err
			return
		}

		size := p.ChunkSize
		if size <= 0 {
			size = 8
		}
		runes := []rune(text)
		for start := 0; start < len(runes); start += size {
			end := min(start+size, len(runes))
			select {
			case out <- string(runes[start:end]):
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}

func (p *Provider) Close() error { return nil }
