package llm

import (
	"context"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a text-completion service accepting a message list.
type Provider interface {
	// Stream returns a stream of text chunks (incremental). Both channels are
	// closed when generation ends; errs carries at most one error.
	Stream(ctx context.Context, msgs []Message, opts ...Option) (chunks <-chan string, errs <-chan error)
	// Complete returns the whole response at once.
	Complete(ctx context.Context, msgs []Message, opts ...Option) (string, error)
	Close() error
}

type Options struct {
	// JSON asks the back-end for an application/json response.
	JSON        bool
	Temperature *float32
}

type Option func(*Options)

func WithJSON() Option { return func(o *Options) { o.JSON = true } }

func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = &t }
}

func BuildOptions(opts ...Option) Options {
	var o Options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Prompt wraps a single user prompt as a message list.
func Prompt(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// Collect drains a stream into one string.
func Collect(chunks <-chan string, errs <-chan error) (string, error) {
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err, ok := <-errs; ok && err != nil {
		return b.String(), err
	}
	return b.String(), nil
}

// splitSystem separates system instructions from the conversation turns.
func splitSystem(msgs []Message) (system string, turns []Message) {
	var sys []string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				sys = append(sys, s)
			}
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(sys, "\n\n"), turns
}
