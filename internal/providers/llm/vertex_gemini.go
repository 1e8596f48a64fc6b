package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

const defaultVertexModel = "gemini-1.5-flash"

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = defaultVertexModel
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// chat builds a per-call model so system instructions and generation options
// never leak between concurrent requests.
func (v *VertexGemini) chat(msgs []Message, o Options) (*vertexgenai.ChatSession, string, error) {
	system, turns := splitSystem(msgs)
	if len(turns) == 0 {
		return nil, "", errors.New("vertex: at least one user message is required")
	}

	m := v.client.GenerativeModel(v.modelName)
	if system != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
	}
	if o.JSON {
		m.ResponseMIMEType = "application/json"
	}
	if o.Temperature != nil {
		m.SetTemperature(*o.Temperature)
	}

	cs := m.StartChat()
	for _, t := range turns[:len(turns)-1] {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(t.Content)},
		})
	}
	return cs, turns[len(turns)-1].Content, nil
}

func (v *VertexGemini) Stream(ctx context.Context, msgs []Message, opts ...Option) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		cs, last, err := v.chat(msgs, BuildOptions(opts...))
		if err != nil {
			errs <- err
			return
		}

		it := cs.SendMessageStream(ctx, vertexgenai.Text(last))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, text := range vertexTexts(resp) {
				select {
				case out <- text:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errs
}

func (v *VertexGemini) Complete(ctx context.Context, msgs []Message, opts ...Option) (string, error) {
	cs, last, err := v.chat(msgs, BuildOptions(opts...))
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, vertexgenai.Text(last))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(strings.Join(vertexTexts(resp), ""))
	if text == "" {
		return "", errors.New("vertex: empty response")
	}
	return text, nil
}

func vertexTexts(resp *vertexgenai.GenerateContentResponse) []string {
	var out []string
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}
