package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-2.0-flash"

// GenAIGemini talks to the Gemini API with an API key.
type GenAIGemini struct {
	client    *genai.Client
	modelName string
}

func NewGenAIGemini(ctx context.Context, apiKey, modelName string) (*GenAIGemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if modelName = strings.TrimSpace(modelName); modelName == "" {
		modelName = defaultGenAIModel
	}
	return &GenAIGemini{client: client, modelName: modelName}, nil
}

func (g *GenAIGemini) Close() error { return nil }

func (g *GenAIGemini) request(msgs []Message, o Options) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	system, turns := splitSystem(msgs)
	if len(turns) == 0 {
		return nil, nil, errors.New("genai: at least one user message is required")
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		c := &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: t.Content}}}
		if t.Role == RoleAssistant {
			c.Role = genai.RoleModel
		}
		contents = append(contents, c)
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if o.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if o.Temperature != nil {
		t := *o.Temperature
		cfg.Temperature = &t
	}
	return contents, cfg, nil
}

func (g *GenAIGemini) Stream(ctx context.Context, msgs []Message, opts ...Option) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		contents, cfg, err := g.request(msgs, BuildOptions(opts...))
		if err != nil {
			errs <- err
			return
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, cfg) {
			if err != nil {
				errs <- fmt.Errorf("generate content stream: %w", err)
				return
			}
			for _, text := range genaiTexts(resp) {
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

func (g *GenAIGemini) Complete(ctx context.Context, msgs []Message, opts ...Option) (string, error) {
	contents, cfg, err := g.request(msgs, BuildOptions(opts...))
	if err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := strings.TrimSpace(strings.Join(genaiTexts(resp), ""))
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func genaiTexts(resp *genai.GenerateContentResponse) []string {
	var out []string
	if resp == nil {
		return out
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			out = append(out, part.Text)
		}
	}
	return out
}
