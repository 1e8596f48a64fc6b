package embedding

import "context"

// Provider turns texts into vectors. The result has one vector per input text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
