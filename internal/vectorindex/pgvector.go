package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
	"github.com/yoockh/yoointerview/internal/repositories/postgres"
)

// PGVector keeps each index as a collection of rows in resume_chunks.
type PGVector struct {
	repo     postgres.ResumeChunkRepository
	embedder embedding.Provider
}

func NewPGVector(repo postgres.ResumeChunkRepository, embedder embedding.Provider) *PGVector {
	return &PGVector{repo: repo, embedder: embedder}
}

func (p *PGVector) Create(ctx context.Context, name string) (Index, error) {
	n, err := p.repo.CountByCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("vectorindex: index %q already exists", name)
	}
	return &pgIndex{name: name, store: p}, nil
}

func (p *PGVector) Open(ctx context.Context, name string) (Index, error) {
	n, err := p.repo.CountByCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrIndexNotFound
	}
	return &pgIndex{name: name, store: p}, nil
}

func (p *PGVector) Drop(ctx context.Context, name string) error {
	return p.repo.DeleteCollection(ctx, name)
}

type pgIndex struct {
	name  string
	store *PGVector
	next  int
}

func (i *pgIndex) Name() string { return i.name }

func (i *pgIndex) Add(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := i.store.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}

	now := time.Now().UTC()
	rows := make([]models.ResumeChunk, len(texts))
	for n, t := range texts {
		rows[n] = models.ResumeChunk{
			ID:         uuid.NewString(),
			Collection: i.name,
			Position:   i.next + n,
			Content:    t,
			Embedding:  pgvector.NewVector(vectors[n]),
			Metadata:   datatypes.JSON(fmt.Sprintf(`{"chars":%d}`, len([]rune(t)))),
			CreatedAt:  now,
		}
	}
	if err := i.store.repo.InsertBatch(ctx, rows); err != nil {
		return err
	}
	i.next += len(texts)
	return nil
}

func (i *pgIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := i.store.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := i.store.repo.SearchSimilar(ctx, i.name, vectors[0], k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for n, r := range rows {
		out[n] = r.Content
	}
	return out, nil
}
