package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(embedding.NewHashing(128))

	idx, err := store.Create(ctx, "resume_1")
	require.NoError(t, err)
	_, err = store.Create(ctx, "resume_1")
	assert.Error(t, err)

	require.NoError(t, idx.Add(ctx, []string{
		"Built payment microservices in Go with Kafka",
		"Led a team of five engineers",
		"Enjoys hiking on weekends",
	}))

	hits, err := idx.Search(ctx, "go microservices kafka", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Built payment microservices in Go with Kafka", hits[0])

	opened, err := store.Open(ctx, "resume_1")
	require.NoError(t, err)
	assert.Equal(t, "resume_1", opened.Name())

	require.NoError(t, store.Drop(ctx, "resume_1"))
	_, err = store.Open(ctx, "resume_1")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

type scriptedIndex struct {
	results map[string][]string
	fail    map[string]bool
}

func (s scriptedIndex) Name() string { return "scripted" }

func (s scriptedIndex) Add(context.Context, []string) error { return nil }

func (s scriptedIndex) Search(_ context.Context, q string, k int) ([]string, error) {
	if s.fail[q] {
		return nil, errors.New("search down")
	}
	r := s.results[q]
	if len(r) > k {
		r = r[:k]
	}
	return r, nil
}

func TestPassagesDedupesInQueryOrder(t *testing.T) {
	idx := scriptedIndex{
		results: map[string][]string{
			"q1": {"a", "b", "ignored"},
			"q2": {"b", "c"},
			"q3": {"d", "e"},
			"q4": {"f", "g"},
		},
		fail: map[string]bool{"q3": true},
	}

	got := Passages(context.Background(), idx, []string{"q1", "q2", "q3", "q4"}, 2, 5, logger.NewNop())
	assert.Equal(t, []string{"a", "b", "c", "f", "g"}, got)

	got = Passages(context.Background(), idx, []string{"q1", "q2", "q4"}, 2, 3, nil)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, "a\n\nb\n\nc", Join(got))
}
