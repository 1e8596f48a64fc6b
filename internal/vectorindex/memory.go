package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yoockh/yoointerview/internal/providers/embedding"
)

// Memory keeps indexes in process memory.
type Memory struct {
	embedder embedding.Provider

	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

func NewMemory(embedder embedding.Provider) *Memory {
	return &Memory{embedder: embedder, indexes: make(map[string]*memoryIndex)}
}

func (m *Memory) Create(_ context.Context, name string) (Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; ok {
		return nil, fmt.Errorf("vectorindex: index %q already exists", name)
	}
	idx := &memoryIndex{name: name, embedder: m.embedder}
	m.indexes[name] = idx
	return idx, nil
}

func (m *Memory) Open(_ context.Context, name string) (Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[name]
	if !ok {
		return nil, ErrIndexNotFound
	}
	return idx, nil
}

func (m *Memory) Drop(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, name)
	return nil
}

type memoryEntry struct {
	text   string
	vector []float32
}

type memoryIndex struct {
	name     string
	embedder embedding.Provider

	mu      sync.RWMutex
	entries []memoryEntry
}

func (i *memoryIndex) Name() string { return i.name }

func (i *memoryIndex) Add(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for n, t := range texts {
		i.entries = append(i.entries, memoryEntry{text: t, vector: vectors[n]})
	}
	return nil
}

func (i *memoryIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	q := vectors[0]

	i.mu.RLock()
	type scored struct {
		text  string
		score float64
	}
	hits := make([]scored, len(i.entries))
	for n, e := range i.entries {
		hits[n] = scored{text: e.text, score: cosine(q, e.vector)}
	}
	i.mu.RUnlock()

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for n, h := range hits {
		out[n] = h.text
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for n := 0; n < len(a) && n < len(b); n++ {
		dot += float64(a[n]) * float64(b[n])
		na += float64(a[n]) * float64(a[n])
		nb += float64(b[n]) * float64(b[n])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
