// Package vectorindex stores resume passages and answers similarity queries.
package vectorindex

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrIndexNotFound = errors.New("vectorindex: index not found")

type Index interface {
	Name() string
	Add(ctx context.Context, texts []string) error
	// Search returns up to k texts, most similar first.
	Search(ctx context.Context, query string, k int) ([]string, error)
}

type Store interface {
	Create(ctx context.Context, name string) (Index, error)
	Open(ctx context.Context, name string) (Index, error)
	Drop(ctx context.Context, name string) error
}

// Passages runs every query against idx, requesting perQuery results each,
// and returns the distinct passages in query order, capped at limit. A query
// that fails is logged and skipped.
func Passages(ctx context.Context, idx Index, queries []string, perQuery, limit int, log logrus.FieldLogger) []string {
	if idx == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, q := range queries {
		hits, err := idx.Search(ctx, q, perQuery)
		if err != nil {
			if log != nil {
				log.WithError(err).WithFields(logrus.Fields{"index": idx.Name(), "query": q}).Warn("similarity search failed")
			}
			continue
		}
		for _, h := range hits {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Join renders passages as one context block.
func Join(passages []string) string {
	return strings.Join(passages, "\n\n")
}
