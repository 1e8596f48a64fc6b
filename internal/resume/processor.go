package resume

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/vectorindex"
)

type Processor struct {
	store vectorindex.Store
	log   *logrus.Logger

	ChunkSize int
	Overlap   int
	Now       func() time.Time
}

func NewProcessor(store vectorindex.Store, log *logrus.Logger) *Processor {
	return &Processor{
		store:     store,
		log:       log,
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
		Now:       time.Now,
	}
}

// IndexName names the collection for a session's resume.
func IndexName(at time.Time, sessionID string) string {
	prefix := strings.ReplaceAll(sessionID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("resume_%d_%s", at.Unix(), prefix)
}

// Process splits text and indexes the chunks in a new collection. Nothing is
// left behind when it fails.
func (p *Processor) Process(ctx context.Context, sessionID, text string) (vectorindex.Index, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	chunks := Split(text, p.ChunkSize, p.Overlap)
	if len(chunks) == 0 {
		return nil, ErrEmpty
	}

	name := IndexName(p.Now(), sessionID)
	idx, err := p.store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}
	if err := idx.Add(ctx, chunks); err != nil {
		if dropErr := p.store.Drop(context.WithoutCancel(ctx), name); dropErr != nil {
			p.log.WithError(dropErr).WithField("index", name).Warn("drop index after failed add")
		}
		return nil, fmt.Errorf("index resume chunks: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"index":      name,
		"chars":      len([]rune(text)),
		"chunks":     len(chunks),
	}).Info("resume indexed")
	return idx, nil
}
