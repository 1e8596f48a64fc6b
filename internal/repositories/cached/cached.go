// Package cached puts a read-through cache in front of a SessionStore.
package cached

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
)

const (
	sessionKeyPrefix    = "session:"
	evaluationKeyPrefix = "evaluation:"
)

// Store caches sessions, and evaluations once they reach a final status.
// Every write goes to the inner store first and then drops the cached copy.
type Store struct {
	inner repositories.SessionStore
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

func New(inner repositories.SessionStore, c cache.Cache, ttl time.Duration, log *logrus.Logger) *Store {
	return &Store{inner: inner, cache: c, ttl: ttl, log: log}
}

func (s *Store) StoreSession(ctx context.Context, sess *models.Session) error {
	if err := s.inner.StoreSession(ctx, sess); err != nil {
		return err
	}
	s.invalidate(ctx, sessionKeyPrefix+sess.SessionID)
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := sessionKeyPrefix + sessionID
	var cached models.Session
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	} else if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache get failed")
	}

	sess, err := s.inner.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, sess)
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.inner.DeleteSession(ctx, sessionID)
	s.invalidate(ctx, sessionKeyPrefix+sessionID)
	return err
}

func (s *Store) StoreEvaluation(ctx context.Context, e *models.Evaluation) error {
	if err := s.inner.StoreEvaluation(ctx, e); err != nil {
		return err
	}
	s.invalidate(ctx, evaluationKeyPrefix+e.EvaluationID)
	return nil
}

func (s *Store) GetEvaluation(ctx context.Context, evaluationID string) (*models.Evaluation, error) {
	key := evaluationKeyPrefix + evaluationID
	var cached models.Evaluation
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	} else if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache get failed")
	}

	e, err := s.inner.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	// a processing record is about to change
	if e.Status != models.StatusProcessing {
		s.set(ctx, key, e)
	}
	return e, nil
}

func (s *Store) UpdateEvaluation(ctx context.Context, evaluationID string, u models.EvaluationUpdate) error {
	err := s.inner.UpdateEvaluation(ctx, evaluationID, u)
	s.invalidate(ctx, evaluationKeyPrefix+evaluationID)
	return err
}

func (s *Store) DeleteEvaluation(ctx context.Context, evaluationID string) error {
	err := s.inner.DeleteEvaluation(ctx, evaluationID)
	s.invalidate(ctx, evaluationKeyPrefix+evaluationID)
	return err
}

func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) ([]models.Session, error) {
	removed, err := s.inner.Cleanup(ctx, maxAge)
	if len(removed) > 0 {
		keys := make([]string, len(removed))
		for i, r := range removed {
			keys[i] = sessionKeyPrefix + r.SessionID
		}
		s.invalidate(ctx, keys...)
	}
	return removed, err
}

func (s *Store) Stats(ctx context.Context) (models.StoreStats, error) {
	return s.inner.Stats(ctx)
}

func (s *Store) set(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}
