package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

type SessionService interface {
	// Get returns the public summary; resume details stay private.
	Get(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	Load(ctx context.Context, sessionID string) (*models.Session, error)
	SetPhase(ctx context.Context, sessionID, phase string) error
	// Delete removes the session with its vector collection and archived resume.
	Delete(ctx context.Context, sessionID string) error
	// Cleanup evicts sessions older than maxAge and returns how many went.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
	Stats(ctx context.Context) (models.StoreStats, error)
}

type sessionService struct {
	store    repositories.SessionStore
	vectors  vectorindex.Store
	uploader storage.Uploader
	log      *logrus.Logger
}

func NewSessionService(store repositories.SessionStore, vectors vectorindex.Store, uploader storage.Uploader, log *logrus.Logger) SessionService {
	if log == nil {
		log = logrus.New()
	}
	return &sessionService{store: store, vectors: vectors, uploader: uploader, log: log}
}

func (s *sessionService) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.Load"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, msgSessionNotFound, err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sum := sess.Summary()
	return &sum, nil
}

func (s *sessionService) SetPhase(ctx context.Context, sessionID, phase string) error {
	const op = "SessionService.SetPhase"

	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Phase = phase
	if err := s.store.StoreSession(ctx, sess); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save session", err)
	}
	return nil
}

func (s *sessionService) Delete(ctx context.Context, sessionID string) error {
	const op = "SessionService.Delete"

	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete session", err)
	}
	s.release(ctx, *sess)
	return nil
}

func (s *sessionService) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	const op = "SessionService.Cleanup"

	if maxAge <= 0 {
		return 0, utils.E(utils.CodeInvalidArgument, op, "max age must be positive", nil)
	}

	evicted, err := s.store.Cleanup(ctx, maxAge)
	for _, sess := range evicted {
		s.release(ctx, sess)
	}
	if err != nil {
		return len(evicted), utils.E(utils.CodeInternal, op, "session cleanup failed", err)
	}

	s.log.WithFields(logrus.Fields{"evicted": len(evicted), "max_age": maxAge.String()}).Info("sessions cleaned up")
	return len(evicted), nil
}

func (s *sessionService) Stats(ctx context.Context) (models.StoreStats, error) {
	const op = "SessionService.Stats"

	st, err := s.store.Stats(ctx)
	if err != nil {
		return models.StoreStats{}, utils.E(utils.CodeInternal, op, "failed to read storage stats", err)
	}
	return st, nil
}

// release drops what a removed session owned outside the store.
func (s *sessionService) release(ctx context.Context, sess models.Session) {
	log := s.log.WithField("session_id", sess.SessionID)
	if sess.VectorCollection != nil && s.vectors != nil {
		err := s.vectors.Drop(ctx, *sess.VectorCollection)
		if err != nil && !errors.Is(err, vectorindex.ErrIndexNotFound) {
			log.WithError(err).Warn("failed to drop vector collection")
		}
	}
	if s.uploader != nil && sess.ResumeReference != "" {
		if err := s.uploader.Delete(ctx, sess.ResumeReference); err != nil {
			log.WithError(err).Warn("failed to delete archived resume")
		}
	}
}
