// Package repositories defines where interview sessions and evaluations live.
package repositories

import (
	"context"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

// SessionStore persists sessions and evaluations by id. Unknown ids yield
// utils.ErrNotFound.
//
// UpdateEvaluation is a read-modify-write without locking: two writers
// updating the same evaluation id at once can lose a write. Callers keep a
// single writer per evaluation.
type SessionStore interface {
	StoreSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	StoreEvaluation(ctx context.Context, e *models.Evaluation) error
	GetEvaluation(ctx context.Context, evaluationID string) (*models.Evaluation, error)
	UpdateEvaluation(ctx context.Context, evaluationID string, u models.EvaluationUpdate) error
	DeleteEvaluation(ctx context.Context, evaluationID string) error

	// Cleanup removes sessions older than maxAge and returns them.
	// Evaluations are never removed automatically.
	Cleanup(ctx context.Context, maxAge time.Duration) ([]models.Session, error)
	Stats(ctx context.Context) (models.StoreStats, error)
}
