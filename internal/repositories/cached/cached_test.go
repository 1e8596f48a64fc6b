package cached

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories/filestore"
	"github.com/yoockh/yoointerview/internal/utils"
)

func newCached(t *testing.T) (*Store, *filestore.Store) {
	t.Helper()
	inner, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	return New(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, logger.NewNop()), inner
}

func TestSessionReadsThroughAndInvalidates(t *testing.T) {
	ctx := context.Background()
	s, inner := newCached(t)

	require.NoError(t, s.StoreSession(ctx, &models.Session{SessionID: "s1", Role: models.RoleSDE}))
	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSDE, got.Role)

	// a write behind the cache's back is not seen until invalidation
	require.NoError(t, inner.StoreSession(ctx, &models.Session{SessionID: "s1", Role: models.RoleProductManager}))
	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSDE, got.Role)

	require.NoError(t, s.StoreSession(ctx, &models.Session{SessionID: "s1", Role: models.RoleDataScientist}))
	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDataScientist, got.Role)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	_, err = s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestProcessingEvaluationIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, inner := newCached(t)

	require.NoError(t, s.StoreEvaluation(ctx, &models.Evaluation{EvaluationID: "e1", Status: models.StatusProcessing}))
	got, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)

	// the worker may write through a different store instance
	require.NoError(t, inner.UpdateEvaluation(ctx, "e1", models.EvaluationUpdate{Status: models.StatusError, Error: "boom"}))
	got, err = s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Equal(t, "boom", got.Error)
}
