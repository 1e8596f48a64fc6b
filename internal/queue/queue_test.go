package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
)

func TestGoChannelRoundTrip(t *testing.T) {
	q, err := NewGoChannel(8, logger.NewNop())
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job := Job{
		EvaluationID: "eval-1",
		SessionID:    "sess-1",
		Role:         models.RoleSDE,
		Turns:        []models.Turn{{QuestionID: 1, QuestionText: "Q", AnswerText: "A", AnswerDuration: 3}},
	}
	// published before anyone consumes
	require.NoError(t, q.Publish(ctx, job))

	got := make(chan Job, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, j Job) error {
			got <- j
			return nil
		})
	}()

	select {
	case j := <-got:
		assert.Equal(t, job, j)
	case <-ctx.Done():
		t.Fatal("job was not delivered")
	}
}

func TestGoChannelHandlerFailureDoesNotBlockNextJob(t *testing.T) {
	q, err := NewGoChannel(8, logger.NewNop())
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, q.Publish(ctx, Job{EvaluationID: "a"}))
	require.NoError(t, q.Publish(ctx, Job{EvaluationID: "b"}))

	seen := make(chan string, 2)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, j Job) error {
			seen <- j.EvaluationID
			return errors.New("boom")
		})
	}()

	var ids []string
	for range 2 {
		select {
		case id := <-seen:
			ids = append(ids, id)
		case <-ctx.Done():
			t.Fatal("jobs were not delivered")
		}
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestPublishAfterClose(t *testing.T) {
	q, err := NewGoChannel(1, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(context.Background(), Job{EvaluationID: "x"}), ErrClosed)
}

func TestEncodeRequiresEvaluationID(t *testing.T) {
	_, err := encode(Job{})
	assert.Error(t, err)

	_, err = decode([]byte(`{"session_id":"s"}`))
	assert.Error(t, err)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}
