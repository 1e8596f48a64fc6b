package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/providers/llm/llmtest"
)

func TestTransitionsFailureRotatesFirstFiveDefaults(t *testing.T) {
	svc := NewTransitionService(llmtest.Failing(errors.New("down")), logger.NewNop())
	got := svc.Generate(context.Background(), 7)

	assert.Len(t, got, 7)
	assert.Equal(t, defaultTransitions[0], got[0])
	assert.Equal(t, defaultTransitions[4], got[4])
	assert.Equal(t, defaultTransitions[0], got[5])
	assert.Equal(t, defaultTransitions[1], got[6])
}

func TestTransitionsShortfallPaddedFromDefaults(t *testing.T) {
	svc := NewTransitionService(llmtest.Fixed("1. Moving on.\n2. Next up."), logger.NewNop())
	got := svc.Generate(context.Background(), 4)

	assert.Equal(t, []string{"Moving on.", "Next up.", defaultTransitions[0], defaultTransitions[1]}, got)
}

func TestTransitionsTruncated(t *testing.T) {
	svc := NewTransitionService(llmtest.Fixed("a\nb\nc"), logger.NewNop())
	assert.Equal(t, []string{"a", "b"}, svc.Generate(context.Background(), 2))
	assert.Empty(t, svc.Generate(context.Background(), 0))
}

func TestDynamicTransition(t *testing.T) {
	svc := NewTransitionService(llmtest.Fixed(`"Thanks, let's keep going."`), logger.NewNop())
	assert.Equal(t, "Thanks, let's keep going.", svc.Dynamic(context.Background(), "answer", 1, 5, false))

	failing := NewTransitionService(llmtest.Failing(errors.New("down")), logger.NewNop())
	assert.Equal(t, introTransitionFallback, failing.Dynamic(context.Background(), "hi", 0, 5, true))
	assert.Equal(t, closingTransitionFallback, failing.Dynamic(context.Background(), "done", 5, 5, false))
	assert.Equal(t, genericTransitionFallback, failing.Dynamic(context.Background(), "mid", 2, 5, false))
}
