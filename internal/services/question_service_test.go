package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/llm/llmtest"
	"github.com/yoockh/yoointerview/internal/utils"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

func resumeIndex(t *testing.T, texts ...string) vectorindex.Index {
	t.Helper()
	store := vectorindex.NewMemory(embedding.NewHashing(0))
	idx, err := store.Create(context.Background(), "resume_test")
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), texts))
	return idx
}

func assertFiveQuestions(t *testing.T, qs []models.Question) {
	t.Helper()
	require.Len(t, qs, 5)
	for i, q := range qs {
		assert.Equal(t, i+1, q.ID)
		assert.NotEmpty(t, strings.TrimSpace(q.Text))
	}
}

func TestGenerateFallsBackToBankWhenBackendAlwaysFails(t *testing.T) {
	idx := resumeIndex(t, "Built Go services with Kafka and Postgres.", "Led a team of four engineers.")
	for _, role := range models.Roles {
		svc := NewQuestionService(llmtest.Failing(errors.New("down")), logger.NewNop())
		qs := svc.Generate(context.Background(), idx, role)
		assertFiveQuestions(t, qs)
		assert.Equal(t, QuestionBank(role)[0], qs[0].Text)
	}
}

func TestGenerateUsesStructuredTier(t *testing.T) {
	idx := resumeIndex(t, "Designed a distributed cache in Go.")
	p := llmtest.New(func(_ string, o llm.Options) (string, error) {
		require.True(t, o.JSON)
		return "```json\n{\"questions\":[\"a\",\"b\",\"c\",\"d\",\"e\"]}\n```", nil
	})

	qs := NewQuestionService(p, logger.NewNop()).Generate(context.Background(), idx, models.RoleSDE)
	assertFiveQuestions(t, qs)
	assert.Equal(t, "a", qs[0].Text)
	assert.Equal(t, "e", qs[4].Text)
	assert.Equal(t, 1, p.Calls("Retrieved relevant resume content"))
	assert.Equal(t, 1, p.Calls("Designed a distributed cache"))
}

func TestGenerateUnstructuredPadsFromBank(t *testing.T) {
	idx := resumeIndex(t, "Shipped a recommendation engine.")
	p := llmtest.New(func(_ string, o llm.Options) (string, error) {
		if o.JSON {
			return `{"questions":["only one"]}`, nil
		}
		return "1. First parsed question\n2) Second parsed question\n\n", nil
	})

	qs := NewQuestionService(p, logger.NewNop()).Generate(context.Background(), idx, models.RoleDataScientist)
	assertFiveQuestions(t, qs)
	bank := QuestionBank(models.RoleDataScientist)
	assert.Equal(t, "First parsed question", qs[0].Text)
	assert.Equal(t, "Second parsed question", qs[1].Text)
	assert.Equal(t, bank[2], qs[2].Text)
	assert.Equal(t, bank[4], qs[4].Text)
}

func TestGenerateSkipsStructuredWithoutContext(t *testing.T) {
	p := llmtest.Fixed("q1\nq2\nq3\nq4\nq5\nq6")
	qs := NewQuestionService(p, logger.NewNop()).Generate(context.Background(), nil, models.RoleProductManager)
	assertFiveQuestions(t, qs)
	assert.Equal(t, "q5", qs[4].Text)
	assert.Zero(t, p.Calls("Retrieved relevant resume content"))
}

func TestGenerateUnknownRoleUsesGenericBank(t *testing.T) {
	qs := NewQuestionService(llmtest.Failing(errors.New("down")), logger.NewNop()).
		Generate(context.Background(), nil, models.Role("Astronaut"))
	assertFiveQuestions(t, qs)
	assert.Equal(t, genericQuestionBank[0], qs[0].Text)
	assert.Equal(t, defaultRoleQueries, RoleQueries(models.Role("Astronaut")))
}

func TestParseStructuredQuestions(t *testing.T) {
	_, err := parseStructuredQuestions(`{"questions":["a","b","c","d"]}`)
	assert.ErrorIs(t, err, utils.ErrParse)

	_, err = parseStructuredQuestions(`{"questions":["a","b","","d","e"]}`)
	assert.ErrorIs(t, err, utils.ErrParse)

	_, err = parseStructuredQuestions(`not json at all`)
	assert.ErrorIs(t, err, utils.ErrParse)

	got, err := parseStructuredQuestions(`{"questions":[" a ","b","c","d","e"]}`)
	require.NoError(t, err)
	assert.Equal(t, "a", got[0])
}

func TestIntroMessageFallback(t *testing.T) {
	svc := NewQuestionService(llmtest.Failing(errors.New("down")), logger.NewNop())
	msg := svc.IntroMessage(context.Background(), models.RoleDataScientist)
	assert.Contains(t, msg, "Welcome to your Data Scientist interview!")

	svc = NewQuestionService(llmtest.Fixed("  Hello there.  "), logger.NewNop())
	assert.Equal(t, "Hello there.", svc.IntroMessage(context.Background(), models.RoleSDE))
}
