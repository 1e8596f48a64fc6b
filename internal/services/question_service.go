package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/utils"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

const (
	passagesPerQuery = 2
	contextPassages  = 5
)

type QuestionService interface {
	// Generate always returns exactly five questions numbered 1..5.
	Generate(ctx context.Context, idx vectorindex.Index, role models.Role) []models.Question
	IntroMessage(ctx context.Context, role models.Role) string
}

type questionService struct {
	llm llm.Provider
	log *logrus.Logger
}

func NewQuestionService(provider llm.Provider, log *logrus.Logger) QuestionService {
	return &questionService{llm: provider, log: log}
}

// questionStrategy is one tier of the generation chain. run reports failure
// through its error and the chain moves on to the next tier.
type questionStrategy struct {
	name string
	run  func(ctx context.Context) ([]string, error)
}

func (s *questionService) Generate(ctx context.Context, idx vectorindex.Index, role models.Role) []models.Question {
	passages := vectorindex.Passages(ctx, idx, RoleQueries(role), passagesPerQuery, contextPassages, s.log)
	retrieved := vectorindex.Join(passages)

	for _, st := range s.strategies(role, retrieved) {
		texts, err := st.run(ctx)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"role": role, "strategy": st.name}).Warn("question strategy failed")
			continue
		}
		s.log.WithFields(logrus.Fields{"role": role, "strategy": st.name, "passages": len(passages)}).Info("questions generated")
		return numberQuestions(texts)
	}
	// static never fails
	return numberQuestions(QuestionBank(role))
}

func (s *questionService) strategies(role models.Role, retrieved string) []questionStrategy {
	name := role.DisplayName()
	var out []questionStrategy
	if strings.TrimSpace(retrieved) != "" {
		out = append(out, questionStrategy{"structured", func(ctx context.Context) ([]string, error) {
			return s.structured(ctx, name, retrieved)
		}})
	}
	out = append(out,
		questionStrategy{"unstructured", func(ctx context.Context) ([]string, error) {
			return s.unstructured(ctx, role, retrieved)
		}},
		questionStrategy{"static", func(context.Context) ([]string, error) {
			return QuestionBank(role), nil
		}},
	)
	return out
}

func (s *questionService) structured(ctx context.Context, role, retrieved string) ([]string, error) {
	raw, err := s.llm.Complete(ctx, llm.Prompt(structuredQuestionsPrompt(role, retrieved)), llm.WithJSON())
	if err != nil {
		return nil, err
	}
	return parseStructuredQuestions(raw)
}

func parseStructuredQuestions(raw string) ([]string, error) {
	var payload struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(utils.CleanJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrParse, err)
	}
	if len(payload.Questions) != questionCount {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", utils.ErrParse, questionCount, len(payload.Questions))
	}
	out := make([]string, questionCount)
	for i, q := range payload.Questions {
		if out[i] = strings.TrimSpace(q); out[i] == "" {
			return nil, fmt.Errorf("%w: question %d is empty", utils.ErrParse, i+1)
		}
	}
	return out, nil
}

func (s *questionService) unstructured(ctx context.Context, role models.Role, retrieved string) ([]string, error) {
	raw, err := s.llm.Complete(ctx, llm.Prompt(unstructuredQuestionsPrompt(role.DisplayName(), retrieved)))
	if err != nil {
		return nil, err
	}
	return padQuestions(utils.ParseLines(raw), QuestionBank(role)), nil
}

// padQuestions keeps the first five parsed lines and fills missing positions
// from the bank entry at the same position.
func padQuestions(parsed, bank []string) []string {
	if len(parsed) > questionCount {
		parsed = parsed[:questionCount]
	}
	out := append([]string(nil), parsed...)
	for i := len(out); i < questionCount; i++ {
		out = append(out, bank[i])
	}
	return out
}

func numberQuestions(texts []string) []models.Question {
	out := make([]models.Question, len(texts))
	for i, t := range texts {
		out[i] = models.Question{ID: i + 1, Text: t}
	}
	return out
}

func (s *questionService) IntroMessage(ctx context.Context, role models.Role) string {
	name := role.DisplayName()
	text, err := s.llm.Complete(ctx, llm.Prompt(introPrompt(name)))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.log.WithError(err).Warn("intro message generation failed")
		}
		return introFallback(name)
	}
	return strings.TrimSpace(text)
}
