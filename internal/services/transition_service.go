package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/utils"
)

type TransitionService interface {
	// Generate returns exactly n phrases for use between questions.
	Generate(ctx context.Context, n int) []string
	// Dynamic reacts to the answer just given. questionNum is 1-based.
	Dynamic(ctx context.Context, answer string, questionNum, total int, isIntro bool) string
}

type transitionService struct {
	llm llm.Provider
	log *logrus.Logger
}

func NewTransitionService(provider llm.Provider, log *logrus.Logger) TransitionService {
	return &transitionService{llm: provider, log: log}
}

func (s *transitionService) Generate(ctx context.Context, n int) []string {
	if n <= 0 {
		return []string{}
	}

	raw, err := s.llm.Complete(ctx, llm.Prompt(transitionsPrompt(n)))
	if err != nil {
		s.log.WithError(err).Warn("transition generation failed; using defaults")
		return rotate(defaultTransitions[:failureTransitionCount], n, 0)
	}

	out := utils.ParseLines(raw)
	if len(out) >= n {
		return out[:n]
	}
	return append(out, rotate(defaultTransitions, n-len(out), 0)...)
}

// rotate returns n items taken cyclically from pool starting at offset.
func rotate(pool []string, n, offset int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = pool[(offset+i)%len(pool)]
	}
	return out
}

func (s *transitionService) Dynamic(ctx context.Context, answer string, questionNum, total int, isIntro bool) string {
	text, err := s.llm.Complete(ctx, llm.Prompt(dynamicTransitionPrompt(answer, questionNum, total, isIntro)))
	if text = strings.Trim(strings.TrimSpace(text), `"`); err != nil || text == "" {
		if err != nil {
			s.log.WithError(err).WithField("question", questionNum).Warn("dynamic transition failed")
		}
		switch {
		case isIntro:
			return introTransitionFallback
		case questionNum == total:
			return closingTransitionFallback
		default:
			return genericTransitionFallback
		}
	}
	return text
}
