package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	defaultTurnScore        = 5.0
	defaultConsistencyScore = 7.0
	singleTurnConsistency   = 10.0
	defaultWPM              = 120.0
	maxListItems            = 3
	maxRecommendations      = 5
	topImprovements         = 3

	// sampling temperature for scoring and consistency requests
	gradingTemperature float32 = 0.2
)

type EvaluationService interface {
	// ScoreTurn never fails; a broken request yields a degraded analysis.
	ScoreTurn(ctx context.Context, turn models.Turn, role models.Role) models.QuestionAnalysis
	// Evaluate runs every stage, each absorbing its own failure. It errors
	// only when ctx is done, before the first stage or by the time the last
	// one returns.
	Evaluate(ctx context.Context, turns []models.Turn, role models.Role) (*models.EvaluationResult, error)
}

type evaluationService struct {
	llm llm.Provider
	log *logrus.Logger
}

func NewEvaluationService(provider llm.Provider, log *logrus.Logger) EvaluationService {
	return &evaluationService{llm: provider, log: log}
}

func (s *evaluationService) Evaluate(ctx context.Context, turns []models.Turn, role models.Role) (*models.EvaluationResult, error) {
	const op = "EvaluationService.Evaluate"

	if err := ctx.Err(); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "evaluation cancelled", err)
	}

	analyses := make([]models.QuestionAnalysis, len(turns))
	scores := make([]float64, len(turns))
	for i, t := range turns {
		analyses[i] = s.ScoreTurn(ctx, t, role)
		scores[i] = analyses[i].Score
	}

	analytics, err := computeAnalytics(turns, scores)
	if err != nil {
		s.log.WithError(err).Warn("analytics failed; using unknown record")
		analytics = unknownAnalytics()
	}

	consistency := s.consistency(ctx, turns)
	analytics.ConsistencyScore = &consistency

	overall, err := overallScore(scores, analytics)
	if err != nil {
		overall = meanOr(scores, defaultTurnScore)
	}

	res := &models.EvaluationResult{
		OverallScore:     utils.Round(overall, 1),
		OverallFeedback:  s.overallFeedback(ctx, role, scores, analytics),
		QuestionAnalysis: analyses,
		Analytics:        analytics,
		Recommendations:  s.recommendations(ctx, role, analyses, analytics),
	}
	// stages degrade to defaults on a dead context; those are not results
	if err := ctx.Err(); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "evaluation interrupted", err)
	}
	return res, nil
}

func (s *evaluationService) ScoreTurn(ctx context.Context, turn models.Turn, role models.Role) models.QuestionAnalysis {
	raw, err := s.llm.Complete(ctx, llm.Prompt(scoreTurnPrompt(role.DisplayName(), turn)), llm.WithTemperature(gradingTemperature))
	if err != nil {
		s.log.WithError(err).WithField("question_id", turn.QuestionID).Warn("answer scoring failed")
		return degradedAnalysis(turn.QuestionID)
	}
	return parseTurnAnalysis(raw, turn.QuestionID)
}

func degradedAnalysis(questionID int) models.QuestionAnalysis {
	return models.QuestionAnalysis{
		QuestionID:   questionID,
		Score:        defaultTurnScore,
		Feedback:     degradedFeedback,
		Strengths:    []string{},
		Improvements: []string{degradedImprovement},
	}
}

// parseTurnAnalysis reads the SCORE/FEEDBACK/STRENGTHS/IMPROVEMENTS lines.
// Missing or unparseable fields keep their defaults; the score is clamped.
func parseTurnAnalysis(raw string, questionID int) models.QuestionAnalysis {
	a := models.QuestionAnalysis{
		QuestionID:   questionID,
		Score:        defaultTurnScore,
		Feedback:     defaultFeedback,
		Strengths:    []string{},
		Improvements: []string{},
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "SCORE":
			if v, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(v) {
				a.Score = utils.Clamp(v, 0, 10)
			}
		case "FEEDBACK":
			a.Feedback = value
		case "STRENGTHS":
			a.Strengths = splitPipeList(value)
		case "IMPROVEMENTS":
			a.Improvements = splitPipeList(value)
		}
	}
	return a
}

func splitPipeList(value string) []string {
	out := []string{}
	if value == "" || value == "None" {
		return out
	}
	for _, item := range strings.Split(value, "|") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
		if len(out) == maxListItems {
			break
		}
	}
	return out
}

func unknownAnalytics() models.Analytics {
	return models.Analytics{
		TotalDuration:        "Unable to calculate",
		AverageResponseTime:  0,
		SpeakingPace:         models.Unknown,
		TechnicalDepth:       models.Unknown,
		CommunicationClarity: models.Unknown,
	}
}

func computeAnalytics(turns []models.Turn, scores []float64) (models.Analytics, error) {
	if len(turns) == 0 || len(scores) == 0 {
		return models.Analytics{}, fmt.Errorf("analytics need at least one scored turn")
	}

	var total float64
	var totalWords int
	var paces []float64
	for _, t := range turns {
		total += t.AnswerDuration
		words := len(strings.Fields(t.AnswerText))
		totalWords += words
		if t.AnswerDuration > 0 {
			paces = append(paces, float64(words)*60/t.AnswerDuration)
		}
	}

	avgScore := mean(scores)
	avgWords := float64(totalWords) / float64(len(turns))

	return models.Analytics{
		TotalDuration:        formatDuration(total),
		AverageResponseTime:  utils.Round(total/float64(len(turns)), 1),
		SpeakingPace:         classifyPace(meanOr(paces, defaultWPM)),
		TechnicalDepth:       classifyDepth(avgScore),
		CommunicationClarity: classifyClarity(avgWords, avgScore),
	}, nil
}

func formatDuration(seconds float64) string {
	return fmt.Sprintf("%d minutes %d seconds", int(seconds/60), int(math.Mod(seconds, 60)))
}

func classifyPace(wpm float64) string {
	switch {
	case wpm < 100:
		return models.PaceSlow
	case wpm > 180:
		return models.PaceFast
	default:
		return models.PaceNormal
	}
}

func classifyDepth(avgScore float64) string {
	switch {
	case avgScore >= 8:
		return models.DepthHigh
	case avgScore >= 6:
		return models.DepthMedium
	default:
		return models.DepthLow
	}
}

func classifyClarity(avgWords, avgScore float64) string {
	switch {
	case avgWords >= 50 && avgScore >= 7:
		return models.ClarityExcellent
	case avgWords >= 30 && avgScore >= 6:
		return models.ClarityGood
	case avgWords >= 20:
		return models.ClarityFair
	default:
		return models.ClarityNeedsImprovement
	}
}

func (s *evaluationService) consistency(ctx context.Context, turns []models.Turn) float64 {
	if len(turns) < 2 {
		return singleTurnConsistency
	}
	raw, err := s.llm.Complete(ctx, llm.Prompt(consistencyPrompt(turns)), llm.WithTemperature(gradingTemperature))
	if err != nil {
		s.log.WithError(err).Warn("consistency analysis failed")
		return defaultConsistencyScore
	}
	return parseConsistency(raw)
}

func parseConsistency(raw string) float64 {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return defaultConsistencyScore
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(v) {
		return defaultConsistencyScore
	}
	return utils.Clamp(v, 0, 10)
}

// overallScore is the mean turn score adjusted by clarity and consistency.
// The modifier constants are heuristic and kept for compatibility.
func overallScore(scores []float64, a models.Analytics) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("no scores")
	}
	score := mean(scores)

	switch a.CommunicationClarity {
	case models.ClarityExcellent:
		score += 0.5
	case models.ClarityGood:
		score += 0.2
	case models.ClarityNeedsImprovement:
		score -= 0.3
	}

	if c := a.ConsistencyScore; c != nil {
		switch {
		case *c >= 8:
			score += 0.3
		case *c <= 5:
			score -= 0.2
		}
	}
	return utils.Clamp(score, 0, 10), nil
}

func (s *evaluationService) overallFeedback(ctx context.Context, role models.Role, scores []float64, a models.Analytics) string {
	if len(scores) == 0 {
		return overallFeedbackFallback
	}
	text, err := s.llm.Complete(ctx, llm.Prompt(overallFeedbackPrompt(role.DisplayName(), mean(scores), a)))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.log.WithError(err).Warn("overall feedback generation failed")
		}
		return overallFeedbackFallback
	}
	return strings.TrimSpace(text)
}

func (s *evaluationService) recommendations(ctx context.Context, role models.Role, analyses []models.QuestionAnalysis, a models.Analytics) []string {
	name := role.DisplayName()
	raw, err := s.llm.Complete(ctx, llm.Prompt(recommendationsPrompt(name, rankImprovements(analyses, topImprovements), a)))
	if err != nil {
		s.log.WithError(err).Warn("recommendation generation failed")
		return recommendationsFallback(name)
	}
	recs := utils.ParseLines(raw)
	if len(recs) == 0 {
		return recommendationsFallback(name)
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// rankImprovements counts identical improvement strings and returns the n most
// frequent; ties keep first-seen order.
func rankImprovements(analyses []models.QuestionAnalysis, n int) []improvementCount {
	var ranked []improvementCount
	index := make(map[string]int)
	for _, a := range analyses {
		for _, imp := range a.Improvements {
			if i, ok := index[imp]; ok {
				ranked[i].count++
				continue
			}
			index[imp] = len(ranked)
			ranked = append(ranked, improvementCount{text: imp, count: 1})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func meanOr(xs []float64, fallback float64) float64 {
	if len(xs) == 0 {
		return fallback
	}
	return mean(xs)
}
