package models

type Turn struct {
	QuestionID     int     `bson:"question_id" json:"question_id"`
	QuestionText   string  `bson:"question_text" json:"question_text"`
	AnswerText     string  `bson:"answer_text" json:"answer_text"`
	AnswerDuration float64 `bson:"answer_duration" json:"answer_duration" binding:"gte=0"` // seconds
}

type EvaluationStatus string

const (
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusError      EvaluationStatus = "error"
)

type Evaluation struct {
	EvaluationID  string            `bson:"evaluation_id" json:"evaluation_id"`
	SessionID     string            `bson:"session_id" json:"session_id"`
	Role          Role              `bson:"role" json:"role"`
	InterviewData []Turn            `bson:"interview_data" json:"interview_data"`
	SubmittedAt   float64           `bson:"submitted_at" json:"submitted_at"`
	Status        EvaluationStatus  `bson:"status" json:"status"`
	Results       *EvaluationResult `bson:"results,omitempty" json:"results,omitempty"`
	Error         string            `bson:"error,omitempty" json:"error,omitempty"`
	CompletedAt   *float64          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// EvaluationUpdate is the single completion write applied to a processing evaluation.
type EvaluationUpdate struct {
	Status      EvaluationStatus
	Results     *EvaluationResult
	Error       string
	CompletedAt *float64
}

// Apply merges u into e. Results are kept only for completed evaluations.
func (e *Evaluation) Apply(u EvaluationUpdate) {
	if u.Status != "" {
		e.Status = u.Status
	}
	e.Results = u.Results
	e.Error = u.Error
	if u.CompletedAt != nil {
		e.CompletedAt = u.CompletedAt
	}
	if e.Status != StatusCompleted {
		e.Results = nil
	}
}

type QuestionAnalysis struct {
	QuestionID   int      `bson:"question_id" json:"question_id"`
	Score        float64  `bson:"score" json:"score"`
	Feedback     string   `bson:"feedback" json:"feedback"`
	Strengths    []string `bson:"strengths" json:"strengths"`
	Improvements []string `bson:"improvements" json:"improvements"`
}

const (
	PaceSlow    = "Slow"
	PaceNormal  = "Normal"
	PaceFast    = "Fast"
	DepthLow    = "Low"
	DepthMedium = "Medium"
	DepthHigh   = "High"

	ClarityNeedsImprovement = "Needs Improvement"
	ClarityFair             = "Fair"
	ClarityGood             = "Good"
	ClarityExcellent        = "Excellent"

	Unknown = "Unknown"
)

type Analytics struct {
	TotalDuration        string   `bson:"total_duration" json:"total_duration"`
	AverageResponseTime  float64  `bson:"average_response_time" json:"average_response_time"`
	SpeakingPace         string   `bson:"speaking_pace" json:"speaking_pace"`
	TechnicalDepth       string   `bson:"technical_depth" json:"technical_depth"`
	CommunicationClarity string   `bson:"communication_clarity" json:"communication_clarity"`
	ConsistencyScore     *float64 `bson:"consistency_score" json:"consistency_score"`
}

type EvaluationResult struct {
	OverallScore     float64            `bson:"overall_score" json:"overall_score"`
	OverallFeedback  string             `bson:"overall_feedback" json:"overall_feedback"`
	QuestionAnalysis []QuestionAnalysis `bson:"question_analysis" json:"question_analysis"`
	Analytics        Analytics          `bson:"analytics" json:"analytics"`
	Recommendations  []string           `bson:"recommendations" json:"recommendations"`
}
