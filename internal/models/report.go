package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// InterviewReport archives a completed evaluation for later analysis.
type InterviewReport struct {
	EvaluationID         string         `gorm:"column:evaluation_id;type:uuid;primaryKey" json:"evaluation_id"`
	SessionID            string         `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	Role                 string         `gorm:"column:role;type:text;index" json:"role"`
	OverallScore         float64        `gorm:"column:overall_score;type:numeric(3,1)" json:"overall_score"`
	CommunicationClarity string         `gorm:"column:communication_clarity;type:text" json:"communication_clarity"`
	TechnicalDepth       string         `gorm:"column:technical_depth;type:text" json:"technical_depth"`
	Recommendations      pq.StringArray `gorm:"column:recommendations;type:text[]" json:"recommendations"`
	Results              datatypes.JSON `gorm:"column:results;type:jsonb" json:"results"`
	CompletedAt          time.Time      `gorm:"column:completed_at;type:timestamptz;index" json:"completed_at"`
}

func (InterviewReport) TableName() string { return "interview_reports" }
