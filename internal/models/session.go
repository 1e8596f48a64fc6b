package models

type Question struct {
	ID   int    `bson:"id" json:"id"`
	Text string `bson:"text" json:"text"`
}

type Session struct {
	SessionID       string     `bson:"session_id" json:"session_id"`
	Role            Role       `bson:"role" json:"role"`
	ResumeReference string     `bson:"resume_path" json:"resume_path"`
	Questions       []Question `bson:"questions" json:"questions"`

	// VectorCollection is set only when a vector index was created for the resume.
	VectorCollection *string `bson:"vector_db_collection" json:"vector_db_collection"`

	Phase     string  `bson:"phase,omitempty" json:"phase,omitempty"`
	CreatedAt float64 `bson:"created_at" json:"created_at"` // epoch seconds
}

// SessionSummary is the public view of a session, without resume details.
type SessionSummary struct {
	SessionID      string  `json:"session_id"`
	Role           Role    `json:"role"`
	QuestionsCount int     `json:"questions_count"`
	CreatedAt      float64 `json:"created_at"`
}

func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:      s.SessionID,
		Role:           s.Role,
		QuestionsCount: len(s.Questions),
		CreatedAt:      s.CreatedAt,
	}
}

type StoreStats struct {
	SessionsCount    int64   `json:"sessions_count"`
	EvaluationsCount int64   `json:"evaluations_count"`
	TotalSizeMB      float64 `json:"total_size_mb"`
	StorageDir       string  `json:"storage_dir,omitempty"`
}
