package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ResumeChunk is one embedded passage of a resume, grouped by collection.
type ResumeChunk struct {
	ID         string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Collection string          `gorm:"column:collection;type:text;index" json:"collection"`
	Position   int             `gorm:"column:position;type:integer" json:"position"`
	Content    string          `gorm:"column:content;type:text" json:"content"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	Metadata   datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (ResumeChunk) TableName() string { return "resume_chunks" }
