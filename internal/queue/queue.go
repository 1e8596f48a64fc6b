// Package queue hands submitted interviews over to the evaluation workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yoockh/yoointerview/internal/models"
)

const (
	DefaultTopic = "evaluations"
	DefaultGroup = "evaluation-workers"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("queue: closed")

// Job is one submitted interview waiting to be evaluated.
type Job struct {
	EvaluationID string        `json:"evaluation_id"`
	SessionID    string        `json:"session_id"`
	Role         models.Role   `json:"role"`
	Turns        []models.Turn `json:"interview_data"`
}

// Handler processes one job. A nil error acknowledges the delivery.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Publish(ctx context.Context, job Job) error
	// Consume delivers jobs to h until ctx is done. Deliveries run on the
	// calling goroutine; callers bound their own concurrency.
	Consume(ctx context.Context, h Handler) error
	Close() error
}

func encode(job Job) ([]byte, error) {
	if job.EvaluationID == "" {
		return nil, errors.New("queue: job without evaluation id")
	}
	b, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: encode job: %w", err)
	}
	return b, nil
}

func decode(b []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return Job{}, fmt.Errorf("queue: decode job: %w", err)
	}
	if job.EvaluationID == "" {
		return Job{}, errors.New("queue: job without evaluation id")
	}
	return job, nil
}
