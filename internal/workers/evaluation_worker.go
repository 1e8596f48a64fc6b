package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

// EvaluationWorkerPool consumes submitted interviews and writes their final
// status. It is the only writer of an evaluation after submission.
type EvaluationWorkerPool struct {
	Queue     queue.Queue
	Store     repositories.SessionStore
	Evaluator services.EvaluationService
	// Reports archives completed results when set.
	Reports    postgres.ReportRepository
	NumWorkers int
	Timeout    time.Duration

	Logger *logrus.Logger
	Now    func() float64

	wg sync.WaitGroup
}

func (p *EvaluationWorkerPool) Start(ctx context.Context) error {
	if p.Queue == nil || p.Store == nil || p.Evaluator == nil {
		return errors.New("EvaluationWorkerPool missing dependency: Queue/Store/Evaluator must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.Now == nil {
		p.Now = utils.UnixNow
	}

	for i := 0; i < p.NumWorkers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			log := p.Logger.WithField("worker", worker)
			for {
				err := p.Queue.Consume(ctx, p.Handle)
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("consumer stopped; restarting")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}(i + 1)
	}
	p.Logger.WithField("workers", p.NumWorkers).Info("evaluation workers started")
	return nil
}

// Wait blocks until every consumer has returned after ctx was cancelled.
func (p *EvaluationWorkerPool) Wait() { p.wg.Wait() }

// Handle runs the pipeline for one job and performs the single status write.
// Jobs whose evaluation is gone or already finished are skipped.
func (p *EvaluationWorkerPool) Handle(ctx context.Context, job queue.Job) error {
	log := p.Logger.WithFields(logrus.Fields{
		"evaluation_id": job.EvaluationID,
		"session_id":    job.SessionID,
		"role":          job.Role,
	})

	current, err := p.Store.GetEvaluation(ctx, job.EvaluationID)
	if errors.Is(err, utils.ErrNotFound) {
		log.Warn("evaluation record missing; skipping job")
		return nil
	}
	if err != nil {
		return err
	}
	if current.Status != models.StatusProcessing {
		log.WithField("status", current.Status).Info("evaluation already finished; skipping job")
		return nil
	}

	started := time.Now()
	evalCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	result, evalErr := p.Evaluator.Evaluate(evalCtx, job.Turns, job.Role)
	cancel()

	// shutdown: no status write, and the error keeps the job unacknowledged
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("evaluation interrupted by shutdown; leaving job for redelivery")
		return err
	}

	completedAt := p.Now()
	update := models.EvaluationUpdate{CompletedAt: &completedAt}
	if evalErr != nil {
		update.Status = models.StatusError
		update.Error = evalErr.Error()
	} else {
		update.Status = models.StatusCompleted
		update.Results = result
	}

	if err := p.Store.UpdateEvaluation(ctx, job.EvaluationID, update); err != nil {
		log.WithError(err).Error("failed to record evaluation outcome")
		return err
	}

	if evalErr != nil {
		log.WithError(evalErr).Error("evaluation failed")
		return nil
	}
	log.WithFields(logrus.Fields{
		"overall_score": result.OverallScore,
		"turns":         len(job.Turns),
		"duration_ms":   time.Since(started).Milliseconds(),
	}).Info("evaluation completed")

	if p.Reports != nil {
		if err := p.archive(ctx, job, result, completedAt); err != nil {
			log.WithError(err).Warn("report archive failed")
		}
	}
	return nil
}

func (p *EvaluationWorkerPool) archive(ctx context.Context, job queue.Job, result *models.EvaluationResult, completedAt float64) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	sec, frac := splitSeconds(completedAt)
	return p.Reports.Upsert(ctx, &models.InterviewReport{
		EvaluationID:         job.EvaluationID,
		SessionID:            job.SessionID,
		Role:                 string(job.Role),
		OverallScore:         result.OverallScore,
		CommunicationClarity: result.Analytics.CommunicationClarity,
		TechnicalDepth:       result.Analytics.TechnicalDepth,
		Recommendations:      result.Recommendations,
		Results:              raw,
		CompletedAt:          time.Unix(sec, frac).UTC(),
	})
}

func splitSeconds(v float64) (int64, int64) {
	sec := int64(v)
	return sec, int64((v - float64(sec)) * 1e9)
}

