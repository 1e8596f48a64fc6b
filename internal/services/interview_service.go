package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/resume"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

const (
	msgEmptyResume      = "Resume file appears to be empty or could not be processed"
	msgProcessFailed    = "Failed to process resume"
	msgSessionNotFound  = "Session not found"
	msgEvalNotFound     = "Evaluation not found"
	msgEvaluationFailed = "Evaluation failed"
)

type InitializeInput struct {
	Filename string
	Data     []byte
	Role     string
}

type InitializeOutput struct {
	SessionID    string
	IntroMessage string
	Questions    []models.Question
	Transitions  []string
}

// ResultsOutcome is either Pending or carries the completed result.
type ResultsOutcome struct {
	Pending bool
	Result  *models.EvaluationResult
}

type InterviewService interface {
	// Initialize validates the upload, indexes the resume and prepares the
	// questions. A failed call leaves no session behind.
	Initialize(ctx context.Context, in InitializeInput) (*InitializeOutput, error)
	// Submit records the turns as a processing evaluation and hands them to
	// the evaluation workers. Callers must not submit the same session twice
	// concurrently.
	Submit(ctx context.Context, sessionID string, turns []models.Turn) (string, error)
	Results(ctx context.Context, evaluationID string) (ResultsOutcome, error)
	Reports(ctx context.Context, role string, limit int) ([]models.InterviewReport, error)
}

type InterviewDeps struct {
	Store       repositories.SessionStore
	Processor   *resume.Processor
	Questions   QuestionService
	Transitions TransitionService
	Queue       queue.Queue
	Vectors     vectorindex.Store

	// Uploader archives the original file; without one the session keeps
	// only the file name.
	Uploader storage.Uploader
	Archive  postgres.ReportRepository
	Log      *logrus.Logger
	Now      func() float64
}

type interviewService struct {
	InterviewDeps
}

func NewInterviewService(deps InterviewDeps) InterviewService {
	if deps.Now == nil {
		deps.Now = utils.UnixNow
	}
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	return &interviewService{InterviewDeps: deps}
}

func (s *interviewService) Initialize(ctx context.Context, in InitializeInput) (*InitializeOutput, error) {
	const op = "InterviewService.Initialize"

	role, ok := models.ParseRole(in.Role)
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid role. Must be one of: SDE, DataScientist, ProductManager", nil)
	}
	if !resume.Supported(in.Filename) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Unsupported file format. Please upload PDF, DOCX, or TXT", nil)
	}

	sessionID := uuid.NewString()
	log := s.Log.WithFields(logrus.Fields{"session_id": sessionID, "role": role})
	m := interview.NewMachine()
	_ = m.StartResumeProcessing()

	text, err := resume.Extract(in.Filename, in.Data)
	if err != nil {
		_ = m.Abort()
		log.WithError(err).Warn("resume extraction failed")
		return nil, utils.E(utils.CodeProcessing, op, msgProcessFailed, err)
	}

	idx, err := s.Processor.Process(ctx, sessionID, text)
	if err != nil {
		_ = m.Abort()
		log.WithError(err).Warn("resume processing failed")
		if errors.Is(err, resume.ErrEmpty) {
			return nil, utils.E(utils.CodeProcessing, op, msgEmptyResume, err)
		}
		return nil, utils.E(utils.CodeProcessing, op, msgProcessFailed, err)
	}
	collection := idx.Name()

	// from here on a failure must drop the index again
	rollback := func(storedPath string) {
		bg := context.WithoutCancel(ctx)
		if err := s.Vectors.Drop(bg, collection); err != nil {
			log.WithError(err).Warn("drop index after failed initialize")
		}
		if storedPath != "" && s.Uploader != nil {
			if err := s.Uploader.Delete(bg, storedPath); err != nil {
				log.WithError(err).Warn("delete resume after failed initialize")
			}
		}
	}

	questions := s.Questions.Generate(ctx, idx, role)
	if err := m.QuestionsReady(len(questions)); err != nil {
		rollback("")
		return nil, utils.E(utils.CodeInternal, op, "failed to prepare questions", err)
	}
	intro := s.Questions.IntroMessage(ctx, role)
	transitions := s.Transitions.Generate(ctx, len(questions))

	ref, uploaded := in.Filename, ""
	if s.Uploader != nil {
		ext := "." + resume.Ext(in.Filename)
		ref, err = s.Uploader.Upload(ctx, storage.ObjectName(sessionID, ext), storage.ContentType(ext), bytes.NewReader(in.Data))
		if err != nil {
			rollback("")
			return nil, utils.E(utils.CodeInternal, op, "failed to store resume", err)
		}
		uploaded = ref
	}

	sess := &models.Session{
		SessionID:        sessionID,
		Role:             role,
		ResumeReference:  ref,
		Questions:        questions,
		VectorCollection: &collection,
		Phase:            m.State().String(),
		CreatedAt:        s.Now(),
	}
	if err := s.Store.StoreSession(ctx, sess); err != nil {
		rollback(uploaded)
		return nil, utils.E(utils.CodeInternal, op, "failed to save session", err)
	}

	log.WithFields(logrus.Fields{"questions": len(questions), "index": collection}).Info("interview initialized")
	return &InitializeOutput{
		SessionID:    sessionID,
		IntroMessage: intro,
		Questions:    questions,
		Transitions:  transitions,
	}, nil
}

func (s *interviewService) Submit(ctx context.Context, sessionID string, turns []models.Turn) (string, error) {
	const op = "InterviewService.Submit"

	if strings.TrimSpace(sessionID) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	for _, t := range turns {
		if t.AnswerDuration < 0 {
			return "", utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("answer_duration for question %d must not be negative", t.QuestionID), nil)
		}
	}

	sess, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeNotFound, op, msgSessionNotFound, err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if turns == nil {
		turns = []models.Turn{}
	}

	eval := &models.Evaluation{
		EvaluationID:  uuid.NewString(),
		SessionID:     sess.SessionID,
		Role:          sess.Role,
		InterviewData: turns,
		SubmittedAt:   s.Now(),
		Status:        models.StatusProcessing,
	}
	if err := s.Store.StoreEvaluation(ctx, eval); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to save evaluation", err)
	}

	job := queue.Job{EvaluationID: eval.EvaluationID, SessionID: sess.SessionID, Role: sess.Role, Turns: turns}
	if err := s.Queue.Publish(ctx, job); err != nil {
		completedAt := s.Now()
		upd := models.EvaluationUpdate{Status: models.StatusError, Error: "evaluation could not be queued: " + err.Error(), CompletedAt: &completedAt}
		if uerr := s.Store.UpdateEvaluation(context.WithoutCancel(ctx), eval.EvaluationID, upd); uerr != nil {
			s.Log.WithError(uerr).WithField("evaluation_id", eval.EvaluationID).Error("failed to mark unqueued evaluation")
		}
		return "", utils.E(utils.CodeUnavailable, op, "evaluation queue unavailable", err)
	}

	s.Log.WithFields(logrus.Fields{
		"session_id":    sess.SessionID,
		"evaluation_id": eval.EvaluationID,
		"turns":         len(turns),
	}).Info("interview submitted")
	return eval.EvaluationID, nil
}

func (s *interviewService) Results(ctx context.Context, evaluationID string) (ResultsOutcome, error) {
	const op = "InterviewService.Results"

	eval, err := s.Store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return ResultsOutcome{}, utils.E(utils.CodeNotFound, op, msgEvalNotFound, err)
		}
		return ResultsOutcome{}, utils.E(utils.CodeInternal, op, "failed to load evaluation", err)
	}

	switch eval.Status {
	case models.StatusProcessing:
		return ResultsOutcome{Pending: true}, nil
	case models.StatusCompleted:
		if eval.Results == nil {
			return ResultsOutcome{}, utils.E(utils.CodeInternal, op, "completed evaluation has no results", nil)
		}
		return ResultsOutcome{Result: eval.Results}, nil
	default:
		detail := eval.Error
		if detail == "" {
			detail = "unknown error"
		}
		return ResultsOutcome{}, utils.E(utils.CodeProcessing, op, msgEvaluationFailed, errors.New(detail))
	}
}

func (s *interviewService) Reports(ctx context.Context, role string, limit int) ([]models.InterviewReport, error) {
	const op = "InterviewService.Reports"

	if s.Archive == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "report archive is not configured", nil)
	}
	if role != "" {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, utils.E(utils.CodeInvalidArgument, op, "unknown role", nil)
		}
		role = string(r)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	out, err := s.Archive.List(ctx, role, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list reports", err)
	}
	return out, nil
}
