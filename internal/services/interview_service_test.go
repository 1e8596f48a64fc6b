package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/llm/llmtest"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories/filestore"
	"github.com/yoockh/yoointerview/internal/resume"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

const sampleResume = "Jane Doe is a backend engineer with six years of Go experience. " +
	"She designed a payments platform on Postgres and Kafka. " +
	"She mentors junior developers and leads system design reviews."

type recordingQueue struct {
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Publish(_ context.Context, job queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *recordingQueue) Close() error { return nil }

type fixture struct {
	svc      InterviewService
	sessions SessionService
	store    *filestore.Store
	vectors  *vectorindex.Memory
	queue    *recordingQueue
	dir      string
}

func newFixture(t *testing.T, provider llm.Provider) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := filestore.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	uploader, err := storage.NewLocalUploader(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	log := logger.NewNop()
	vectors := vectorindex.NewMemory(embedding.NewHashing(0))
	q := &recordingQueue{}

	svc := NewInterviewService(InterviewDeps{
		Store:       store,
		Processor:   resume.NewProcessor(vectors, log),
		Questions:   NewQuestionService(provider, log),
		Transitions: NewTransitionService(provider, log),
		Queue:       q,
		Vectors:     vectors,
		Uploader:    uploader,
		Log:         log,
		Now:         func() float64 { return 1700000000 },
	})
	return &fixture{
		svc:      svc,
		sessions: NewSessionService(store, vectors, uploader, log),
		store:    store,
		vectors:  vectors,
		queue:    q,
		dir:      dir,
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestInitializeEndToEnd(t *testing.T) {
	f := newFixture(t, llmtest.Failing(errors.New("model offline")))

	out, err := f.svc.Initialize(context.Background(), InitializeInput{
		Filename: "resume.txt",
		Data:     []byte(sampleResume),
		Role:     "SDE",
	})
	require.NoError(t, err)

	require.Len(t, out.Questions, 5)
	assert.NotEmpty(t, out.IntroMessage)
	assert.Len(t, out.Transitions, 5)

	raw, err := os.ReadFile(filepath.Join(f.store.Dir(), "sessions", out.SessionID+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"questions"`)

	sess, err := f.store.GetSession(context.Background(), out.SessionID)
	require.NoError(t, err)
	for i, q := range sess.Questions {
		assert.Equal(t, i+1, q.ID)
	}
	assert.Equal(t, "questions_ready", sess.Phase)
	require.NotNil(t, sess.VectorCollection)
	assert.True(t, strings.HasPrefix(*sess.VectorCollection, "resume_"))
	assert.FileExists(t, sess.ResumeReference)

	_, err = f.vectors.Open(context.Background(), *sess.VectorCollection)
	assert.NoError(t, err)
}

func TestInitializeValidation(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))

	_, err := f.svc.Initialize(context.Background(), InitializeInput{Filename: "cv.txt", Data: []byte(sampleResume), Role: "Astronaut"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.svc.Initialize(context.Background(), InitializeInput{Filename: "cv.odt", Data: []byte(sampleResume), Role: "SDE"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	assert.Zero(t, countFiles(t, filepath.Join(f.store.Dir(), "sessions")))
}

func TestInitializeEmptyResumeLeavesNoSession(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))

	_, err := f.svc.Initialize(context.Background(), InitializeInput{Filename: "cv.txt", Data: []byte("   \n "), Role: "Data Scientist"})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeProcessing))
	assert.Equal(t, 500, utils.HTTPStatus(err))

	assert.Zero(t, countFiles(t, filepath.Join(f.store.Dir(), "sessions")))
}

func TestInitializeUnreadableResumeExposesCause(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))

	_, err := f.svc.Initialize(context.Background(), InitializeInput{Filename: "cv.pdf", Data: []byte("not a pdf"), Role: "SDE"})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeProcessing))

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, msgProcessFailed, appErr.Message)
	assert.Contains(t, utils.Detail(err), "PDF")

	assert.Zero(t, countFiles(t, filepath.Join(f.store.Dir(), "sessions")))
}

func TestSubmitUnknownSession(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))

	_, err := f.svc.Submit(context.Background(), "no-such-session", []models.Turn{{QuestionID: 1}})
	require.Error(t, err)
	assert.Equal(t, 404, utils.HTTPStatus(err))

	assert.Zero(t, countFiles(t, filepath.Join(f.store.Dir(), "evaluations")))
	assert.Empty(t, f.queue.jobs)
}

func initialized(t *testing.T, f *fixture) string {
	t.Helper()
	out, err := f.svc.Initialize(context.Background(), InitializeInput{Filename: "cv.txt", Data: []byte(sampleResume), Role: "SDE"})
	require.NoError(t, err)
	return out.SessionID
}

func TestSubmitAndResultsLifecycle(t *testing.T) {
	f := newFixture(t, llmtest.Failing(errors.New("offline")))
	sessionID := initialized(t, f)

	turns := []models.Turn{{QuestionID: 1, QuestionText: "q", AnswerText: "a", AnswerDuration: 4}}
	evalID, err := f.svc.Submit(context.Background(), sessionID, turns)
	require.NoError(t, err)

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, evalID, f.queue.jobs[0].EvaluationID)
	assert.Equal(t, models.RoleSDE, f.queue.jobs[0].Role)

	out, err := f.svc.Results(context.Background(), evalID)
	require.NoError(t, err)
	assert.True(t, out.Pending)

	done := 1700000050.0
	require.NoError(t, f.store.UpdateEvaluation(context.Background(), evalID, models.EvaluationUpdate{
		Status:      models.StatusCompleted,
		Results:     &models.EvaluationResult{OverallScore: 6.5},
		CompletedAt: &done,
	}))
	out, err = f.svc.Results(context.Background(), evalID)
	require.NoError(t, err)
	assert.False(t, out.Pending)
	assert.Equal(t, 6.5, out.Result.OverallScore)
}

func TestResultsErrorExposesDetail(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))
	sessionID := initialized(t, f)

	evalID, err := f.svc.Submit(context.Background(), sessionID, nil)
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateEvaluation(context.Background(), evalID, models.EvaluationUpdate{
		Status: models.StatusError,
		Error:  "pipeline crashed",
	}))

	_, err = f.svc.Results(context.Background(), evalID)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeProcessing))
	assert.Equal(t, "pipeline crashed", utils.Detail(err))

	_, err = f.svc.Results(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSubmitPublishFailureMarksError(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))
	sessionID := initialized(t, f)
	f.queue.err = errors.New("broker down")

	_, err := f.svc.Submit(context.Background(), sessionID, nil)
	require.Error(t, err)
	assert.Equal(t, 503, utils.HTTPStatus(err))

	entries, err := os.ReadDir(filepath.Join(f.store.Dir(), "evaluations"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	evalID := strings.TrimSuffix(entries[0].Name(), ".json")

	e, err := f.store.GetEvaluation(context.Background(), evalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, e.Status)
	assert.Contains(t, e.Error, "broker down")
}

func TestSubmitRejectsNegativeDuration(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))
	_, err := f.svc.Submit(context.Background(), "whatever", []models.Turn{{QuestionID: 1, AnswerDuration: -1}})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestSessionServiceDeleteDropsCollection(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))
	sessionID := initialized(t, f)

	sess, err := f.sessions.Load(context.Background(), sessionID)
	require.NoError(t, err)

	sum, err := f.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.QuestionsCount)

	require.NoError(t, f.sessions.Delete(context.Background(), sessionID))

	_, err = f.sessions.Get(context.Background(), sessionID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	_, err = f.vectors.Open(context.Background(), *sess.VectorCollection)
	assert.ErrorIs(t, err, vectorindex.ErrIndexNotFound)
	assert.NoFileExists(t, sess.ResumeReference)
}

func TestSessionServiceSetPhaseAndStats(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))
	sessionID := initialized(t, f)

	require.NoError(t, f.sessions.SetPhase(context.Background(), sessionID, "completed"))
	sess, err := f.sessions.Load(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "completed", sess.Phase)

	st, err := f.sessions.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.SessionsCount)

	_, err = f.sessions.Cleanup(context.Background(), 0)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestReportsWithoutArchive(t *testing.T) {
	f := newFixture(t, llmtest.Fixed("x"))
	_, err := f.svc.Reports(context.Background(), "", 10)
	assert.Equal(t, 503, utils.HTTPStatus(err))
}
