package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
	"github.com/yoockh/yoointerview/internal/providers/llm/llmtest"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories/filestore"
	"github.com/yoockh/yoointerview/internal/resume"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

const sampleResume = "Sam Lee builds distributed systems in Go. " +
	"Led the migration of a billing service to Kubernetes and Postgres. " +
	"Runs design reviews and on-call rotations."

type fakeSTT struct {
	text string
	err  error
}

func (f fakeSTT) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return f.text, 0.9, f.err
}

func (fakeSTT) Close() error { return nil }

type testAPI struct {
	router *gin.Engine
	store  *filestore.Store
	queue  *queue.GoChannel
}

func newTestAPI(t *testing.T, speech stt.Provider) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store, err := filestore.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	uploader, err := storage.NewLocalUploader(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	log := logger.NewNop()
	q, err := queue.NewGoChannel(16, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	provider := llmtest.Failing(errors.New("model offline"))
	vectors := vectorindex.NewMemory(embedding.NewHashing(0))
	questions := services.NewQuestionService(provider, log)
	transitions := services.NewTransitionService(provider, log)

	interviewSvc := services.NewInterviewService(services.InterviewDeps{
		Store:       store,
		Processor:   resume.NewProcessor(vectors, log),
		Questions:   questions,
		Transitions: transitions,
		Queue:       q,
		Vectors:     vectors,
		Uploader:    uploader,
		Log:         log,
	})
	sessionSvc := services.NewSessionService(store, vectors, uploader, log)

	ih := NewInterviewHandler(interviewSvc, speech)
	sh := NewSessionHandler(sessionSvc)
	ah := NewAdminHandler(sessionSvc, interviewSvc)
	ws := NewWSHandler(WSDeps{
		Sessions:    sessionSvc,
		Interview:   interviewSvc,
		Questions:   questions,
		Transitions: transitions,
		Log:         log,
	})
	ws.ListenTimeout = time.Second

	r := gin.New()
	r.GET("/health", sh.Health)
	r.POST("/api/interview/initialize", ih.Initialize)
	r.POST("/api/interview/submit", ih.Submit)
	r.GET("/api/interview/results/:evaluation_id", ih.Results)
	r.POST("/api/interview/transcribe", ih.Transcribe)
	r.GET("/api/sessions/:session_id", sh.Get)
	r.DELETE("/api/sessions/:session_id", sh.Delete)
	r.GET("/admin/stats", ah.Stats)
	r.POST("/admin/cleanup", ah.Cleanup)
	r.GET("/admin/reports", ah.Reports)
	r.GET("/ws/interview/:session_id", ws.InterviewWS)

	return &testAPI{router: r, store: store, queue: q}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, url, field, filename string, data []byte, extra map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (a *testAPI) initialize(t *testing.T) initializeResponse {
	t.Helper()
	w := a.do(multipartRequest(t, "/api/interview/initialize?role=SDE", "resume", "resume.txt", []byte(sampleResume), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out initializeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var out APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func submitBody(t *testing.T, sessionID string, turns []models.Turn) *http.Request {
	t.Helper()
	b, err := json.Marshal(submitRequest{SessionID: sessionID, InterviewData: turns})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/interview/submit", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestInitializeReturnsQuestionsAndTransitions(t *testing.T) {
	a := newTestAPI(t, nil)
	out := a.initialize(t)

	assert.NotEmpty(t, out.SessionID)
	assert.NotEmpty(t, out.IntroMessage)
	require.Len(t, out.Questions, 5)
	for i, q := range out.Questions {
		assert.Equal(t, i+1, q.ID)
	}
	require.Len(t, out.Transitions, 5)
	for _, tr := range out.Transitions {
		assert.NotEmpty(t, tr.Text)
	}
}

func TestInitializeRejectsBadInput(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(multipartRequest(t, "/api/interview/initialize?role=Designer", "resume", "resume.txt", []byte(sampleResume), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgBadRole, decodeError(t, w).Message)

	w = a.do(multipartRequest(t, "/api/interview/initialize?role=SDE", "resume", "resume.rtf", []byte(sampleResume), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "Unsupported file format")

	w = a.do(multipartRequest(t, "/api/interview/initialize?role=SDE", "", "", nil, map[string]string{"note": "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitializeEmptyResumeIsProcessingError(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(multipartRequest(t, "/api/interview/initialize?role=SDE", "resume", "resume.txt", []byte("   "), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, utils.CodeProcessing, decodeError(t, w).Code)
}

func TestSubmitValidation(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(submitBody(t, "missing", []models.Turn{{QuestionID: 1, AnswerText: "hi", AnswerDuration: 3}}))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session not found", decodeError(t, w).Message)

	out := a.initialize(t)
	w = a.do(submitBody(t, out.SessionID, []models.Turn{{QuestionID: 1, AnswerText: "hi", AnswerDuration: -1}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/interview/submit", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, a.do(req).Code)
}

func TestSubmitAndPollResults(t *testing.T) {
	a := newTestAPI(t, nil)
	out := a.initialize(t)

	w := a.do(submitBody(t, out.SessionID, []models.Turn{
		{QuestionID: 1, QuestionText: out.Questions[0].Text, AnswerText: "I split the monolith", AnswerDuration: 20},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sub struct {
		EvaluationID string `json:"evaluation_id"`
		Message      string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	require.NotEmpty(t, sub.EvaluationID)
	assert.Equal(t, msgSubmitted, sub.Message)

	resultsURL := "/api/interview/results/" + sub.EvaluationID
	w = a.do(httptest.NewRequest(http.MethodGet, resultsURL, nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"message":"`+msgPending+`"}`, w.Body.String())

	done := 1700000100.0
	require.NoError(t, a.store.UpdateEvaluation(context.Background(), sub.EvaluationID, models.EvaluationUpdate{
		Status:      models.StatusCompleted,
		Results:     &models.EvaluationResult{OverallScore: 7.5, OverallFeedback: "Good"},
		CompletedAt: &done,
	}))

	w = a.do(httptest.NewRequest(http.MethodGet, resultsURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var res models.EvaluationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 7.5, res.OverallScore)
}

func TestResultsErrorCarriesDetail(t *testing.T) {
	a := newTestAPI(t, nil)
	require.NoError(t, a.store.StoreEvaluation(context.Background(), &models.Evaluation{
		EvaluationID: "ev-1",
		SessionID:    "s-1",
		Role:         models.RoleSDE,
		Status:       models.StatusError,
		Error:        "evaluation timed out",
	}))

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/interview/results/ev-1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "Evaluation failed", body.Message)
	assert.Equal(t, "evaluation timed out", body.Detail)

	w = a.do(httptest.NewRequest(http.MethodGet, "/api/interview/results/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionGetAndDelete(t *testing.T) {
	a := newTestAPI(t, nil)
	out := a.initialize(t)
	url := "/api/sessions/" + out.SessionID

	w := a.do(httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var sum models.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 5, sum.QuestionsCount)
	assert.Equal(t, models.RoleSDE, sum.Role)
	assert.NotContains(t, w.Body.String(), "resume_path")

	assert.Equal(t, http.StatusOK, a.do(httptest.NewRequest(http.MethodDelete, url, nil)).Code)
	assert.Equal(t, http.StatusNotFound, a.do(httptest.NewRequest(http.MethodGet, url, nil)).Code)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, nil)
	w := a.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Greater(t, body["timestamp"].(float64), 0.0)
}

func TestTranscribe(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt ")

	a := newTestAPI(t, nil)
	w := a.do(multipartRequest(t, "/api/interview/transcribe", "audio", "a.wav", audio, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	a = newTestAPI(t, fakeSTT{err: stt.ErrNoSpeech})
	w = a.do(multipartRequest(t, "/api/interview/transcribe", "audio", "a.wav", audio, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	a = newTestAPI(t, fakeSTT{text: "hello there"})
	w = a.do(multipartRequest(t, "/api/interview/transcribe", "audio", "a.wav", audio, map[string]string{"language": "en-US"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello there")
}

func TestAdminEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)
	a.initialize(t)

	w := a.do(httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var st models.StoreStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, int64(1), st.SessionsCount)

	assert.Equal(t, http.StatusBadRequest, a.do(httptest.NewRequest(http.MethodPost, "/admin/cleanup?max_age_hours=0", nil)).Code)

	w = a.do(httptest.NewRequest(http.MethodPost, "/admin/cleanup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0,"max_age_hours":24}`, w.Body.String())

	// no report archive configured
	w = a.do(httptest.NewRequest(http.MethodGet, "/admin/reports?role=SDE", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLiveInterviewOverWebsocket(t *testing.T) {
	a := newTestAPI(t, nil)
	out := a.initialize(t)

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/interview/" + out.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// intro plus one answer per question
	for i := 0; i <= len(out.Questions); i++ {
		require.NoError(t, conn.WriteJSON(wsClientMsg{Type: "answer", Text: "answer", Duration: 12}))
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var states []string
	var speaks int
	var submitted wsServerMsg
	for submitted.Type == "" {
		var msg wsServerMsg
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case "state":
			states = append(states, msg.State)
		case "speak":
			speaks++
		case "submitted":
			submitted = msg
		case "error":
			t.Fatalf("unexpected error message: %+v", msg)
		}
	}

	require.NotEmpty(t, submitted.EvaluationID)
	assert.Equal(t, "completed", states[len(states)-1])
	assert.Contains(t, states, "awaiting_answer(5)")
	assert.NotContains(t, states, "evaluating(1)")
	assert.Equal(t, 2+5*2, speaks)

	ev, err := a.store.GetEvaluation(context.Background(), submitted.EvaluationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, ev.Status)
	assert.Len(t, ev.InterviewData, 5)

	sess, err := a.store.GetSession(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "completed", sess.Phase)

	// a finished interview cannot be replayed
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
