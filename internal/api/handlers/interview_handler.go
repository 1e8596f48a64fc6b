package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/resume"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	maxResumeBytes = 10 << 20
	maxAudioBytes  = 10 << 20

	msgSubmitted = "Interview submitted successfully. Processing results..."
	msgPending   = "Results are still being processed. Please try again in a moment."
	msgBadRole   = "Invalid role. Must be one of: SDE, DataScientist, ProductManager"
)

type InterviewHandler struct {
	svc services.InterviewService
	stt stt.Provider
}

func NewInterviewHandler(svc services.InterviewService, speech stt.Provider) *InterviewHandler {
	RegisterValidators()
	return &InterviewHandler{svc: svc, stt: speech}
}

type initializeQuery struct {
	Role string `form:"role" binding:"required,interview_role"`
}

type transitionDTO struct {
	Text string `json:"text"`
}

type initializeResponse struct {
	SessionID    string            `json:"session_id"`
	IntroMessage string            `json:"intro_message"`
	Questions    []models.Question `json:"questions"`
	Transitions  []transitionDTO   `json:"transitions"`
}

func (h *InterviewHandler) Initialize(c *gin.Context) {
	const op = "InterviewHandler.Initialize"

	var q initializeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, msgBadRole, err))
		return
	}

	fh, err := c.FormFile("resume")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'resume'", err))
		return
	}
	if !resume.Supported(fh.Filename) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "Unsupported file format. Please upload PDF, DOCX, or TXT", nil))
		return
	}
	if fh.Size <= 0 || fh.Size > maxResumeBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file must be between 1 byte and 10MB", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxResumeBytes))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	out, err := h.svc.Initialize(c.Request.Context(), services.InitializeInput{
		Filename: fh.Filename,
		Data:     data,
		Role:     q.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("session_id", out.SessionID)

	transitions := make([]transitionDTO, len(out.Transitions))
	for i, t := range out.Transitions {
		transitions[i] = transitionDTO{Text: t}
	}
	c.JSON(http.StatusOK, initializeResponse{
		SessionID:    out.SessionID,
		IntroMessage: out.IntroMessage,
		Questions:    out.Questions,
		Transitions:  transitions,
	})
}

type submitRequest struct {
	SessionID     string        `json:"session_id" binding:"required"`
	InterviewData []models.Turn `json:"interview_data" binding:"dive"`
}

func (h *InterviewHandler) Submit(c *gin.Context) {
	const op = "InterviewHandler.Submit"

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid submission body", err))
		return
	}
	c.Set("session_id", req.SessionID)

	evaluationID, err := h.svc.Submit(c.Request.Context(), req.SessionID, req.InterviewData)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"evaluation_id": evaluationID,
		"message":       msgSubmitted,
	})
}

func (h *InterviewHandler) Results(c *gin.Context) {
	out, err := h.svc.Results(c.Request.Context(), c.Param("evaluation_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if out.Pending {
		c.JSON(http.StatusAccepted, gin.H{"message": msgPending})
		return
	}
	c.JSON(http.StatusOK, out.Result)
}

// Transcribe turns one recorded answer into text.
func (h *InterviewHandler) Transcribe(c *gin.Context) {
	const op = "InterviewHandler.Transcribe"

	if h.stt == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "speech recognition is not configured", nil))
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'audio'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > maxAudioBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio must be between 1 byte and 10MB", nil))
		return
	}
	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	text, confidence, err := h.stt.Transcribe(c.Request.Context(), audio, strings.TrimSpace(c.PostForm("language")))
	if errors.Is(err, stt.ErrNoSpeech) {
		c.JSON(http.StatusUnprocessableEntity, APIError{Code: utils.CodeInvalidArgument, Message: "Could not understand audio"})
		return
	}
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "transcription failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "confidence": confidence})
}
