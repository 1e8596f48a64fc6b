package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/speech"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var errClientGone = errors.New("websocket client disconnected")

// WSHandler runs a live interview over a websocket. Prompts go out as JSON
// text frames and synthesized audio as binary frames; answers come back as
// JSON. When the last answer is in, the transcript is submitted for
// evaluation like a REST submission.
type WSHandler struct {
	sessions    services.SessionService
	interview   services.InterviewService
	questions   services.QuestionService
	transitions services.TransitionService
	synth       tts.Synthesizer
	stt         stt.Provider
	log         *logrus.Logger
	upgrader    websocket.Upgrader

	// ListenTimeout bounds one wait for an answer; MaxListenCycles silent
	// waits record an empty answer.
	ListenTimeout   time.Duration
	MaxListenCycles int
}

type WSDeps struct {
	Sessions    services.SessionService
	Interview   services.InterviewService
	Questions   services.QuestionService
	Transitions services.TransitionService
	// Synth and STT are optional. Without Synth the interview is text only.
	Synth tts.Synthesizer
	STT   stt.Provider
	Log   *logrus.Logger
}

func NewWSHandler(d WSDeps) *WSHandler {
	log := d.Log
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		sessions:    d.Sessions,
		interview:   d.Interview,
		questions:   d.Questions,
		transitions: d.Transitions,
		synth:       d.Synth,
		stt:         d.STT,
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ListenTimeout:   30 * time.Second,
		MaxListenCycles: 10,
	}
}

type wsClientMsg struct {
	Type        string  `json:"type"` // answer|end
	Text        string  `json:"text"`
	AudioBase64 string  `json:"audio_base64"`
	Language    string  `json:"language"`
	Duration    float64 `json:"duration"`
}

type wsServerMsg struct {
	Type         string `json:"type"`
	State        string `json:"state,omitempty"`
	Text         string `json:"text,omitempty"`
	EvaluationID string `json:"evaluation_id,omitempty"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(kind int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(kind, b)
}

func (w *wsConn) writeJSON(msg wsServerMsg) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, b)
}

func (w *wsConn) writeError(code utils.Code, message string) {
	_ = w.writeJSON(wsServerMsg{Type: "error", Code: string(code), Message: message})
}

// Play forwards one audio chunk to the client as a binary frame.
func (w *wsConn) Play(_ context.Context, audio []byte) error {
	return w.write(websocket.BinaryMessage, audio)
}

// wsSpeaker announces every text before its audio follows.
type wsSpeaker struct {
	conn    *wsConn
	session *speech.Session
}

func (s *wsSpeaker) SpeakText(ctx context.Context, text string) speech.Stats {
	if err := s.conn.writeJSON(wsServerMsg{Type: "speak", Text: text}); err != nil {
		return speech.Stats{Err: err}
	}
	return s.session.SpeakText(ctx, text)
}

// wsListener hands the driver answers decoded by the read loop.
type wsListener struct {
	answers <-chan interview.Answer
	gone    <-chan struct{}
	now     func() time.Time

	question int
	since    time.Time
}

func (l *wsListener) Listen(ctx context.Context, n int, timeout time.Duration) (interview.Answer, error) {
	if l.since.IsZero() || l.question != n {
		l.question, l.since = n, l.now()
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case a := <-l.answers:
		if a.Duration <= 0 {
			a.Duration = l.now().Sub(l.since).Seconds()
		}
		return a, nil
	case <-t.C:
		return interview.Answer{}, interview.ErrListenTimeout
	case <-l.gone:
		return interview.Answer{}, errClientGone
	case <-ctx.Done():
		return interview.Answer{}, ctx.Err()
	}
}

func (h *WSHandler) InterviewWS(c *gin.Context) {
	const op = "WSHandler.InterviewWS"

	sessionID := c.Param("session_id")
	sess, err := h.sessions.Load(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if st, perr := interview.ParseState(sess.Phase); perr == nil && st.Phase != interview.PhaseQuestionsReady {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "interview already started or finished", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "role": sess.Role})
	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	answers := make(chan interview.Answer)
	gone := make(chan struct{})
	go h.readLoop(ctx, wc, answers, gone, cancel)
	go h.pingLoop(ctx, wc)

	worker := speech.NewWorker(wc, make(chan []byte, 64), h.log)
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), wsWriteWait)
		defer stop()
		_ = worker.Stop(stopCtx)
	}()

	d := &interview.Driver{
		Speaker:         &wsSpeaker{conn: wc, session: speech.NewSession(h.synth, worker, h.log)},
		Listener:        &wsListener{answers: answers, gone: gone, now: time.Now},
		Transitions:     h.transitions,
		Log:             h.log,
		ListenTimeout:   h.ListenTimeout,
		MaxListenCycles: h.MaxListenCycles,
		DeferScoring:    true,
		OnState: func(st interview.State) {
			_ = wc.writeJSON(wsServerMsg{Type: "state", State: st.String()})
			if err := h.sessions.SetPhase(context.WithoutCancel(ctx), sessionID, st.String()); err != nil {
				log.WithError(err).Warn("failed to persist interview phase")
			}
		},
	}

	tr, err := d.Run(ctx, sess, h.questions.IntroMessage(ctx, sess.Role))
	if err != nil {
		log.WithError(err).Info("live interview ended early")
		_ = h.sessions.SetPhase(context.WithoutCancel(ctx), sessionID, string(interview.PhaseAborted))
		return
	}

	evaluationID, err := h.interview.Submit(ctx, sessionID, tr.Turns)
	if err != nil {
		log.WithError(err).Error("failed to submit live interview")
		wc.writeError(utils.CodeUnavailable, "failed to submit interview for evaluation")
		return
	}
	log.WithField("evaluation_id", evaluationID).Info("live interview submitted")
	_ = wc.writeJSON(wsServerMsg{Type: "submitted", EvaluationID: evaluationID, Message: msgSubmitted})
	_ = wc.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview complete"))
}

func (h *WSHandler) readLoop(ctx context.Context, wc *wsConn, answers chan<- interview.Answer, gone chan struct{}, cancel context.CancelFunc) {
	defer close(gone)

	conn := wc.c
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.writeError(utils.CodeInvalidArgument, "invalid json")
			continue
		}

		switch msg.Type {
		case "answer":
			ans, err := h.decodeAnswer(ctx, msg)
			if err != nil {
				wc.writeError(utils.CodeInvalidArgument, err.Error())
				continue
			}
			select {
			case answers <- ans:
			case <-ctx.Done():
				return
			}
		case "end":
			cancel()
			return
		default:
			wc.writeError(utils.CodeInvalidArgument, "unknown message type")
		}
	}
}

func (h *WSHandler) decodeAnswer(ctx context.Context, msg wsClientMsg) (interview.Answer, error) {
	if msg.Duration < 0 {
		return interview.Answer{}, errors.New("duration must not be negative")
	}
	if msg.AudioBase64 == "" {
		return interview.Answer{Text: strings.TrimSpace(msg.Text), Duration: msg.Duration}, nil
	}
	if h.stt == nil {
		return interview.Answer{}, errors.New("speech recognition is not configured")
	}

	audio, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
	if err != nil {
		return interview.Answer{}, errors.New("audio_base64 is not valid base64")
	}
	text, _, err := h.stt.Transcribe(ctx, audio, msg.Language)
	if errors.Is(err, stt.ErrNoSpeech) {
		return interview.Answer{Duration: msg.Duration}, nil
	}
	if err != nil {
		return interview.Answer{}, errors.New("transcription failed")
	}
	return interview.Answer{Text: text, Duration: msg.Duration}, nil
}

func (h *WSHandler) pingLoop(ctx context.Context, wc *wsConn) {
	t := time.NewTicker(wsPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wc.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

var _ speech.Player = (*wsConn)(nil)
