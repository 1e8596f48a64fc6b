package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultElevenLabsWSBase = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	defaultElevenLabsModel  = "eleven_flash_v2_5"
	writeTimeout            = 5 * time.Second
	// ElevenLabs closes input streams after 20s without traffic
	defaultReadIdleTimeout = 20 * time.Second
)

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
	// BaseWSURL may contain a {voice_id} placeholder.
	BaseWSURL string

	Stability       float64
	SimilarityBoost float64
	ChunkSchedule   []int

	// ReadIdleTimeout bounds the wait for each server message.
	ReadIdleTimeout time.Duration
}

type ElevenLabs struct {
	cfg ElevenLabsConfig
}

func NewElevenLabs(cfg ElevenLabsConfig) (*ElevenLabs, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, errors.New("elevenlabs voice id is required")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultElevenLabsModel
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.8
	}
	if len(cfg.ChunkSchedule) == 0 {
		cfg.ChunkSchedule = []int{50, 120, 160, 290}
	}
	if cfg.ReadIdleTimeout <= 0 {
		cfg.ReadIdleTimeout = defaultReadIdleTimeout
	}
	return &ElevenLabs{cfg: cfg}, nil
}

func (e *ElevenLabs) Connect(ctx context.Context) (Stream, error) {
	wsURL, err := buildElevenLabsWSURL(e.cfg.BaseWSURL, e.cfg.VoiceID, e.cfg.ModelID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial elevenlabs: %w", err)
	}

	s := &elevenLabsStream{conn: conn, idle: e.cfg.ReadIdleTimeout}
	if err := s.writeJSON(ctx, e.handshake()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("elevenlabs handshake: %w", err)
	}
	return s, nil
}

func (e *ElevenLabs) handshake() map[string]any {
	return map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":         e.cfg.Stability,
			"similarity_boost":  e.cfg.SimilarityBoost,
			"use_speaker_boost": false,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": e.cfg.ChunkSchedule,
		},
		"xi_api_key": e.cfg.APIKey,
	}
}

type elevenLabsStream struct {
	conn *websocket.Conn
	idle time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *elevenLabsStream) SendText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return s.writeJSON(ctx, map[string]any{"text": text})
}

func (s *elevenLabsStream) Flush(ctx context.Context) error {
	return s.writeJSON(ctx, map[string]any{"text": "", "flush": true})
}

// Receive blocks until the next audio or final message. Messages carrying
// neither are skipped.
func (s *elevenLabsStream) Receive(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		deadline := time.Now().Add(s.idle)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = s.conn.SetReadDeadline(deadline)

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return Message{}, err
		}

		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		var audio []byte
		if b64 := decodeString(msg["audio"]); b64 != "" {
			if audio, err = decodeBase64Any(b64); err != nil {
				return Message{}, fmt.Errorf("elevenlabs audio: %w", err)
			}
		}
		final := decodeBool(msg["isFinal"]) || decodeBool(msg["is_final"])
		if len(audio) == 0 && !final {
			if serverErr := decodeString(msg["error"]); serverErr != "" {
				return Message{}, fmt.Errorf("elevenlabs: %s", serverErr)
			}
			continue
		}
		return Message{Audio: audio, Final: final}, nil
	}
}

func (s *elevenLabsStream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

func (s *elevenLabsStream) writeJSON(ctx context.Context, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	return s.conn.WriteJSON(payload)
}

func buildElevenLabsWSURL(base, voiceID, modelID string) (string, error) {
	if strings.TrimSpace(base) == "" {
		base = defaultElevenLabsWSBase
	}
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws base url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", modelID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func decodeBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var out bool
	if err := json.Unmarshal(raw, &out); err != nil {
		return false
	}
	return out
}

// decodeBase64Any accepts padded and unpadded standard or URL alphabets.
func decodeBase64Any(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}
