// Package ttstest runs an in-process websocket server speaking the
// ElevenLabs stream-input protocol.
package ttstest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Server answers every connection by recording the client messages until a
// flush arrives, then emitting Audio in order followed by an isFinal message.
type Server struct {
	URL string

	Audio [][]byte

	mu       sync.Mutex
	messages []map[string]any
}

func NewServer(t *testing.T, audio ...[]byte) *Server {
	t.Helper()

	s := &Server{Audio: audio}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			s.record(msg)
			if flush, _ := msg["flush"].(bool); flush {
				break
			}
		}

		for _, chunk := range s.Audio {
			_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(chunk), "isFinal": false})
		}
		_ = conn.WriteJSON(map[string]any{"audio": nil, "isFinal": true})
	}))
	t.Cleanup(srv.Close)

	s.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/text-to-speech/{voice_id}/stream-input"
	return s
}

func (s *Server) record(msg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns every client message received so far, handshake first.
func (s *Server) Messages() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.messages...)
}

// Texts returns the non-empty text payloads sent after the handshake.
func (s *Server) Texts() []string {
	var out []string
	for i, m := range s.Messages() {
		if i == 0 {
			continue
		}
		if t, _ := m["text"].(string); t != "" {
			out = append(out, t)
		}
	}
	return out
}
