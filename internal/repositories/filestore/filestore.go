// Package filestore keeps one JSON file per record:
// {dir}/sessions/{id}.json and {dir}/evaluations/{id}.json.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	sessionsDir    = "sessions"
	evaluationsDir = "evaluations"
)

// ids become file names, so only a safe alphabet is accepted
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

type Store struct {
	dir string
	now func() time.Time
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "interview_data"
	}
	for _, sub := range []string{sessionsDir, evaluationsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(kind, id string) (string, error) {
	if !validID.MatchString(id) {
		return "", utils.ErrNotFound
	}
	return filepath.Join(s.dir, kind, id+".json"), nil
}

func (s *Store) StoreSession(_ context.Context, sess *models.Session) error {
	p, err := s.path(sessionsDir, sess.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q", sess.SessionID)
	}
	return writeJSON(p, sess)
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	p, err := s.path(sessionsDir, sessionID)
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := readJSON(p, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	p, err := s.path(sessionsDir, sessionID)
	if err != nil {
		return err
	}
	return remove(p)
}

func (s *Store) StoreEvaluation(_ context.Context, e *models.Evaluation) error {
	p, err := s.path(evaluationsDir, e.EvaluationID)
	if err != nil {
		return fmt.Errorf("invalid evaluation id %q", e.EvaluationID)
	}
	return writeJSON(p, e)
}

func (s *Store) GetEvaluation(_ context.Context, evaluationID string) (*models.Evaluation, error) {
	p, err := s.path(evaluationsDir, evaluationID)
	if err != nil {
		return nil, err
	}
	var e models.Evaluation
	if err := readJSON(p, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) UpdateEvaluation(ctx context.Context, evaluationID string, u models.EvaluationUpdate) error {
	e, err := s.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return err
	}
	e.Apply(u)
	return s.StoreEvaluation(ctx, e)
}

func (s *Store) DeleteEvaluation(_ context.Context, evaluationID string) error {
	p, err := s.path(evaluationsDir, evaluationID)
	if err != nil {
		return err
	}
	return remove(p)
}

// Cleanup ages sessions by file modification time.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) ([]models.Session, error) {
	dir := filepath.Join(s.dir, sessionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-maxAge)
	var removed []models.Session
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		p := filepath.Join(dir, e.Name())
		var sess models.Session
		if err := readJSON(p, &sess); err != nil {
			sess = models.Session{SessionID: strings.TrimSuffix(e.Name(), ".json")}
		}
		if err := remove(p); err != nil && !errors.Is(err, utils.ErrNotFound) {
			return removed, err
		}
		removed = append(removed, sess)
	}
	return removed, nil
}

func (s *Store) Stats(_ context.Context) (models.StoreStats, error) {
	st := models.StoreStats{StorageDir: s.dir}
	var total int64
	for _, kind := range []string{sessionsDir, evaluationsDir} {
		entries, err := os.ReadDir(filepath.Join(s.dir, kind))
		if err != nil {
			return st, err
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
				continue
			}
			if info, err := e.Info(); err == nil {
				total += info.Size()
			}
			if kind == sessionsDir {
				st.SessionsCount++
			} else {
				st.EvaluationsCount++
			}
		}
	}
	st.TotalSizeMB = utils.Round(float64(total)/(1024*1024), 2)
	return st, nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return utils.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return utils.ErrNotFound
	}
	return err
}
