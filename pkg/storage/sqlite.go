package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"heart-audio/pkg/models"
)

// fixed width so created_at orders lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps one row per analysis with the nested records as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    session_id TEXT,
    created_at TEXT NOT NULL,
    audio_path TEXT NOT NULL,
    transcript_text TEXT,
    words_json TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    metrics_json TEXT,
    emotion_json TEXT,
    summary_json TEXT,
    status TEXT NOT NULL,
    error TEXT,
    processed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, a *models.Analysis) error {
	words, err := marshalColumn(a.Words)
	if err != nil {
		return err
	}
	metrics, err := marshalColumn(a.Metrics)
	if err != nil {
		return err
	}
	emotion, err := marshalColumn(a.Emotion)
	if err != nil {
		return err
	}
	summary, err := marshalColumn(a.Summary)
	if err != nil {
		return err
	}

	var processedAt sql.NullString
	if !a.ProcessedAt.IsZero() {
		processedAt = sql.NullString{String: a.ProcessedAt.UTC().Format(timeLayout), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses
		 (id, user_id, session_id, created_at, audio_path, transcript_text, words_json, duration_ms,
		  metrics_json, emotion_json, summary_json, status, error, processed_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		  transcript_text=excluded.transcript_text, words_json=excluded.words_json,
		  duration_ms=excluded.duration_ms, metrics_json=excluded.metrics_json,
		  emotion_json=excluded.emotion_json, summary_json=excluded.summary_json,
		  status=excluded.status, error=excluded.error, processed_at=excluded.processed_at`,
		a.ID, a.UserID, nullString(a.SessionID), a.CreatedAt.UTC().Format(timeLayout), a.AudioPath,
		a.TranscriptText, words, a.DurationMs, metrics, emotion, summary, string(a.Status),
		nullString(a.Error), processedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, user_id, session_id, created_at, audio_path, transcript_text, words_json,
	duration_ms, metrics_json, emotion_json, summary_json, status, error, processed_at FROM analyses`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Analysis, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return collect(rows)
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return collect(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(sc scanner) (*models.Analysis, error) {
	var (
		a         models.Analysis
		createdAt string
		status    string
	)
	var sessionID, errText, processedAt, transcript, words, metrics, emotion, summary sql.NullString
	if err := sc.Scan(&a.ID, &a.UserID, &sessionID, &createdAt, &a.AudioPath, &transcript, &words,
		&a.DurationMs, &metrics, &emotion, &summary, &status, &errText, &processedAt); err != nil {
		return nil, err
	}

	a.SessionID = sessionID.String
	a.TranscriptText = transcript.String
	a.Status = models.ProcessingStatus(status)
	a.Error = errText.String

	var err error
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if processedAt.Valid {
		if a.ProcessedAt, err = time.Parse(timeLayout, processedAt.String); err != nil {
			return nil, fmt.Errorf("processed_at: %w", err)
		}
	}
	if err := unmarshalColumn(words, &a.Words); err != nil {
		return nil, fmt.Errorf("words_json: %w", err)
	}
	if err := unmarshalColumn(metrics, &a.Metrics); err != nil {
		return nil, fmt.Errorf("metrics_json: %w", err)
	}
	if err := unmarshalColumn(emotion, &a.Emotion); err != nil {
		return nil, fmt.Errorf("emotion_json: %w", err)
	}
	if err := unmarshalColumn(summary, &a.Summary); err != nil {
		return nil, fmt.Errorf("summary_json: %w", err)
	}
	return &a, nil
}

func collect(rows *sql.Rows) ([]*models.Analysis, error) {
	defer rows.Close()
	var out []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func marshalColumn(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal column: %w", err)
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalColumn(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
