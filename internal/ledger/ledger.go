// Package ledger keeps a SQLite record of exchange outcomes. Only the final
// outcome of an exchange is stored, never its turns.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/harness"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
)

// MemoryPath opens a private in-memory ledger.
const MemoryPath = ":memory:"

// Entry is one recorded outcome.
type Entry struct {
	ID           string        `json:"id"`
	Question     string        `json:"question"`
	Language     string        `json:"language,omitempty"`
	Answer       string        `json:"answer,omitempty"`
	NeedMoreInfo bool          `json:"need_more_info"`
	ErrorType    string        `json:"error_type,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Attempts     int           `json:"attempts"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Failed reports whether the exchange ended in a structured error.
func (e Entry) Failed() bool {
	return e.ErrorType != ""
}

// Stats aggregates the whole ledger.
type Stats struct {
	Total          int           `json:"total"`
	Answered       int           `json:"answered"`
	Clarifications int           `json:"clarifications"`
	Failures       int           `json:"failures"`
	Timeouts       int           `json:"timeouts"`
	Retried        int           `json:"retried"`
	AvgDuration    time.Duration `json:"avg_duration"`
}

// Store is the outcome ledger. It satisfies harness.Recorder.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the ledger at path. Parent directories are created.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	logging.Ledger("ledger opened at %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		language TEXT,
		answer TEXT,
		need_more_info INTEGER NOT NULL DEFAULT 0,
		error_type TEXT,
		error_message TEXT,
		attempts INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_created ON outcomes(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores the outcome of one exchange.
func (s *Store) Record(ctx context.Context, resp harness.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errType, errMsg string
	if resp.Error != nil {
		errType, errMsg = string(resp.Error.Type), resp.Error.Message
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, question, language, answer, need_more_info,
			error_type, error_message, attempts, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.ExchangeID, resp.Question, resp.OriginLanguage, resp.Answer, boolInt(resp.NeedMoreInfo),
		errType, errMsg, resp.Attempts, resp.Duration.Milliseconds(),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome %s: %w", resp.ExchangeID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, language, answer, need_more_info, error_type, error_message,
			attempts, duration_ms, created_at
		FROM outcomes
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                 Entry
			language, answer, errType, errMsg sql.NullString
			needMore                          int
			durationMs                        int64
			created                           string
		)
		if err := rows.Scan(&e.ID, &e.Question, &language, &answer, &needMore, &errType, &errMsg,
			&e.Attempts, &durationMs, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		e.Language, e.Answer = language.String, answer.String
		e.ErrorType, e.ErrorMessage = errType.String, errMsg.String
		e.NeedMoreInfo = needMore != 0
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		} else {
			logging.LedgerWarn("outcome %s has unreadable created_at %q", e.ID, created)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates every recorded outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st    Stats
		avgMs float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN COALESCE(error_type, '') = '' AND need_more_info = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN COALESCE(error_type, '') = '' AND need_more_info = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN COALESCE(error_type, '') <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts > 1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM outcomes`, string(harness.FailureTimeout),
	).Scan(&st.Total, &st.Answered, &st.Clarifications, &st.Failures, &st.Timeouts, &st.Retried, &avgMs)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate outcomes: %w", err)
	}
	st.AvgDuration = time.Duration(avgMs * float64(time.Millisecond))
	return st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
