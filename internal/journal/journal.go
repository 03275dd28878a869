// Package journal keeps a SQLite history of reload cycles.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/itsmostafa/funpad/internal/reload"
)

//go:embed schema.sql
var schemaSQL string

// Record is one journaled cycle.
type Record struct {
	ID         int64     `json:"id"`
	Session    string    `json:"session"`
	Seq        int       `json:"seq"`
	Load       string    `json:"load"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	Accepted   []string  `json:"accepted"`
	Unchanged  []string  `json:"unchanged"`
	MainResult string    `json:"main_result,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationUS int64     `json:"duration_us"`
}

// Journal appends cycles of one session to a SQLite database.
type Journal struct {
	db      *sql.DB
	session string
	logger  *slog.Logger
}

// Open creates or opens the journal database at path. Use ":memory:" for a
// throw-away journal.
func Open(path, session string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps a
	// ":memory:" database alive across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}

	return &Journal{db: db, session: session, logger: logger}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session returns the session the journal writes under.
func (j *Journal) Session() string {
	return j.session
}

// Report implements reload.Reporter. Write failures are logged, never fatal.
func (j *Journal) Report(c reload.Cycle) {
	if err := j.Record(context.Background(), c); err != nil {
		j.logger.Warn("failed to journal reload cycle", "seq", c.Seq, "error", err)
	}
}

// Record writes one cycle.
func (j *Journal) Record(ctx context.Context, c reload.Cycle) error {
	accepted, err := marshalNames(c.Accepted)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	unchanged, err := marshalNames(c.Unchanged)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	errText := ""
	if c.Err != nil {
		errText = c.Err.Error()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO cycles
		(session, seq, load_name, path, outcome, accepted, unchanged, main_result, error, started_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.session,
		c.Seq,
		c.Load,
		c.Path,
		string(c.Outcome()),
		accepted,
		unchanged,
		c.MainResult,
		errText,
		c.StartedAt.UTC().Format(time.RFC3339Nano),
		c.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// Recent returns up to limit records of the current session, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, load_name, path, outcome, accepted, unchanged, main_result, error, started_at, duration_us
		FROM cycles
		WHERE session = ?
		ORDER BY id DESC
		LIMIT ?
	`, j.session, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var accepted, unchanged, started string
		if err := rows.Scan(&r.ID, &r.Session, &r.Seq, &r.Load, &r.Path, &r.Outcome,
			&accepted, &unchanged, &r.MainResult, &r.Error, &started, &r.DurationUS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(accepted), &r.Accepted); err != nil {
			return nil, fmt.Errorf("decode accepted names: %w", err)
		}
		if err := json.Unmarshal([]byte(unchanged), &r.Unchanged); err != nil {
			return nil, fmt.Errorf("decode unchanged names: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("decode start time: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
