// Package journal keeps a local ledger of embodiments: one row per
// session the proxy embodied, with how it ended. The embodiment_history
// tool reads it back so a sparkler can see when and where it was last
// woken up, and whether that went well.
//
// Storage is SQLite through the pure-Go modernc driver, in WAL mode so
// the proxy can write while a tool server process reads.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var for testability.
var timeNow = time.Now

// createdAtLayout is fixed width so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DBFile is the journal database filename inside the sparkle home.
const DBFile = "journal.db"

// Outcome classifies how an embodiment ended.
type Outcome string

const (
	OutcomeEmbodied    Outcome = "embodied"    // agent finished with end_turn
	OutcomeInterrupted Outcome = "interrupted" // any other stop reason
	OutcomeFailed      Outcome = "failed"      // assembly or transport error
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Entry is one recorded embodiment.
type Entry struct {
	ID         int64         `json:"id"`
	SessionID  string        `json:"session_id"`
	Sparkler   string        `json:"sparkler,omitempty"`
	Workspace  string        `json:"workspace,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	StopReason string        `json:"stop_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Bytes      int           `json:"bytes"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  string        `json:"created_at"`
}

// Stats aggregates the journal.
type Stats struct {
	Total       int             `json:"total"`
	ByOutcome   map[Outcome]int `json:"by_outcome"`
	LastSession string          `json:"last_session,omitempty"`
	LastAt      string          `json:"last_at,omitempty"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds journal configuration.
type Config struct {
	// DataDir is where journal.db lives, normally the sparkle home.
	DataDir string
	// MaxErrorLength truncates recorded error text.
	MaxErrorLength int
	// MaxRecent caps Recent's limit.
	MaxRecent int
}

// DefaultConfig returns the journal configuration for a sparkle home.
func DefaultConfig(root string) Config {
	return Config{
		DataDir:        root,
		MaxErrorLength: 500,
		MaxRecent:      50,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the embodiment journal.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New opens (creating if needed) the journal in cfg.DataDir.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	db, err := openDB("sqlite", Path(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return s, nil
}

// Path returns the journal database path inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS embodiments (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT    NOT NULL,
			sparkler    TEXT    NOT NULL DEFAULT '',
			workspace   TEXT    NOT NULL DEFAULT '',
			outcome     TEXT    NOT NULL,
			stop_reason TEXT    NOT NULL DEFAULT '',
			error       TEXT    NOT NULL DEFAULT '',
			bytes       INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_emb_created  ON embodiments(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_emb_sparkler ON embodiments(sparkler);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// Record appends e and returns its id. CreatedAt is stamped here.
func (s *Store) Record(e Entry) (int64, error) {
	if e.SessionID == "" {
		return 0, fmt.Errorf("journal: session id is required")
	}
	if e.Outcome == "" {
		return 0, fmt.Errorf("journal: outcome is required")
	}

	res, err := s.db.Exec(
		`INSERT INTO embodiments
			(session_id, sparkler, workspace, outcome, stop_reason, error, bytes, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Sparkler, e.Workspace, string(e.Outcome), e.StopReason,
		truncate(e.Error, s.cfg.MaxErrorLength), e.Bytes, e.Duration.Milliseconds(),
		timeNow().UTC().Format(createdAtLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: record: %w", err)
	}
	return res.LastInsertId()
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Recent returns the newest entries first. An empty sparkler matches all.
func (s *Store) Recent(sparkler string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.cfg.MaxRecent {
		limit = s.cfg.MaxRecent
	}

	query := `SELECT id, session_id, sparkler, workspace, outcome, stop_reason, error, bytes, duration_ms, created_at
		FROM embodiments`
	args := []any{}
	if sparkler != "" {
		query += ` WHERE sparkler = ?`
		args = append(args, sparkler)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			outcome  string
			duration int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Sparkler, &e.Workspace, &outcome,
			&e.StopReason, &e.Error, &e.Bytes, &duration, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.Duration = time.Duration(duration) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts over the whole journal.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByOutcome: make(map[Outcome]int)}

	rows, err := s.db.Query("SELECT outcome, COUNT(*) FROM embodiments GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("journal: stats scan: %w", err)
		}
		stats.ByOutcome[Outcome(outcome)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow("SELECT session_id, created_at FROM embodiments ORDER BY created_at DESC, id DESC LIMIT 1").
		Scan(&stats.LastSession, &stats.LastAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: last entry: %w", err)
	}
	return stats, nil
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
