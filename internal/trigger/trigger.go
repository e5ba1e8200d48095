package trigger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yukifm/remindbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists pending one-shot triggers. Each trigger is one future
// fire of a scheduled message; the payload is the full instance so a
// restart loses nothing.
type Store struct {
	db *sql.DB
}

// Fired is one due trigger loaded back from the store.
type Fired struct {
	ID  int64
	Msg *domain.ScheduledMessage
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS triggers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fire_at DATETIME NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_fire_at ON triggers(fire_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Schedule registers one future fire for msg. Satisfies the reminder
// handler's Timer.
func (s *Store) Schedule(at time.Time, msg *domain.ScheduledMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO triggers (fire_at, payload) VALUES (?, ?)`,
		at.UTC(), string(payload),
	); err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// Due returns the triggers whose fire time has passed, oldest first.
// A row with an unreadable payload is reported with a nil Msg so the
// caller can consume and drop it.
func (s *Store) Due(now time.Time) ([]Fired, error) {
	rows, err := s.db.Query(
		`SELECT id, payload FROM triggers WHERE fire_at <= ? ORDER BY fire_at ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query due triggers: %w", err)
	}
	defer rows.Close()

	var fired []Fired
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		msg := &domain.ScheduledMessage{}
		if err := json.Unmarshal([]byte(payload), msg); err != nil {
			msg = nil
		}
		fired = append(fired, Fired{ID: id, Msg: msg})
	}
	return fired, rows.Err()
}

// Consume deletes a fired trigger. Triggers are one-shot: the reminder
// handler re-arms by scheduling a fresh one.
func (s *Store) Consume(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM triggers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete trigger %d: %w", id, err)
	}
	return nil
}

// Pending reports how many triggers are waiting.
func (s *Store) Pending() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM triggers`).Scan(&n)
	return n, err
}
