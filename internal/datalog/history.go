// internal/datalog/history.go
package datalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tamzrod/mattebox/internal/filter"
)

const historySchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	box_id     TEXT NOT NULL,
	started_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	logged_at  DATETIME NOT NULL,
	tag_count  INTEGER NOT NULL,
	slot1_uid  TEXT NOT NULL DEFAULT '',
	slot1_name TEXT NOT NULL DEFAULT '',
	slot2_uid  TEXT NOT NULL DEFAULT '',
	slot2_name TEXT NOT NULL DEFAULT '',
	slot3_uid  TEXT NOT NULL DEFAULT '',
	slot3_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id);
`

// Record is one logged section as stored in the history.
type Record struct {
	ID       int64                `json:"id"`
	Session  string               `json:"session"`
	LoggedAt time.Time            `json:"logged_at"`
	TagCount int                  `json:"tag_count"`
	UIDs     [filter.Slots]string `json:"uids"`
	Names    [filter.Slots]string `json:"names"`
}

// History keeps every logged section in SQLite, grouped by boot session.
// It does not depend on the card being present.
type History struct {
	conn    *sql.DB
	session string
	now     func() time.Time
}

// OpenHistory opens (or creates) the database and starts a new session.
func OpenHistory(dsn, boxID string) (*History, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("datalog: open history: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("datalog: ping history: %w", err)
	}
	if _, err := conn.Exec(historySchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("datalog: apply history schema: %w", err)
	}

	h := &History{conn: conn, session: uuid.NewString(), now: time.Now}
	if _, err := conn.Exec(
		`INSERT INTO sessions (id, box_id, started_at) VALUES (?, ?, ?)`,
		h.session, boxID, h.now().UTC(),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("datalog: start session: %w", err)
	}
	return h, nil
}

// Session returns the id of the current boot session.
func (h *History) Session() string { return h.session }

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.conn.Close()
}

// Log appends the section in position order.
func (h *History) Log(sec filter.Section) error {
	args := []any{h.session, h.now().UTC(), int(sec.Count)}
	for _, s := range sec.ByPosition() {
		uid := ""
		if s.Occupied() {
			uid = s.UID.String()
		}
		args = append(args, uid, s.Name.String())
	}

	_, err := h.conn.Exec(`
		INSERT INTO records (session_id, logged_at, tag_count,
			slot1_uid, slot1_name, slot2_uid, slot2_name, slot3_uid, slot3_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("datalog: insert record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.conn.QueryContext(ctx, `
		SELECT id, session_id, logged_at, tag_count,
			slot1_uid, slot1_name, slot2_uid, slot2_name, slot3_uid, slot3_name
		FROM records ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("datalog: query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Session, &r.LoggedAt, &r.TagCount,
			&r.UIDs[0], &r.Names[0], &r.UIDs[1], &r.Names[1], &r.UIDs[2], &r.Names[2]); err != nil {
			return nil, fmt.Errorf("datalog: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
