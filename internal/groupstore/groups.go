package groupstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/sessionwatch/internal/monitor"
)

// CreateGroup inserts a new group. Creating an existing group id fails.
func (db *DB) CreateGroup(id, name string) error {
	_, err := db.conn.Exec(
		"INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)",
		id, name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating group %q: %w", id, err)
	}
	return nil
}

// DeleteGroup removes a group and its member sessions.
func (db *DB) DeleteGroup(id string) error {
	_, err := db.conn.Exec("DELETE FROM groups WHERE id = ?", id)
	return err
}

// AddSession adds a member session to a group. Re-adding an existing member
// updates its transcript session id instead of failing.
func (db *DB) AddSession(groupID, sessionID, transcriptSessionID string) error {
	_, err := db.conn.Exec(
		`INSERT INTO group_sessions (id, group_id, transcript_session_id, status, added_at)
		 VALUES (?, ?, ?, 'pending', ?)
		 ON CONFLICT (group_id, id) DO UPDATE SET transcript_session_id = excluded.transcript_session_id`,
		sessionID, groupID, transcriptSessionID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("adding session %q to group %q: %w", sessionID, groupID, err)
	}
	return nil
}

// RemoveSession removes a member session from a group. Removing an unknown
// member is a no-op.
func (db *DB) RemoveSession(groupID, sessionID string) error {
	_, err := db.conn.Exec(
		"DELETE FROM group_sessions WHERE group_id = ? AND id = ?",
		groupID, sessionID,
	)
	return err
}

// UpdateSessionStatus persists a status change for a member session.
func (db *DB) UpdateSessionStatus(groupID, sessionID, status string) error {
	res, err := db.conn.Exec(
		"UPDATE group_sessions SET status = ? WHERE group_id = ? AND id = ?",
		status, groupID, sessionID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %q not found in group %q", sessionID, groupID)
	}
	return nil
}

// FindByID resolves a group and its member sessions. Unknown groups resolve
// to nil with no error, per the monitor's GroupResolver contract.
func (db *DB) FindByID(groupID string) (*monitor.Group, error) {
	row := db.conn.QueryRow("SELECT id, name FROM groups WHERE id = ?", groupID)

	g := &monitor.Group{}
	if err := row.Scan(&g.ID, &g.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := db.conn.Query(
		`SELECT id, transcript_session_id, status
		 FROM group_sessions WHERE group_id = ? ORDER BY added_at, id`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s monitor.GroupSession
		if err := rows.Scan(&s.ID, &s.TranscriptSessionID, &s.Status); err != nil {
			return nil, err
		}
		g.Sessions = append(g.Sessions, s)
	}
	return g, rows.Err()
}

// GroupSummary describes one group for listing.
type GroupSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SessionCount int       `json:"session_count"`
	ActiveCount  int       `json:"active_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListGroups returns all groups with member counts, most recent first.
func (db *DB) ListGroups() ([]GroupSummary, error) {
	rows, err := db.conn.Query(`
		SELECT g.id, g.name, g.created_at,
		       COUNT(s.id),
		       COALESCE(SUM(CASE WHEN s.transcript_session_id != '' THEN 1 ELSE 0 END), 0)
		FROM groups g
		LEFT JOIN group_sessions s ON s.group_id = g.id
		GROUP BY g.id
		ORDER BY g.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []GroupSummary
	for rows.Next() {
		var g GroupSummary
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Name, &createdAt, &g.SessionCount, &g.ActiveCount); err != nil {
			return nil, err
		}
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
