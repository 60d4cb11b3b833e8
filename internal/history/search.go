package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/overseer/pkg/types"
)

// LiveProject is the project_path recorded for sessions appended from the
// running manager rather than indexed from a transcript file.
const LiveProject = "live"

// ErrSessionNotFound is returned by Session for an unknown id.
var ErrSessionNotFound = errors.New("history session not found")

const defaultSearchLimit = 10

// Search runs a full-text query and returns the newest matches first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.session_id, m.role, m.content, m.tool_uses, m.timestamp,
		       s.project_path, s.started_at, s.last_message_at, s.message_count, s.summary,
		       snippet(messages_fts, 0, '<mark>', '</mark>', '...', 32)
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?
		ORDER BY m.timestamp DESC
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var (
			r        SearchResult
			toolUses sql.NullString
			summary  sql.NullString
		)
		if err := rows.Scan(
			&r.Message.ID, &r.Message.SessionID, &r.Message.Role, &r.Message.Content, &toolUses, &r.Message.Timestamp,
			&r.Session.ProjectPath, &r.Session.StartedAt, &r.Session.LastMessageAt, &r.Session.MessageCount, &summary,
			&r.Highlight,
		); err != nil {
			return nil, err
		}
		r.Type = "message"
		r.Session.ID = r.Message.SessionID
		r.Session.Summary = summary.String
		r.Message.ToolUses = decodeToolUses(toolUses)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery turns free text into a conjunction of quoted FTS5 terms so user
// input never reaches the query parser as syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

// Sessions lists indexed sessions, most recently active first.
func (s *Store) Sessions(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_path, started_at, last_message_at, message_count, summary
		FROM sessions
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Session returns one indexed session.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_path, started_at, last_message_at, message_count, summary
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return sess, err
}

// Messages returns a session's messages in timestamp order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, tool_uses, timestamp
		FROM messages WHERE session_id = ?
		ORDER BY timestamp ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m        Message
			toolUses sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &toolUses, &m.Timestamp); err != nil {
			return nil, err
		}
		m.ToolUses = decodeToolUses(toolUses)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// UpdateSummary sets a session's summary.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Append indexes a message produced by a live session.
func (s *Store) Append(ctx context.Context, msg types.SessionMessage) error {
	ts := msg.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	var toolUsesJSON sql.NullString
	var uses []ToolUse
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			uses = append(uses, ToolUse{Name: block.Name, Input: block.Input})
		}
	}
	if len(uses) > 0 {
		if b, err := json.Marshal(uses); err == nil {
			toolUsesJSON = sql.NullString{String: string(b), Valid: true}
		}
	}

	id := ulid.MustNew(ulid.Timestamp(time.UnixMilli(ts)), rand.Reader).String()
	role := msg.Type
	if role == "" {
		role = "assistant"
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, project_path, started_at, last_message_at, message_count)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(id) DO UPDATE SET
				last_message_at = MAX(sessions.last_message_at, excluded.last_message_at),
				message_count = sessions.message_count + 1`,
			msg.SessionID, LiveProject, ts, ts)
		if err != nil {
			return fmt.Errorf("upsert live session: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, role, content, tool_uses, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, msg.SessionID, role, msg.Text(), toolUsesJSON, ts)
		if err != nil {
			return fmt.Errorf("insert live message: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess    Session
		summary sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.ProjectPath, &sess.StartedAt, &sess.LastMessageAt, &sess.MessageCount, &summary)
	sess.Summary = summary.String
	return sess, err
}

func decodeToolUses(raw sql.NullString) []ToolUse {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var uses []ToolUse
	if err := json.Unmarshal([]byte(raw.String), &uses); err != nil {
		return nil
	}
	return uses
}
