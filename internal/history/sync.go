package history

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
)

// transcriptPattern matches <projectsDir>/<project>/<session>.jsonl.
const transcriptPattern = "*/*.jsonl"

const maxLineSize = 16 * 1024 * 1024

// Sync indexes every transcript under the projects directory and returns how
// many files changed. A missing projects directory is not an error.
func (s *Store) Sync(ctx context.Context) (int, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	files, err := transcriptFiles(s.projectsDir)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		changed, err := s.SyncFile(ctx, path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to index transcript")
			continue
		}
		if changed {
			synced++
		}
	}
	s.log.Info().Int("files", len(files)).Int("synced", synced).Msg("history sync complete")
	return synced, nil
}

func transcriptFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), transcriptPattern)
	if err != nil {
		return nil, fmt.Errorf("glob transcripts: %w", err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(root, filepath.FromSlash(m)))
	}
	return out, nil
}

type parsedMessage struct {
	Message
	toolUsesJSON sql.NullString
}

// SyncFile indexes one transcript. It returns false when the file was already
// indexed at its current length.
func (s *Store) SyncFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	lines := nonEmptyLines(data)
	if len(lines) == 0 {
		return false, nil
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	project := filepath.Base(filepath.Dir(path))

	var indexed int
	err = s.db.QueryRowContext(ctx, `SELECT line_count FROM sessions WHERE id = ?`, sessionID).Scan(&indexed)
	if err == nil && indexed >= len(lines) {
		return false, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	now := time.Now().UnixMilli()
	first, last := int64(0), int64(0)
	var messages []parsedMessage
	for _, line := range lines {
		if !gjson.ValidBytes(line) {
			continue
		}
		entry := gjson.ParseBytes(line)
		role := entry.Get("type").String()
		if role != "user" && role != "assistant" {
			continue
		}

		ts := now
		if raw := entry.Get("timestamp").String(); raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				ts = t.UnixMilli()
			}
		}
		if first == 0 || ts < first {
			first = ts
		}
		if ts > last {
			last = ts
		}

		id := entry.Get("uuid").String()
		if id == "" {
			id = fmt.Sprintf("%s-%d", sessionID, len(messages))
		}
		msg := parsedMessage{Message: Message{
			ID:        id,
			SessionID: sessionID,
			Role:      role,
			Content:   messageText(entry.Get("message.content")),
			ToolUses:  toolUses(entry.Get("message.content")),
			Timestamp: ts,
		}}
		if len(msg.ToolUses) > 0 {
			if b, err := json.Marshal(msg.ToolUses); err == nil {
				msg.toolUsesJSON = sql.NullString{String: string(b), Valid: true}
			}
		}
		messages = append(messages, msg)
	}
	if first == 0 {
		first, last = now, now
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, project_path, started_at, last_message_at, message_count, line_count, raw_path)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				last_message_at = excluded.last_message_at,
				message_count = excluded.message_count,
				line_count = excluded.line_count`,
			sessionID, project, first, last, len(messages), len(lines), path)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO messages (id, session_id, role, content, tool_uses, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range messages {
			if _, err := stmt.ExecContext(ctx, m.ID, sessionID, m.Role, m.Content, m.toolUsesJSON, m.Timestamp); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	s.log.Debug().Str("session", sessionID).Int("messages", len(messages)).Msg("transcript indexed")
	return true, nil
}

func nonEmptyLines(data []byte) [][]byte {
	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
	}
	return lines
}

// messageText returns string content as is, or the text blocks joined by newlines.
func messageText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	return strings.Join(parts, "\n")
}

func toolUses(content gjson.Result) []ToolUse {
	if !content.IsArray() {
		return nil
	}
	var out []ToolUse
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "tool_use" {
			tu := ToolUse{Name: block.Get("name").String()}
			if input := block.Get("input"); input.Exists() {
				tu.Input = json.RawMessage(input.Raw)
			}
			out = append(out, tu)
		}
		return true
	})
	return out
}
