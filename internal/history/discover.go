package history

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	previewLines = 10
	previewRunes = 100
)

// DiscoveredSession is a transcript on disk that can be resumed.
type DiscoveredSession struct {
	ID           string    `json:"id"`
	ProjectPath  string    `json:"projectPath"`
	ProjectHash  string    `json:"projectHash"`
	LastModified time.Time `json:"lastModified"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview,omitempty"`
}

// Discover lists transcripts under projectsDir, most recently modified first.
// Unreadable files are skipped. limit <= 0 returns everything.
func Discover(projectsDir string, limit int) ([]DiscoveredSession, error) {
	files, err := transcriptFiles(projectsDir)
	if err != nil {
		return nil, err
	}

	sessions := make([]DiscoveredSession, 0, len(files))
	for _, path := range files {
		ds, err := describe(path)
		if err != nil {
			continue
		}
		sessions = append(sessions, ds)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastModified.After(sessions[j].LastModified)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// FindSession describes a single transcript. It returns (nil, nil) when the
// file does not exist.
func FindSession(projectsDir, projectHash, sessionID string) (*DiscoveredSession, error) {
	if strings.ContainsAny(projectHash, `/\`) || strings.ContainsAny(sessionID, `/\`) {
		return nil, nil
	}
	path := filepath.Join(projectsDir, projectHash, sessionID+".jsonl")
	ds, err := describe(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func describe(path string) (DiscoveredSession, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DiscoveredSession{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DiscoveredSession{}, err
	}
	lines := nonEmptyLines(data)
	hash := filepath.Base(filepath.Dir(path))

	return DiscoveredSession{
		ID:           strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		ProjectPath:  projectPath(lines, hash),
		ProjectHash:  hash,
		LastModified: info.ModTime(),
		MessageCount: len(lines),
		Preview:      preview(lines),
	}, nil
}

// projectPath returns the working directory recorded in the transcript, or
// the project hash when no entry carries one.
func projectPath(lines [][]byte, hash string) string {
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	for _, line := range lines {
		if cwd := gjson.GetBytes(line, "cwd").String(); cwd != "" {
			return cwd
		}
	}
	return hash
}

// preview returns the first user text found in the leading lines.
func preview(lines [][]byte) string {
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	for _, line := range lines {
		if !gjson.ValidBytes(line) {
			continue
		}
		entry := gjson.ParseBytes(line)
		if entry.Get("type").String() != "user" {
			continue
		}
		content := entry.Get("message.content")
		var text string
		if content.Type == gjson.String {
			text = content.String()
		} else {
			content.ForEach(func(_, block gjson.Result) bool {
				if block.Get("type").String() == "text" {
					text = block.Get("text").String()
					return false
				}
				return true
			})
		}
		if text != "" {
			return truncateRunes(text, previewRunes)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
