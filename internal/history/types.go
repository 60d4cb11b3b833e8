package history

import "encoding/json"

// Session is an indexed transcript.
type Session struct {
	ID            string `json:"id"`
	ProjectPath   string `json:"projectPath"`
	StartedAt     int64  `json:"startedAt"`
	LastMessageAt int64  `json:"lastMessageAt"`
	MessageCount  int    `json:"messageCount"`
	Summary       string `json:"summary,omitempty"`
}

// ToolUse is a tool invocation recorded in a transcript.
type ToolUse struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Message is one indexed transcript message.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ToolUses  []ToolUse `json:"toolUses,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// SearchResult is a full-text match.
type SearchResult struct {
	Type      string  `json:"type"` // always "message"
	Session   Session `json:"session"`
	Message   Message `json:"message"`
	Highlight string  `json:"highlight"`
}
