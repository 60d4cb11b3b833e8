package types

import "encoding/json"

// ContentBlock is one structured block extracted from an assistant record.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "thinking" | "tool_use" | "tool_result"

	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// SessionMessage is a de-duplicated assistant message emitted by a session.
type SessionMessage struct {
	SessionID string         `json:"sessionId"`
	Type      string         `json:"type"` // always "assistant" today
	Content   []ContentBlock `json:"content"`
	Timestamp int64          `json:"timestamp"`
}

// Text concatenates the text blocks of the message.
func (m SessionMessage) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += block.Text
		}
	}
	return out
}
