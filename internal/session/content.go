package session

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/zeebo/blake3"

	"github.com/opencode-ai/overseer/internal/stream"
	"github.com/opencode-ai/overseer/pkg/types"
)

// fingerprint identifies extracted content for de-duplication.
type fingerprint [32]byte

// statusTransitions returns the statuses an assistant record walks through, in
// block order: tool_use means running_tool, text means thinking.
func statusTransitions(rec stream.Record) []types.SessionStatus {
	var out []types.SessionStatus
	rec.Get("message.content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "tool_use":
			out = append(out, types.StatusRunningTool)
		case "text":
			out = append(out, types.StatusThinking)
		}
		return true
	})
	return out
}

// extractContent pulls the user-facing blocks out of an assistant record.
func extractContent(rec stream.Record) []types.ContentBlock {
	var content []types.ContentBlock
	rec.Get("message.content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			if text := block.Get("text").String(); text != "" {
				content = append(content, types.ContentBlock{Type: "text", Text: text})
			}
		case "thinking":
			if thinking := block.Get("thinking").String(); thinking != "" {
				content = append(content, types.ContentBlock{Type: "thinking", Thinking: thinking})
			}
		case "tool_use":
			b := types.ContentBlock{
				Type: "tool_use",
				ID:   block.Get("id").String(),
				Name: block.Get("name").String(),
			}
			if input := block.Get("input"); input.Exists() {
				b.Input = json.RawMessage(input.Raw)
			}
			content = append(content, b)
		case "tool_result":
			b := types.ContentBlock{
				Type:      "tool_result",
				ToolUseID: block.Get("tool_use_id").String(),
				IsError:   block.Get("is_error").Bool(),
			}
			if c := block.Get("content"); c.Type == gjson.String {
				b.Content = c.String()
			} else if c.Exists() {
				b.Content = c.Raw
			}
			content = append(content, b)
		}
		return true
	})
	return content
}

func fingerprintOf(content []types.ContentBlock) fingerprint {
	data, err := json.Marshal(content)
	if err != nil {
		return fingerprint{}
	}
	return blake3.Sum256(data)
}
