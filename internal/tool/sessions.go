package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/pkg/types"
)

const defaultBufferLines = 50

const listSessionsDescription = `Get status of all active Claude Code sessions.

Returns each session's id, working directory, model, permission mode, status and whether a process is running.`

const getSessionBufferDescription = `Read recent output from a specific session.

The output is the raw stream the session's claude process wrote, oldest first.`

const sendToSessionDescription = `Send a message or instruction to a session.

Starts one claude turn in the session. Fails if the session is already working; sleep until it completes first.`

const spawnSessionDescription = `Create a new Claude Code session.

Relative directories are resolved against the project root. The directory must exist.`

const permissionModeEnum = `["default", "acceptEdits", "bypassPermissions", "plan"]`

var listSessionsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {}
}`)

var getSessionBufferSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"session_id": {"type": "string", "description": "The session ID"},
		"lines": {"type": "integer", "description": "Number of output chunks to retrieve (default 50)"}
	},
	"required": ["session_id"]
}`)

var sendToSessionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"session_id": {"type": "string", "description": "The session ID"},
		"message": {"type": "string", "description": "The message or instruction to send"}
	},
	"required": ["session_id", "message"]
}`)

var spawnSessionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"cwd": {"type": "string", "description": "Working directory for the session"},
		"model": {"type": "string", "description": "Model to use (opus, sonnet, haiku)"},
		"permission_mode": {"type": "string", "enum": ` + permissionModeEnum + `, "description": "Permission mode"},
		"skip_permissions": {"type": "boolean", "description": "Skip all permission checks (use with caution)"}
	},
	"required": ["cwd"]
}`)

var killSessionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"session_id": {"type": "string", "description": "The session ID to kill"}
	},
	"required": ["session_id"]
}`)

var setPermissionModeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"session_id": {"type": "string", "description": "The session ID"},
		"mode": {"type": "string", "enum": ` + permissionModeEnum + `, "description": "The permission mode to set"}
	},
	"required": ["session_id", "mode"]
}`)

var success = map[string]bool{"success": true}

// NewListSessionsTool creates the list_sessions tool.
func NewListSessionsTool(sessions Sessions) *BaseTool {
	return NewBaseTool(ListSessions, listSessionsDescription, listSessionsSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			return JSONResult(sessions.List())
		})
}

// NewGetSessionBufferTool creates the get_session_buffer tool.
func NewGetSessionBufferTool(sessions Sessions) *BaseTool {
	return NewBaseTool(GetSessionBuffer, getSessionBufferDescription, getSessionBufferSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			var params struct {
				SessionID string  `json:"session_id"`
				Lines     float64 `json:"lines"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return nil, err
			}
			n := int(params.Lines)
			if n <= 0 {
				n = defaultBufferLines
			}
			chunks, err := sessions.Buffer(params.SessionID, n)
			if err != nil {
				return nil, err
			}
			return JSONResult(map[string]any{
				"session_id": params.SessionID,
				"chunks":     len(chunks),
				"output":     strings.Join(chunks, ""),
			})
		})
}

// NewSendToSessionTool creates the send_to_session tool.
func NewSendToSessionTool(sessions Sessions) *BaseTool {
	return NewBaseTool(SendToSession, sendToSessionDescription, sendToSessionSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			var params struct {
				SessionID string `json:"session_id"`
				Message   string `json:"message"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return nil, err
			}
			if err := sessions.Send(ctx, params.SessionID, params.Message); err != nil {
				return nil, err
			}
			return JSONResult(success)
		})
}

// NewSpawnSessionTool creates the spawn_session tool.
func NewSpawnSessionTool(sessions Sessions, projectRoot string) *BaseTool {
	return NewBaseTool(SpawnSession, spawnSessionDescription, spawnSessionSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			var params struct {
				Cwd             string `json:"cwd"`
				Model           string `json:"model"`
				PermissionMode  string `json:"permission_mode"`
				SkipPermissions bool   `json:"skip_permissions"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return nil, err
			}
			cwd, err := ResolveDir(projectRoot, params.Cwd)
			if err != nil {
				return nil, err
			}
			info, err := sessions.Spawn(ctx, session.SpawnOptions{
				Cwd:             cwd,
				Model:           params.Model,
				PermissionMode:  types.PermissionMode(params.PermissionMode),
				SkipPermissions: params.SkipPermissions,
			})
			if err != nil {
				return nil, err
			}
			return JSONResult(info)
		})
}

// ResolveDir resolves dir against root when it is relative and checks that
// the result is an existing directory.
func ResolveDir(root, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: empty path", session.ErrInvalidPath)
	}
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return "", fmt.Errorf("%w: %s", session.ErrInvalidPath, dir)
	}
	return dir, nil
}

// NewKillSessionTool creates the kill_session tool.
func NewKillSessionTool(sessions Sessions) *BaseTool {
	return NewBaseTool(KillSession, "Terminate a session and its running process", killSessionSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			var params struct {
				SessionID string `json:"session_id"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return nil, err
			}
			if _, err := sessions.Get(params.SessionID); err != nil {
				return nil, err
			}
			if err := sessions.Kill(params.SessionID); err != nil {
				return nil, err
			}
			return JSONResult(success)
		})
}

// NewSetPermissionModeTool creates the set_permission_mode tool.
func NewSetPermissionModeTool(sessions Sessions) *BaseTool {
	return NewBaseTool(SetPermissionMode, "Change a session's permission mode", setPermissionModeSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			var params struct {
				SessionID string `json:"session_id"`
				Mode      string `json:"mode"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return nil, err
			}
			if err := sessions.SetPermissionMode(params.SessionID, types.PermissionMode(params.Mode)); err != nil {
				return nil, err
			}
			return JSONResult(success)
		})
}
