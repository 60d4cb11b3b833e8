// Package types provides the core data types shared by the session manager,
// the overseer and the HTTP boundary.
package types

import "fmt"

// SessionStatus is the observable state of a coding-assistant session.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusThinking     SessionStatus = "thinking"
	StatusRunningTool  SessionStatus = "running_tool"
	StatusWaitingInput SessionStatus = "waiting_input"
	StatusError        SessionStatus = "error"
)

// PermissionMode is the permission policy handed to the claude CLI.
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionBypass      PermissionMode = "bypassPermissions"
	PermissionPlan        PermissionMode = "plan"
)

// PermissionModes lists every valid permission mode.
var PermissionModes = []PermissionMode{
	PermissionDefault,
	PermissionAcceptEdits,
	PermissionBypass,
	PermissionPlan,
}

// Valid reports whether m is a known permission mode.
func (m PermissionMode) Valid() bool {
	for _, known := range PermissionModes {
		if m == known {
			return true
		}
	}
	return false
}

// ParsePermissionMode converts s to a PermissionMode. The empty string maps to default.
func ParsePermissionMode(s string) (PermissionMode, error) {
	if s == "" {
		return PermissionDefault, nil
	}
	m := PermissionMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown permission mode %q", s)
	}
	return m, nil
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID             string         `json:"id"`
	Cwd            string         `json:"cwd"`
	Model          string         `json:"model"`
	PermissionMode PermissionMode `json:"permissionMode"`
	Status         SessionStatus  `json:"status"`
	// ContinuationID is the claude session id used with --resume.
	ContinuationID string `json:"continuationId,omitempty"`
	Running        bool   `json:"running"`
	CreatedAt      int64  `json:"createdAt"`
}
