package event

import "github.com/opencode-ai/overseer/pkg/types"

// EventType represents the type of event.
type EventType string

const (
	SessionSpawned EventType = "session.spawned"
	SessionOutput  EventType = "session.output"
	SessionMessage EventType = "session.message"
	SessionStatus  EventType = "session.status"
	SessionMode    EventType = "session.mode"
	SessionKilled  EventType = "session.killed"
	SessionExited  EventType = "session.exited"

	OverseerMessage  EventType = "overseer.message"
	OverseerStatus   EventType = "overseer.status"
	OverseerSleeping EventType = "overseer.sleeping"
	OverseerAwake    EventType = "overseer.awake"
	OverseerAborted  EventType = "overseer.aborted"
	OverseerCleared  EventType = "overseer.cleared"
	OverseerModel    EventType = "overseer.model"
)

// SessionSpawnedData is the data for session.spawned events.
type SessionSpawnedData struct {
	Info types.SessionInfo `json:"info"`
}

// SessionOutputData is the data for session.output events.
type SessionOutputData struct {
	SessionID string `json:"sessionId"`
	Stream    string `json:"stream"` // "stdout" | "stderr"
	Data      string `json:"data"`
}

// SessionMessageData is the data for session.message events.
type SessionMessageData struct {
	Message types.SessionMessage `json:"message"`
}

// SessionStatusData is the data for session.status events.
type SessionStatusData struct {
	SessionID string              `json:"sessionId"`
	Status    types.SessionStatus `json:"status"`
	Previous  types.SessionStatus `json:"previous"`
}

// SessionModeData is the data for session.mode events.
type SessionModeData struct {
	SessionID string               `json:"sessionId"`
	Mode      types.PermissionMode `json:"mode"`
}

// SessionKilledData is the data for session.killed events.
type SessionKilledData struct {
	SessionID string `json:"sessionId"`
}

// SessionExitedData is the data for session.exited events.
type SessionExitedData struct {
	SessionID string `json:"sessionId"`
	ExitCode  int    `json:"exitCode"`
}

// OverseerMessageData is the data for overseer.message events.
type OverseerMessageData struct {
	Message types.OverseerMessage `json:"message"`
}

// OverseerStatusData is the data for overseer.status events.
type OverseerStatusData struct {
	Status types.OverseerStatus `json:"status"`
}

// OverseerSleepingData is the data for overseer.sleeping events.
type OverseerSleepingData struct {
	Conditions []types.WakeCondition `json:"conditions"`
}

// OverseerAwakeData is the data for overseer.awake events.
type OverseerAwakeData struct {
	// Reason is "timeout", "<condition type>:<session id>", "manual", "aborted"
	// or "chat".
	Reason string `json:"reason"`
}

// OverseerModelData is the data for overseer.model events.
type OverseerModelData struct {
	Model string `json:"model"`
}
