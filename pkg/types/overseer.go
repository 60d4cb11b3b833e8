package types

// OverseerStatus is the state of the overseer control loop.
type OverseerStatus string

const (
	OverseerIdle     OverseerStatus = "idle"
	OverseerThinking OverseerStatus = "thinking"
	OverseerSleeping OverseerStatus = "sleeping"
	OverseerActing   OverseerStatus = "acting"
)

// OverseerRole identifies who produced an overseer conversation entry.
type OverseerRole string

const (
	RoleUser      OverseerRole = "user"
	RoleAssistant OverseerRole = "assistant"
	RoleTool      OverseerRole = "tool"
	RoleSystem    OverseerRole = "system"
	RoleError     OverseerRole = "error"
)

// ToolCallStatus is the lifecycle of a single tool invocation.
type ToolCallStatus string

const (
	ToolRunning   ToolCallStatus = "running"
	ToolCompleted ToolCallStatus = "completed"
	ToolError     ToolCallStatus = "error"
)

// ToolCall records a tool invocation made by the overseer.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Status ToolCallStatus `json:"status"`
	Result string         `json:"result,omitempty"`
}

// OverseerMessage is one entry of the overseer transcript as seen by clients.
type OverseerMessage struct {
	ID        string       `json:"id"`
	Role      OverseerRole `json:"role"`
	Content   string       `json:"content"`
	Timestamp int64        `json:"timestamp"`
	ToolCall  *ToolCall    `json:"toolCall,omitempty"`
}

// WakeConditionType identifies the trigger of a wake condition.
type WakeConditionType string

const (
	WakeTimeout            WakeConditionType = "timeout"
	WakeSessionComplete    WakeConditionType = "session_complete"
	WakeSessionError       WakeConditionType = "session_error"
	WakeSessionInputNeeded WakeConditionType = "session_input_needed"
)

// WakeCondition is one trigger that ends an overseer sleep.
type WakeCondition struct {
	Type      WakeConditionType `json:"type"`
	SessionID string            `json:"sessionId,omitempty"`
	TimeoutMs int64             `json:"timeoutMs,omitempty"`
}
