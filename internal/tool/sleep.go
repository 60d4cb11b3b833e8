package tool

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/opencode-ai/overseer/pkg/types"
)

// ErrNoWakeCondition is returned by sleep when no condition was given.
var ErrNoWakeCondition = errors.New("sleep needs at least one wake condition")

const sleepDescription = `Pause execution and wait for conditions. Use this when waiting for sessions to complete tasks.

Give a timeout, one or more session ids to watch, or both. The first condition met wakes you; the others are discarded.`

var sleepSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"timeout_ms": {"type": "integer", "description": "Max time to sleep in milliseconds"},
		"wake_on_complete": {"type": "string", "description": "Session ID to wake on when it completes"},
		"wake_on_error": {"type": "string", "description": "Session ID to wake on when it errors"},
		"wake_on_input_needed": {"type": "string", "description": "Session ID to wake on when it needs input"}
	}
}`)

// NewSleepTool creates the sleep tool.
func NewSleepTool(sleeper Sleeper) *BaseTool {
	return NewBaseTool(Sleep, sleepDescription, sleepSchema,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			conditions, err := ParseWakeConditions(input)
			if err != nil {
				return nil, err
			}
			if err := sleeper.Sleep(conditions); err != nil {
				return nil, err
			}
			return JSONResult(map[string]any{
				"status":     "sleeping",
				"conditions": conditions,
			})
		})
}

// ParseWakeConditions converts sleep input into a condition set.
func ParseWakeConditions(input json.RawMessage) ([]types.WakeCondition, error) {
	var params struct {
		TimeoutMs         float64 `json:"timeout_ms"`
		WakeOnComplete    string  `json:"wake_on_complete"`
		WakeOnError       string  `json:"wake_on_error"`
		WakeOnInputNeeded string  `json:"wake_on_input_needed"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return nil, err
		}
	}

	var conditions []types.WakeCondition
	if params.TimeoutMs > 0 {
		conditions = append(conditions, types.WakeCondition{Type: types.WakeTimeout, TimeoutMs: int64(params.TimeoutMs)})
	}
	if params.WakeOnComplete != "" {
		conditions = append(conditions, types.WakeCondition{Type: types.WakeSessionComplete, SessionID: params.WakeOnComplete})
	}
	if params.WakeOnError != "" {
		conditions = append(conditions, types.WakeCondition{Type: types.WakeSessionError, SessionID: params.WakeOnError})
	}
	if params.WakeOnInputNeeded != "" {
		conditions = append(conditions, types.WakeCondition{Type: types.WakeSessionInputNeeded, SessionID: params.WakeOnInputNeeded})
	}
	if len(conditions) == 0 {
		return nil, ErrNoWakeCondition
	}
	return conditions, nil
}
