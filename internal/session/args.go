package session

import (
	"github.com/opencode-ai/overseer/internal/process"
	"github.com/opencode-ai/overseer/pkg/types"
)

// BuildArgs returns the claude CLI arguments for one prompt.
func BuildArgs(info types.SessionInfo, prompt string) []string {
	args := []string{"--print", "--output-format", "stream-json", "--verbose"}

	if info.ContinuationID != "" {
		args = append(args, "--resume", info.ContinuationID)
	}
	if info.Model != "" {
		args = append(args, "--model", info.Model)
	}

	// default and acceptEdits add no flag.
	switch info.PermissionMode {
	case types.PermissionPlan:
		args = append(args, "--permission-mode", "plan")
	case types.PermissionBypass:
		args = append(args, "--dangerously-skip-permissions")
	}

	return append(args, prompt)
}

// BuildSpec returns the full process spec for one prompt.
func BuildSpec(claudePath string, info types.SessionInfo, prompt string) process.Spec {
	return process.Spec{
		Path: claudePath,
		Args: BuildArgs(info, prompt),
		Dir:  info.Cwd,
		Env:  []string{"TERM=xterm-256color", "COLORTERM=truecolor"},
	}
}
