package server

import (
	"context"

	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/pkg/types"
)

// Sessions is the session manager surface the server uses.
type Sessions interface {
	Spawn(ctx context.Context, opts session.SpawnOptions) (types.SessionInfo, error)
	Send(ctx context.Context, id, text string) error
	SendKey(id, key string) error
	Resize(id string, cols, rows int) error
	Kill(id string) error
	SetPermissionMode(id string, mode types.PermissionMode) error
	List() []types.SessionInfo
	Get(id string) (types.SessionInfo, error)
	Buffer(id string, n int) ([]string, error)
}

// Overseer is the control loop surface the server uses.
type Overseer interface {
	Chat(ctx context.Context, text string) error
	Wake()
	Abort()
	ClearHistory() error
	SetModel(ctx context.Context, ref string) error
	Status() types.OverseerStatus
	WakeConditions() []types.WakeCondition
	Messages() []types.OverseerMessage
	Model() string
}

// History is the transcript index surface the server uses.
type History interface {
	Search(ctx context.Context, query string, limit int) ([]history.SearchResult, error)
	Sessions(ctx context.Context, limit, offset int) ([]history.Session, error)
	Messages(ctx context.Context, sessionID string) ([]history.Message, error)
	Sync(ctx context.Context) (int, error)
}
