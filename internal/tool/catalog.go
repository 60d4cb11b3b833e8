package tool

import (
	"context"

	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/pkg/types"
)

// Tool IDs of the session-control catalog.
const (
	ListSessions      = "list_sessions"
	GetSessionBuffer  = "get_session_buffer"
	SendToSession     = "send_to_session"
	SpawnSession      = "spawn_session"
	KillSession       = "kill_session"
	SetPermissionMode = "set_permission_mode"
	SearchHistory     = "search_history"
	Sleep             = "sleep"
)

// Sessions is the part of the session manager the catalog drives.
type Sessions interface {
	List() []types.SessionInfo
	Get(id string) (types.SessionInfo, error)
	Buffer(id string, n int) ([]string, error)
	Send(ctx context.Context, id, text string) error
	Spawn(ctx context.Context, opts session.SpawnOptions) (types.SessionInfo, error)
	Kill(id string) error
	SetPermissionMode(id string, mode types.PermissionMode) error
}

// HistorySearcher runs full-text queries over past sessions.
type HistorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]history.SearchResult, error)
}

// Sleeper installs a set of wake conditions for the calling loop.
type Sleeper interface {
	Sleep(conditions []types.WakeCondition) error
}

// Deps are the collaborators of the catalog.
type Deps struct {
	Sessions Sessions
	// History may be nil; search_history then reports that history is unavailable.
	History HistorySearcher
	// Sleeper may be nil, in which case the sleep tool is not registered.
	Sleeper Sleeper
	// ProjectRoot resolves relative spawn_session directories.
	ProjectRoot string
}

// NewCatalog returns a registry holding the session-control tools.
func NewCatalog(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(NewListSessionsTool(deps.Sessions))
	r.Register(NewGetSessionBufferTool(deps.Sessions))
	r.Register(NewSendToSessionTool(deps.Sessions))
	r.Register(NewSpawnSessionTool(deps.Sessions, deps.ProjectRoot))
	r.Register(NewKillSessionTool(deps.Sessions))
	r.Register(NewSetPermissionModeTool(deps.Sessions))
	r.Register(NewSearchHistoryTool(deps.History))
	if deps.Sleeper != nil {
		r.Register(NewSleepTool(deps.Sleeper))
	}
	return r
}
