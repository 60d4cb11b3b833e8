package mcpserver

import (
	"context"
	"io"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/process/processtest"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/internal/tool"
)

func connect(t *testing.T, registry *tool.Registry) (*sdkmcp.ClientSession, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()
	t.Cleanup(func() {
		clientWriter.Close()
		serverWriter.Close()
	})

	go func() {
		_ = ServeStdio(ctx, New(registry, "test"), serverReader, serverWriter)
	}()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &sdkmcp.IOTransport{Reader: clientReader, Writer: clientWriter}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs, ctx
}

func newRegistry(t *testing.T) (*tool.Registry, *session.Manager) {
	t.Helper()
	bus := event.NewBus()
	mgr := session.NewManager(session.Options{MaxSessions: 2, Spawner: processtest.NewSpawner(), Bus: bus})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		_ = bus.Close()
	})
	return tool.NewCatalog(tool.Deps{Sessions: mgr, ProjectRoot: t.TempDir()}), mgr
}

func TestServer_ListTools(t *testing.T) {
	registry, _ := newRegistry(t)
	cs, ctx := connect(t, registry)

	result, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tl := range result.Tools {
		names = append(names, tl.Name)
		assert.NotEmpty(t, tl.Description)
	}
	assert.Contains(t, names, tool.SpawnSession)
	assert.Contains(t, names, tool.ListSessions)
	assert.NotContains(t, names, tool.Sleep)
}

func TestServer_CallTool(t *testing.T) {
	registry, mgr := newRegistry(t)
	cs, ctx := connect(t, registry)

	result, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      tool.SpawnSession,
		Arguments: map[string]any{"cwd": "."},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, mgr.List(), 1)

	result, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: tool.ListSessions})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, mgr.List()[0].ID)
}

func TestServer_ToolErrorIsResult(t *testing.T) {
	registry, _ := newRegistry(t)
	cs, ctx := connect(t, registry)

	result, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      tool.KillSession,
		Arguments: map[string]any{"session_id": "missing"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "error")
}
