package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/overseer/internal/logging"
	"github.com/opencode-ai/overseer/internal/mcpserver"
	"github.com/opencode-ai/overseer/internal/tool"
)

var (
	mcpDir string
	mcpSSE string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the session tools over MCP",
	Long: `Expose the session control tools (spawn, send, list, kill, search
history...) as a Model Context Protocol server.

The server speaks stdio by default. With --sse it listens on the given
address instead.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpDir, "directory", "", "Project root")
	mcpCmd.Flags().StringVar(&mcpSSE, "sse", "", "Serve SSE on this address (host:port) instead of stdio")
}

func runMCP(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(mcpDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, workDir, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	// No sleeper: an MCP client has its own loop to wait in.
	deps := tool.Deps{Sessions: a.sessions, ProjectRoot: a.cfg.ProjectRoot}
	if a.history != nil {
		deps.History = a.history
	}
	s := mcpserver.New(tool.NewCatalog(deps), Version)

	if mcpSSE == "" {
		err := mcpserver.ServeStdio(ctx, s, os.Stdin, os.Stdout)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	log := logging.Component("mcp")
	sse := mcpserver.NewSSE(s, "http://"+mcpSSE)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", mcpSSE).Msg("mcp sse listening")
		errCh <- sse.Start(mcpSSE)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sse.Shutdown(shutdownCtx)
}
