package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/overseer/internal/logging"
	"github.com/opencode-ai/overseer/internal/server"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
	serveNoCORS   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the overseer server",
	Long: `Start the HTTP, SSE and WebSocket server that drives Claude Code
sessions and the overseer agent.

Port and hostname default to the server section of the configuration.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Project root")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false, "Disable CORS headers")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}
	log := logging.Component("serve")
	log.Info().Str("version", Version).Str("dir", workDir).Msg("starting overseer server")

	a, err := newApp(cmd.Context(), workDir, appOptions{watch: true})
	if err != nil {
		return err
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = a.cfg.Server.Port
	serverConfig.Hostname = a.cfg.Server.Hostname
	if servePort != 0 {
		serverConfig.Port = servePort
	}
	if serveHostname != "" {
		serverConfig.Hostname = serveHostname
	}
	serverConfig.EnableCORS = !serveNoCORS

	deps := server.Deps{
		Bus:         a.bus,
		Sessions:    a.sessions,
		Overseer:    a.overseer,
		ProjectsDir: a.cfg.History.ProjectsDir,
		Storage:     a.storage,
	}
	if a.history != nil {
		deps.History = a.history
	}
	srv := server.New(serverConfig, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("server error")
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("cleanup")
	}
	log.Info().Msg("server stopped")
	return serveErr
}
