// Package commands provides the CLI commands for the overseer.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/overseer/internal/config"
	"github.com/opencode-ai/overseer/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs  bool
	prettyLogs bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "overseer",
	Short: "Supervise Claude Code sessions with an LLM control loop",
	Long: `Overseer runs several Claude Code CLI sessions side by side and lets an
LLM agent watch, drive and wait on them.

Run 'overseer serve' to start the HTTP and WebSocket server, 'overseer chat'
for a one-shot conversation with the agent, or 'overseer mcp' to expose the
session tools to another MCP client.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human readable log output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("overseer %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(mcpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// initLogging always writes to the state log directory; stderr only with --print-logs.
func initLogging() {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	cfg.Pretty = prettyLogs
	cfg.LogToFile = true
	cfg.LogDir = config.GetPaths().LogPath()
	if !printLogs {
		cfg.Output = io.Discard
	}
	logging.Init(cfg)
}
