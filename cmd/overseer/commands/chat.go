package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/pkg/types"
)

var (
	chatDir   string
	chatModel string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send one message to the overseer agent",
	Long: `Run the overseer agent for a single message and print its transcript.

Sessions spawned by the agent are killed when the command exits.

Examples:
  overseer chat "start a session in ./api and ask it to run the tests"
  overseer chat --model openai/gpt-4o "what sessions are running?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatDir, "directory", "", "Project root")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Overseer model (provider/model)")
}

func runChat(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(chatDir)
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

	if chatModel != "" {
		if err := a.overseer.SetModel(ctx, chatModel); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	unsub := a.bus.Subscribe(event.OverseerMessage, func(e event.Event) {
		printMessage(out, e.Data.(event.OverseerMessageData).Message)
	})
	defer unsub()
	unsubSleep := a.bus.Subscribe(event.OverseerSleeping, func(e event.Event) {
		fmt.Fprintf(out, "... sleeping on %d condition(s)\n", len(e.Data.(event.OverseerSleepingData).Conditions))
	})
	defer unsubSleep()

	err = a.overseer.Chat(ctx, strings.Join(args, " "))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// printMessage skips the running phase of tool calls; the completed one follows.
func printMessage(w io.Writer, msg types.OverseerMessage) {
	switch msg.Role {
	case types.RoleUser:
		return
	case types.RoleTool:
		if msg.ToolCall == nil || msg.ToolCall.Status == types.ToolRunning {
			return
		}
		fmt.Fprintf(w, "[%s %s] %s\n", msg.ToolCall.Name, msg.ToolCall.Status, msg.ToolCall.Result)
	default:
		fmt.Fprintf(w, "%s: %s\n", msg.Role, msg.Content)
	}
}
