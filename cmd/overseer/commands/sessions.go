package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/overseer/internal/config"
	"github.com/opencode-ai/overseer/internal/history"
)

var (
	sessionsLimit int
	sessionsSync  bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List resumable Claude Code sessions",
	Long: `List the Claude Code transcripts found on disk, most recent first.

With --sync the transcripts are also imported into the search index.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum sessions to list (0 for all)")
	sessionsCmd.Flags().BoolVar(&sessionsSync, "sync", false, "Import transcripts into the history index")
}

func runSessions(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	if sessionsSync {
		store, err := history.Open(cfg.History.DBPath, cfg.History.ProjectsDir)
		if err != nil {
			return err
		}
		n, err := store.Sync(cmd.Context())
		store.Close()
		if err != nil {
			return fmt.Errorf("sync history: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "indexed %d sessions\n", n)
	}

	found, err := history.Discover(cfg.History.ProjectsDir, sessionsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tMODIFIED\tMESSAGES\tPREVIEW\t")
	for _, s := range found {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n",
			s.ID,
			s.ProjectPath,
			s.LastModified.Local().Format(time.DateTime),
			s.MessageCount,
			s.Preview,
		)
	}
	return w.Flush()
}
