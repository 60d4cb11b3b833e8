package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/overseer/internal/config"
	"github.com/opencode-ai/overseer/internal/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List models the overseer can use",
	Long: `List the models of every configured provider.

Examples:
  overseer models              # List all models
  overseer models anthropic    # List only Anthropic models`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	registry := provider.InitializeProviders(cfg)

	var providerFilter string
	if len(args) > 0 {
		providerFilter = args[0]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tFEATURES\t")
	for _, m := range registry.AllModels() {
		if providerFilter != "" && m.ProviderID != providerFilter {
			continue
		}
		features := ""
		if m.SupportsTools {
			features = "tools"
		}
		marker := ""
		if m.ProviderID+"/"+m.ID == cfg.Overseer.Model {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%dk\t%s\t\n", m.ProviderID, m.ID, marker, m.ContextLength/1000, features)
	}
	return w.Flush()
}
