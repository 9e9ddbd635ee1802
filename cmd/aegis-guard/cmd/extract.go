package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cache"
	"github.com/Aegis-Guard/Aegisguard/internal/config"
	"github.com/Aegis-Guard/Aegisguard/pkg/agentguard"
)

var extractForce bool

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract predicates and rules from a policy document",
	Long: `Run the extraction pipeline against a policy document and write the
result next to it as <file>` + cache.Suffix + `.

Later runs reuse the cache; pass --force to re-extract from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "ignore an existing extraction cache")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := agentguard.NewLogger(cfg.Logging)

	if extractForce {
		cachePath := path + cache.Suffix
		if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache %s: %w", cachePath, err)
		}
	}

	extractor, err := agentguard.NewExtractor(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defs, err := extractor.Extract(cmd.Context(), path)
	if err != nil {
		return err
	}

	fmt.Printf("extracted %d rules from %s\n", len(defs), path)
	fmt.Printf("cache written to %s\n", path+cache.Suffix)
	return nil
}
