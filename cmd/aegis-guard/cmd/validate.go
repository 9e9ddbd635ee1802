package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	celeval "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cel"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse and compile a policy list, reporting per-rule errors",
	Long: `Load a pre-extracted policy list (cache JSON or its YAML equivalent),
compile every rule, and report each one that fails. Exits non-zero when
any rule is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	defs, err := policy.LoadDefinitionsFile(args[0])
	if err != nil {
		return err
	}

	evaluator, err := celeval.NewEvaluator(nil)
	if err != nil {
		return err
	}

	invalid := 0
	for _, def := range defs {
		if _, err := evaluator.Compile(def.Rule()); err != nil {
			invalid++
			fmt.Printf("INVALID  %s: %v\n", def.Description, err)
			continue
		}
		fmt.Printf("ok       %s\n", def.Description)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules failed to compile", invalid, len(defs))
	}
	fmt.Printf("all %d rules compile\n", len(defs))
	return nil
}
