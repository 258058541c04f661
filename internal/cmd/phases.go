package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weilyn/cadence/internal/config"
	"github.com/weilyn/cadence/internal/phase"
	"github.com/weilyn/cadence/internal/util"
)

var phasesCmd = &cobra.Command{
	Use:          "phases",
	Short:        "List the effective phase sequence and its timeouts",
	RunE:         runPhases,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(phasesCmd)
}

func runPhases(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	defs := phase.DefaultSequence()
	source := "built-in"
	if cfg.Phases.File != "" {
		defs, err = phase.LoadSequence(cfg.Phases.File)
		if err != nil {
			return err
		}
		source = cfg.Phases.File
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("PHASE SEQUENCE") + dimStyle.Render("  ("+source+")"))
	for i, def := range defs {
		fmt.Printf("%d. %s  idle %s, total %s\n",
			i+1, itemStyle.Render(def.Name), def.IdleTimeout, def.TotalTimeout)
		fmt.Printf("   %s\n", dimStyle.Render(util.TruncateString(def.Prompt, 100)))
	}
	return nil
}
