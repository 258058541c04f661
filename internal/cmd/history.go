package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/weilyn/cadence/internal/config"
	"github.com/weilyn/cadence/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded loop iterations",
	Long: `History prints the append-only iteration log from the state directory:
which item each iteration worked on, how its phases went, and how long it
took. The log survives across runs.`,
	RunE:         runHistory,
	SilenceUsage: true,
}

var (
	historyJSON bool
	historyLast int
)

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output history as JSON")
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "Show only the last N iterations (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	records, err := history.ReadAll(cfg.Paths.ResolveStateDir(cwd))
	if err != nil {
		return err
	}
	if historyLast > 0 && len(records) > historyLast {
		records = records[len(records)-historyLast:]
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []history.IterationRecord{}
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println(dimStyle.Render("No recorded iterations."))
		return nil
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("ITERATION HISTORY"))
	for _, rec := range records {
		worked := rec.WorkedItem
		if worked == "" {
			worked = dimStyle.Render("(nothing attributed)")
		} else {
			worked = itemStyle.Render(worked)
		}

		fmt.Printf("%3d  %s  %s  %s  %s\n",
			rec.Iteration,
			statusStyle(string(rec.Status)).Render(fmt.Sprintf("%-7s", rec.Status)),
			worked,
			rec.Elapsed.Round(time.Second),
			dimStyle.Render(humanize.Time(rec.RecordedAt)))
		for _, ph := range rec.Phases {
			fmt.Printf("       %s %s (%s)\n",
				statusStyle(ph.Outcome).Render(ph.Outcome),
				ph.Phase,
				ph.Elapsed.Round(time.Second))
		}
	}
	return nil
}
