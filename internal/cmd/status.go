package cmd

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/weilyn/cadence/internal/config"
	"github.com/weilyn/cadence/internal/logging"
	"github.com/weilyn/cadence/internal/snapshot"
	"github.com/weilyn/cadence/internal/store"
	"github.com/weilyn/cadence/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a snapshot of outstanding work in the store",
	Long: `Status captures a one-shot view of the work-item store: how much work
is ready, in progress, and blocked, grouped under the nearest enclosing
epic where one exists.`,
	RunE:         runStatus,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	client := store.NewClient(cfg.Store.Command, cfg.Loop.RetryAttempts, cfg.Loop.RetryBackoff(), logger)

	ctx := cmd.Context()
	snap, err := snapshot.Capture(ctx, client)
	if err != nil {
		return err
	}

	if snap.Empty() {
		fmt.Println(okStyle.Render("No outstanding work."))
		return nil
	}

	counts := map[store.Status]int{}
	byEpic := map[string][]store.WorkItem{}
	amap := snapshot.BuildAncestors(ctx, snap, nil)
	for _, item := range snap.Items() {
		counts[item.Status]++
		epic, _ := amap.Epic(item.ID)
		// Top-level epics have no enclosing epic; list them under their
		// own heading rather than with the standalone items.
		if epic == "" && item.Kind == store.KindEpic {
			epic = item.ID
		}
		byEpic[epic] = append(byEpic[epic], item)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("WORK ITEM STATUS"))
	fmt.Printf("%s ready   %s in progress   %s blocked\n",
		okStyle.Render(fmt.Sprintf("%d", counts[store.StatusOpen])),
		warnStyle.Render(fmt.Sprintf("%d", counts[store.StatusInProgress])),
		failStyle.Render(fmt.Sprintf("%d", counts[store.StatusBlocked])))
	fmt.Println()

	epics := make([]string, 0, len(byEpic))
	for epic := range byEpic {
		epics = append(epics, epic)
	}
	sort.Strings(epics)

	for _, epic := range epics {
		if epic == "" {
			fmt.Println(dimStyle.Render("(no epic)"))
		} else {
			fmt.Println(headerStyle.Render(epic))
		}
		items := byEpic[epic]
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		for _, item := range items {
			age := ""
			if !item.UpdatedAt.IsZero() {
				age = dimStyle.Render("  updated " + humanize.Time(item.UpdatedAt))
			}
			fmt.Printf("  %s  %s %s%s\n",
				itemStyle.Render(item.ID),
				statusStyle(string(item.Status)).Render(string(item.Status)),
				util.TruncateString(item.Title, 60), age)
		}
		fmt.Println()
	}
	return nil
}
