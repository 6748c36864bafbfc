package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldserve/dispatch/config"
	"github.com/fieldserve/dispatch/core/board"
	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/infra/api"
	"github.com/fieldserve/dispatch/infra/logger"
)

var snapshotDate string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Pull one dispatch snapshot and print a summary",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotDate, "date", "", "viewed date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := api.NewClient(cfg.API, cfg.Auth.Provider())
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}

	date := snapshotDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loader := board.NewLoader(client, cfg.Refresh.ActiveTechsOnly, logger.New("snapshot"), nil)
	snap := loader.Load(ctx, date, model.ViewModeDay)
	if snap.Errs.Any() {
		return fmt.Errorf("snapshot incomplete: queue=%v techs=%v stats=%v",
			snap.Errs.Queue, snap.Errs.Technicians, snap.Errs.Stats)
	}

	fmt.Printf("date: %s\n", date)
	fmt.Printf("unassigned: %d\n", len(snap.Unassigned))
	fmt.Printf("assigned today: %d\n", len(snap.AssignedToday))
	fmt.Printf("technicians: %d\n", len(snap.Technicians))
	if snap.Stats != nil {
		fmt.Printf("in progress: %d  complete: %d  revenue: %.2f\n",
			snap.Stats.InProgress, snap.Stats.Complete, snap.Stats.Revenue)
	}
	return nil
}
