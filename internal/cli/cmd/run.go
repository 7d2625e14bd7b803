package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainlode/ethexport/internal/cli/runner"
	"github.com/chainlode/ethexport/internal/config"
	"github.com/chainlode/ethexport/internal/partition"
)

var (
	runDate string
	dryRun  bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the export pipeline for one date",
		Long:  "Execute every enabled export step for a single logical date",
		Example: `  ethexport run --date 2021-03-01
  ethexport run --date 2021-03-01 --dry-run`,
		RunE: runOnce,
	}
)

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "logical date to export (YYYY-MM-DD, default: yesterday UTC)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "build and print the task graph without executing")
	rootCmd.AddCommand(runCmd)
}

func resolveDate() (time.Time, error) {
	if runDate == "" {
		return time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour), nil
	}
	return partition.ParseDate(runDate)
}

func runOnce(cmd *cobra.Command, args []string) error {
	date, err := resolveDate()
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	r := runner.New(cfg)

	if dryRun {
		desc, err := r.DescribeGraph()
		if err != nil {
			return err
		}
		fmt.Println(color.YellowString("task graph for %s:", partition.FormatDate(date)))
		fmt.Print(desc)
		return nil
	}

	fmt.Println(color.GreenString("🚀 exporting %s", partition.FormatDate(date)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := r.RunDate(ctx, date); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Println(color.GreenString("✅ export completed for %s", partition.FormatDate(date)))
	return nil
}
