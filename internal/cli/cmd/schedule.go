package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainlode/ethexport/internal/cli/runner"
	"github.com/chainlode/ethexport/internal/config"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily export daemon",
	Long: "Trigger a full pipeline run once per day at the configured UTC time " +
		"(SCHEDULE_AT, default 01:00). Each trigger exports the previous day.",
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println(color.GreenString("🕐 scheduling daily exports at %s UTC", cfg.ScheduleAt))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = runner.New(cfg).Schedule(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println(color.YellowString("daemon stopped"))
		return nil
	}
	return err
}
