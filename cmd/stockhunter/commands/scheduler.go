package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/stockhunter/internal/scheduler"
	"github.com/wonny/stockhunter/internal/scheduler/jobs"
)

// schedulerCmd runs the background job scheduler
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 실행 (평일 증분 갱신, 주간 마스터 갱신)",
	RunE:  runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	provider, err := a.buildKR("", "", false)
	if err != nil {
		return err
	}

	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewDailyUpdateJob(a.collector, provider, a.log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewMasterRefreshJob(a.masterCache, a.collector, provider, a.log)); err != nil {
		return err
	}

	sched.Start()
	fmt.Println("✅ Scheduler running. Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
