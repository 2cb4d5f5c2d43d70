package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/stockhunter/internal/collector"
)

// collectCmd groups the collection subcommands
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "일봉 데이터 수집",
}

// collectInitCmd runs a full backfill
var collectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "전체 백필 실행 (약 400 거래일)",
	RunE:  runCollectInit,
}

// collectUpdateCmd runs an incremental update
var collectUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "증분 갱신 실행",
	RunE:  runCollectUpdate,
}

var collectForce bool

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.AddCommand(collectInitCmd)
	collectCmd.AddCommand(collectUpdateCmd)

	collectInitCmd.Flags().BoolVar(&collectForce, "force", false, "이미 초기화된 저장소도 다시 백필")
}

func runCollectInit(cmd *cobra.Command, args []string) error {
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

	err = a.collector.Backfill(ctx, provider, collectForce)
	if errors.Is(err, collector.ErrAlreadyInitialized) {
		fmt.Println("이미 초기화됨. --force 로 다시 실행 가능")
		return nil
	}
	if err != nil {
		return err
	}

	progress := a.collector.Progress()
	fmt.Printf("백필 완료: %d 성공 / %d 실패\n", progress.Succeeded, progress.Failed)
	return nil
}

func runCollectUpdate(cmd *cobra.Command, args []string) error {
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

	if err := a.collector.Update(ctx, provider); err != nil {
		return err
	}

	progress := a.collector.Progress()
	fmt.Printf("증분 갱신 완료: %d 성공 / %d 실패\n", progress.Succeeded, progress.Failed)
	return nil
}
