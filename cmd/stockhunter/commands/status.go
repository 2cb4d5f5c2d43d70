package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd prints store statistics
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "저장소 상태 출력",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	priceStats, err := a.prices.Statistics(ctx)
	if err != nil {
		return err
	}
	masterStats, err := a.masters.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println("=== Stock Hunter 저장소 상태 ===")
	fmt.Printf("일봉:       %d 건 / %d 종목\n", priceStats.BarCount, priceStats.InstrumentCount)
	if priceStats.OldestDate != nil && priceStats.NewestDate != nil {
		fmt.Printf("기간:       %s ~ %s\n",
			priceStats.OldestDate.Format("2006-01-02"),
			priceStats.NewestDate.Format("2006-01-02"))
	}
	if priceStats.LastFullInit != "" {
		fmt.Printf("전체 백필:  %s\n", priceStats.LastFullInit)
	}
	if priceStats.LastDailyUpdate != "" {
		fmt.Printf("최근 갱신:  %s\n", priceStats.LastDailyUpdate)
	}

	fmt.Printf("종목 마스터: %d 종목\n", masterStats.Total)
	for market, count := range masterStats.PerMarket {
		fmt.Printf("  %-7s: %d\n", market, count)
	}
	return nil
}
