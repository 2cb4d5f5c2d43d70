package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wonny/stockhunter/internal/screener"
)

// screenCmd runs a screening from the terminal
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "스크리닝 실행",
	Long: `조건 파일(JSON)로 스크리닝을 실행하고 결과를 표로 출력합니다.

Example:
  go run ./cmd/stockhunter screen --condition condition.json
  go run ./cmd/stockhunter screen --us --condition condition.json`,
	RunE: runScreen,
}

var (
	screenConditionFile string
	screenUS            bool
)

func init() {
	rootCmd.AddCommand(screenCmd)
	screenCmd.Flags().StringVar(&screenConditionFile, "condition", "", "조건 JSON 파일 (생략 시 빈 조건)")
	screenCmd.Flags().BoolVar(&screenUS, "us", false, "미국 유니버스 대상")
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var cond screener.Condition
	if screenConditionFile != "" {
		data, err := os.ReadFile(screenConditionFile)
		if err != nil {
			return fmt.Errorf("read condition file: %w", err)
		}
		if err := json.Unmarshal(data, &cond); err != nil {
			return fmt.Errorf("parse condition file: %w", err)
		}
	}

	provider := a.kr
	if screenUS {
		provider = a.us
	}

	result, err := a.engine.Screen(ctx, provider, &cond)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPRICE\tCHANGE%\tVOLUME")
	for _, match := range result.Matches {
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.2f\t%d\n",
			match.Code, match.Name, match.Price, match.ChangePct, match.Volume)
	}
	w.Flush()

	fmt.Printf("\n%d / %d 종목 매칭 (%d ms)\n",
		result.MatchedCount, result.TotalScanned, result.ExecutionMs)
	return nil
}
