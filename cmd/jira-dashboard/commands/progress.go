package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const progressBarLength = 30

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show how many items have a cached discovery cycle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.svc.Progress(cmd.Context())
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Cycle Time Cache ==="))
		fmt.Printf("  %s %.1f%%\n", renderBar(p.Percent), p.Percent)
		fmt.Printf("  Items:     %d\n", p.Total)
		fmt.Printf("  Cached:    %d\n", p.Cached)
		fmt.Printf("  Completed: %d\n", p.Completed)
		fmt.Printf("  Remaining: %d\n\n", p.Remaining)
		return nil
	},
}

func renderBar(percent float64) string {
	filled := min(int(percent/100*progressBarLength), progressBarLength)
	barColor := color.New(color.FgYellow)
	if percent >= 100 {
		barColor = color.New(color.FgGreen)
	}
	return barColor.Sprint(strings.Repeat("█", filled)) +
		color.New(color.FgHiBlack).Sprint(strings.Repeat("░", progressBarLength-filled))
}
