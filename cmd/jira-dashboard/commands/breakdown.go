package commands

import (
	"fmt"

	"jira-dashboard/internal/stats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var breakdownStatus bool

var breakdownCmd = &cobra.Command{
	Use:   "breakdown MEMBER DATE",
	Short: "Reconstruct a member's health or status breakdown at a past date",
	Long: `Replays changelogs to show how a member's items were distributed at the end of DATE
(YYYY-MM-DD). Pass "" as MEMBER for the whole team.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDay(args[1])
		if err != nil {
			return err
		}
		asOf = stats.SnapToEnd(asOf, "day")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		who := args[0]
		if who == "" {
			who = "team"
		}
		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== %s on %s ===", who, args[1])))

		if breakdownStatus {
			r, err := a.svc.StatusBreakdown(cmd.Context(), args[0], asOf)
			if err != nil {
				return err
			}
			rows := []row{
				{"Inbox", r.Status.Inbox, nil},
				{"Generative Discovery", r.Status.GenerativeDiscovery, nil},
				{"Problem Discovery", r.Status.ProblemDiscovery, nil},
				{"Solution Discovery", r.Status.SolutionDiscovery, nil},
				{"Build", r.Status.Build, nil},
				{"Beta", r.Status.Beta, nil},
				{"Live", r.Status.Live, nil},
				{"Won't Do", r.Status.WontDo, nil},
				{"Unknown", r.Status.Unknown, nil},
			}
			printRows(rows, r.Total)
			return nil
		}

		r, err := a.svc.Breakdown(cmd.Context(), args[0], asOf)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		red := color.New(color.FgRed)
		gray := color.New(color.FgHiBlack)
		rows := []row{
			{"On Track", r.Health.OnTrack, green},
			{"At Risk", r.Health.AtRisk, yellow},
			{"Off Track", r.Health.OffTrack, red},
			{"On Hold", r.Health.OnHold, gray},
			{"Mystery", r.Health.Mystery, gray},
			{"Complete", r.Health.Complete, green},
			{"Unknown", r.Health.Unknown, gray},
		}
		printRows(rows, r.Total)
		return nil
	},
}

type row struct {
	label string
	count int
	color *color.Color
}

func printRows(rows []row, total int) {
	for _, r := range rows {
		c := r.color
		if c == nil {
			c = color.New(color.Reset)
		}
		fmt.Printf("  %-22s %s\n", r.label, c.Sprint(r.count))
	}
	fmt.Printf("  %-22s %d\n\n", "Total", total)
}

func init() {
	breakdownCmd.Flags().BoolVar(&breakdownStatus, "status", false, "break down by workflow phase instead of health")
}
