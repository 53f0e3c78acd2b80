package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var clearQuarter string

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove cached discovery cycles",
	Long:  `Removes every cached discovery cycle, or only those completed in --quarter (e.g. Q2_2025).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.ClearCache(cmd.Context(), clearQuarter)
		if err != nil {
			return err
		}
		scope := "all quarters"
		if clearQuarter != "" {
			scope = clearQuarter
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("Removed %s cached records (%s)\n", yellow(n), scope)
		return nil
	},
}

var importBaselineCmd = &cobra.Command{
	Use:   "import-baseline FILE",
	Short: "Replace the stored capacity baseline with a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.ImportBaseline(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("Imported %s baseline weeks from %s\n", green(n), args[0])
		return nil
	},
}

func init() {
	clearCacheCmd.Flags().StringVar(&clearQuarter, "quarter", "", "only clear this completion quarter (Q1_2025)")
}
