package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/validate"
)

var stabilityCmd = &cobra.Command{
	Use:   "stability <old-artifact> <new-artifact>",
	Short: "Check chart-id stability between two generations",
	Long: `Compare the chart ids of every business key shared by two
database generations. A key mapped to a different chart id in the new
generation always fails; keys missing from the new generation fail only
under --missing-policy=error.`,
	Args: cobra.ExactArgs(2),
	RunE: runStability,
}

func init() {
	rootCmd.AddCommand(stabilityCmd)

	stabilityCmd.Flags().String("missing-policy", "error", "policy for charts missing from the new generation (error|warn)")
}

func runStability(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	policyRaw, _ := cmd.Flags().GetString("missing-policy")
	policy, err := validate.ParseMissingPolicy(policyRaw)
	if err != nil {
		return err
	}

	summary, err := validate.ChartIDStability(args[0], args[1], policy)
	if err != nil {
		return err
	}

	util.SuccessLog("Chart ids stable: %d old, %d new, %d shared, %d new-only, %d missing",
		summary.OldCharts, summary.NewCharts, summary.SharedCharts,
		summary.NewOnly, len(summary.MissingKeys))
	return nil
}
