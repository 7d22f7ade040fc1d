package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [artifact]",
	Short: "Run the post-build checks against an artifact",
	Long: `Run the full structural check suite against a database file:
schema constraints, unique and lookup indexes, qualifier shape,
alias/active-song consistency and the recorded schema version.

Defaults to the configured --db path when no artifact is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("schema-version", "", "expected schema version (empty skips the check)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	path := viper.GetString("db")
	if len(args) == 1 {
		path = args[0]
	}
	expected, _ := cmd.Flags().GetString("schema-version")

	util.InfoLog("Validating %s", path)
	report, err := validate.Artifact(path, expected)
	if err != nil {
		return err
	}

	util.SuccessLog("Artifact valid (schema %s): %d songs, %d charts, %d aliases",
		report.SchemaVersion, report.Songs, report.Charts, report.Aliases)
	return nil
}
