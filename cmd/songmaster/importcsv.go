package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iidx-tools/songmaster/internal/notify"
	"github.com/iidx-tools/songmaster/internal/scoreimport"
	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

var importCSVCmd = &cobra.Command{
	Use:   "import-csv <score-csv>",
	Short: "Identify songs in an arcade score CSV against the alias index",
	Long: `Resolve every title of an exported arcade score CSV through the
ac-scope official and manual aliases and report the match rate.

The artifact is never modified; the command writes a JSON report and an
unmatched-titles CSV, prints a summary and can notify Discord.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportCSV,
}

func init() {
	rootCmd.AddCommand(importCSVCmd)

	importCSVCmd.Flags().String("report", "ac_import_report.json", "report JSON output path")
	importCSVCmd.Flags().String("unmatched", "ac_import_unmatched.csv", "unmatched titles CSV output path")
	importCSVCmd.Flags().Bool("notify", true, "send the report to the Discord webhook when configured")
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	reportPath, _ := cmd.Flags().GetString("report")
	unmatchedPath, _ := cmd.Flags().GetString("unmatched")
	sendNotify, _ := cmd.Flags().GetBool("notify")

	st, err := store.OpenReadOnly(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer st.Close()

	report, unmatched, err := scoreimport.Identify(st.DB(), args[0])
	if err != nil {
		return err
	}

	if err := scoreimport.WriteReportJSON(report, reportPath); err != nil {
		return err
	}
	if err := scoreimport.WriteUnmatchedCSV(unmatched, unmatchedPath); err != nil {
		return err
	}

	scoreimport.PrintSummary(report)
	util.InfoLog("Report: %s", reportPath)
	util.InfoLog("Unmatched titles: %s", unmatchedPath)

	if sendNotify {
		notifier := notify.NewNotifier(discordWebhookURL(), 10*time.Second)
		if notifier.Configured() {
			if err := notifier.Send(scoreimport.DiscordMessage(report)); err != nil {
				util.WarnLog("Discord notification failed: %v", err)
			}
		}
	}

	return nil
}
