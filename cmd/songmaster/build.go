package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iidx-tools/songmaster/internal/alias"
	"github.com/iidx-tools/songmaster/internal/builder"
	"github.com/iidx-tools/songmaster/internal/manifest"
	"github.com/iidx-tools/songmaster/internal/notify"
	"github.com/iidx-tools/songmaster/internal/release"
	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/textage"
	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/validate"
	"github.com/iidx-tools/songmaster/internal/wiki"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the artifact from the upstream score tables",
	Long: `Rebuild song_master.sqlite from a fresh textage snapshot.

This command:
1. Downloads the previous artifact from the latest GitHub release
   (or reuses the local file when no release is configured)
2. Fetches and parses titletbl/datatbl/actbl
3. Skips the whole rebuild when upstream is byte-identical to the
   previous run (unless --skip-unchanged=false)
4. Applies the snapshot on a copy of the previous artifact and rebuilds
   the alias index (official / wiki / manual)
5. Validates the result and checks chart-id stability
6. Writes latest.json and optionally uploads and notifies Discord`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().Bool("skip-unchanged", true, "skip the rebuild when upstream source hashes match the previous manifest")
	buildCmd.Flags().Bool("wiki", true, "seed csv_wiki aliases from the conversion table")
	buildCmd.Flags().String("manual-csv", "", "manual alias CSV path (default from manual_alias_csv setting)")
	buildCmd.Flags().String("missing-policy", "error", "stability policy for charts missing from the new generation (error|warn)")
	buildCmd.Flags().Bool("upload", false, "upload the artifact and manifest to the latest GitHub release")
	buildCmd.Flags().Bool("notify", true, "send the build summary to the Discord webhook when configured")
}

func runBuild(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	dbPath := viper.GetString("db")
	manifestPath := GetConfigString("manifest", "latest.json")
	schemaVersion := GetConfigString("schema_version", "1")

	skipUnchanged, _ := cmd.Flags().GetBool("skip-unchanged")
	useWiki, _ := cmd.Flags().GetBool("wiki")
	upload, _ := cmd.Flags().GetBool("upload")
	sendNotify, _ := cmd.Flags().GetBool("notify")

	policyRaw, _ := cmd.Flags().GetString("missing-policy")
	policy, err := validate.ParseMissingPolicy(policyRaw)
	if err != nil {
		return err
	}

	manualCSV, _ := cmd.Flags().GetString("manual-csv")
	if manualCSV == "" {
		manualCSV = GetConfigString("manual_alias_csv", "")
	}

	startTime := time.Now()

	// Previous generation: released asset when a release is configured,
	// otherwise whatever artifact is already on disk.
	releaseCfg := releaseConfig()
	var releaseClient *release.Client
	if releaseCfg.Validate() == nil {
		releaseClient = release.NewClient(releaseCfg, 60*time.Second)
	}

	prevPath := dbPath + ".prev"
	havePrev, prevManifest, err := fetchPrevious(releaseClient, dbPath, manifestPath, prevPath)
	if err != nil {
		return err
	}

	// Fresh upstream snapshot
	util.InfoLog("Fetching textage score tables...")
	fetched, err := textage.NewClient(30 * time.Second).FetchTables()
	if err != nil {
		return fmt.Errorf("upstream fetch failed: %w", err)
	}
	util.InfoLog("Parsed %d title rows", len(fetched.Tables.Titles))

	if skipUnchanged && prevManifest.UnchangedSince(fetched.SourceHashes) {
		util.SuccessLog("Upstream sources unchanged since %s; nothing to rebuild", prevManifest.GeneratedAt)
		return nil
	}

	// Optional alias sources
	var wikiRows []wiki.AliasRow
	wikiThreshold := -1
	if useWiki {
		cfg := wikiConfig()
		doc, err := wiki.LoadDocument(cfg)
		if err != nil {
			return err
		}
		rows, parseReport, err := wiki.ParseTitleAliasTable(doc.HTMLText)
		if err != nil {
			return err
		}
		util.InfoLog("Wiki conversion table: %d definition rows (source=%s, encoding=%s)",
			parseReport.DefinitionRows, doc.Source, doc.Encoding)
		wikiRows = rows
		wikiThreshold = cfg.UnresolvedFailThreshold
	}

	var manualRows []alias.ManualRow
	if manualCSV != "" {
		manualRows, err = alias.ReadManualCSV(manualCSV)
		if err != nil {
			return err
		}
		util.InfoLog("Manual alias CSV: %d rows", len(manualRows))
	}

	// Build on a copy of the previous artifact so a failed run leaves the
	// published generation untouched.
	if havePrev {
		if err := copyFile(prevPath, dbPath); err != nil {
			return err
		}
	}

	result, err := runPipeline(dbPath, fetched.Tables, &builder.Options{
		SchemaVersion:           schemaVersion,
		AssetUpdatedAt:          util.JSTTimestamp(),
		WikiRows:                wikiRows,
		ManualRows:              manualRows,
		WikiUnresolvedThreshold: wikiThreshold,
		ShowProgress:            util.IsTerminal(os.Stderr.Fd()) && !viper.GetBool("quiet"),
	})
	if err != nil {
		return err
	}

	// Gate publication on the standalone checks
	util.InfoLog("Validating artifact...")
	artifactReport, err := validate.Artifact(dbPath, schemaVersion)
	if err != nil {
		return err
	}
	util.InfoLog("Artifact valid: %d songs, %d charts, %d aliases",
		artifactReport.Songs, artifactReport.Charts, artifactReport.Aliases)

	var stability *validate.StabilitySummary
	if havePrev {
		stability, err = validate.ChartIDStability(prevPath, dbPath, policy)
		if err != nil {
			return err
		}
		util.InfoLog("Chart ids stable: %d shared, %d new, %d missing",
			stability.SharedCharts, stability.NewOnly, len(stability.MissingKeys))
	}

	m, err := manifest.Build(dbPath, schemaVersion, util.UTCTimestamp(), fetched.SourceHashes)
	if err != nil {
		return err
	}
	if err := manifest.Write(manifestPath, m); err != nil {
		return err
	}
	if err := manifest.Validate(manifestPath, dbPath); err != nil {
		return err
	}

	duration := time.Since(startTime)
	util.SuccessLog("=== Build Summary ===")
	util.InfoLog("Total time: %v", duration.Round(time.Millisecond))
	util.InfoLog("Songs processed: %d", result.SongsProcessed)
	util.InfoLog("Charts processed: %d", result.ChartsProcessed)
	if result.IgnoredRecords > 0 {
		util.InfoLog("Records ignored: %d", result.IgnoredRecords)
	}
	util.InfoLog("Aliases: %d official", result.Alias.OfficialInserted)
	if result.Alias.Wiki != nil {
		util.InfoLog("  csv_wiki: %d inserted, %d unresolved",
			result.Alias.Wiki.InsertedCount, len(result.Alias.Wiki.UnresolvedOfficialTitles))
	}
	if result.Alias.Manual != nil {
		util.InfoLog("  manual: %d inserted, %d redundant skipped",
			result.Alias.Manual.InsertedCount, result.Alias.Manual.SkippedRedundantCount)
	}
	util.InfoLog("Artifact: %s (%s)", m.FileName, humanize.Bytes(uint64(m.ByteSize)))

	if upload {
		if releaseClient == nil {
			return fmt.Errorf("%w: --upload requires github_owner/github_repo and a token", util.ErrInvalidConfig)
		}
		rel, err := releaseClient.GetOrCreateLatestRelease()
		if err != nil {
			return err
		}
		if err := releaseClient.UploadAsset(rel, filepath.Base(dbPath), dbPath); err != nil {
			return err
		}
		if err := releaseClient.UploadAsset(rel, filepath.Base(manifestPath), manifestPath); err != nil {
			return err
		}
	}

	if sendNotify {
		notifier := notify.NewNotifier(discordWebhookURL(), 10*time.Second)
		if notifier.Configured() {
			if err := notifier.Send(buildSummaryMessage(result, artifactReport, stability, m, duration)); err != nil {
				util.WarnLog("Discord notification failed: %v", err)
			}
		}
	}

	return nil
}

// runPipeline opens the working copy, migrates and builds, making sure
// the handle is closed before the validators reopen the file.
func runPipeline(dbPath string, tables *textage.Tables, opts *builder.Options) (*builder.Result, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return builder.Build(st, tables, opts)
}

// fetchPrevious stages the previous generation at prevPath. With a
// release configured it downloads the published asset and manifest;
// otherwise it snapshots the local artifact, if one exists.
func fetchPrevious(client *release.Client, dbPath, manifestPath, prevPath string) (bool, *manifest.Manifest, error) {
	if client != nil {
		rel, err := client.LatestRelease()
		if err != nil {
			return false, nil, err
		}
		downloaded, err := client.DownloadAsset(rel, filepath.Base(dbPath), prevPath)
		if err != nil {
			return false, nil, err
		}
		if !downloaded {
			util.InfoLog("No previous artifact in the latest release; building from scratch")
			return false, nil, nil
		}

		prevManifestPath := prevPath + ".latest.json"
		var prevManifest *manifest.Manifest
		if ok, err := client.DownloadAsset(rel, filepath.Base(manifestPath), prevManifestPath); err == nil && ok {
			prevManifest, err = manifest.Read(prevManifestPath)
			if err != nil {
				util.WarnLog("Previous manifest unreadable: %v", err)
				prevManifest = nil
			}
		}
		util.InfoLog("Previous artifact downloaded from release %s", rel.TagName)
		return true, prevManifest, nil
	}

	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			util.InfoLog("No previous artifact at %s; building from scratch", dbPath)
			return false, nil, nil
		}
		return false, nil, err
	}
	if err := copyFile(dbPath, prevPath); err != nil {
		return false, nil, err
	}
	prevManifest, err := manifest.Read(manifestPath)
	if err != nil {
		util.WarnLog("Previous manifest unreadable: %v", err)
		prevManifest = nil
	}
	return true, prevManifest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}

func buildSummaryMessage(result *builder.Result, artifact *validate.ArtifactReport,
	stability *validate.StabilitySummary, m *manifest.Manifest, duration time.Duration) string {

	lines := []string{
		"Song Master Build Report",
		fmt.Sprintf("Artifact: %s (%s)", m.FileName, humanize.Bytes(uint64(m.ByteSize))),
		fmt.Sprintf("Songs: %d / Charts: %d / Aliases: %d",
			artifact.Songs, artifact.Charts, artifact.Aliases),
		fmt.Sprintf("Official Aliases: %d", result.Alias.OfficialInserted),
	}
	if result.Alias.Wiki != nil {
		lines = append(lines, fmt.Sprintf("Wiki Aliases: %d (unresolved: %d)",
			result.Alias.Wiki.InsertedCount, len(result.Alias.Wiki.UnresolvedOfficialTitles)))
	}
	if result.Alias.Manual != nil {
		lines = append(lines, fmt.Sprintf("Manual Aliases: %d", result.Alias.Manual.InsertedCount))
	}
	if stability != nil {
		lines = append(lines, fmt.Sprintf("Chart IDs: %d shared, %d new, %d missing",
			stability.SharedCharts, stability.NewOnly, len(stability.MissingKeys)))
	}
	lines = append(lines, fmt.Sprintf("Duration: %v", duration.Round(time.Millisecond)))
	return strings.Join(lines, "\n")
}
