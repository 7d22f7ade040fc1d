// Package builder turns one parsed upstream snapshot into the versioned
// database artifact: song/chart upserts, qualifier resolution, the alias
// rebuild and the meta record, each phase in its own transaction.
package builder

import (
	"database/sql"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/iidx-tools/songmaster/internal/alias"
	"github.com/iidx-tools/songmaster/internal/normalize"
	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/textage"
	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/wiki"
)

// Options configures one build pass
type Options struct {
	SchemaVersion  string
	AssetUpdatedAt string

	// nil skips the corresponding alias stage
	WikiRows   []wiki.AliasRow
	ManualRows []alias.ManualRow

	// negative disables the unresolved-wiki-title abort
	WikiUnresolvedThreshold int

	ShowProgress bool
}

// Result summarizes one build pass for the caller's report
type Result struct {
	SongsProcessed  int
	ChartsProcessed int
	IgnoredRecords  int
	Alias           *alias.RebuildReport
}

// Build applies the snapshot to the artifact. The store must already be
// migrated to the current schema (Open does this). Each phase commits
// independently; a failure leaves earlier phases committed and the
// caller discards the working copy of the artifact.
func Build(st *store.Store, tables *textage.Tables, opts *Options) (*Result, error) {
	result := &Result{}

	err := st.Transaction(func(tx *sql.Tx) error {
		return applySnapshot(tx, tables, opts.ShowProgress, result)
	})
	if err != nil {
		return nil, err
	}
	util.InfoLog("snapshot applied: %d songs, %d charts (%d records ignored)",
		result.SongsProcessed, result.ChartsProcessed, result.IgnoredRecords)

	err = st.Transaction(func(tx *sql.Tx) error {
		aliasReport, err := alias.Rebuild(tx, &alias.RebuildInput{
			WikiRows:                opts.WikiRows,
			WikiUnresolvedThreshold: opts.WikiUnresolvedThreshold,
			ManualRows:              opts.ManualRows,
			Timestamp:               util.UTCTimestamp(),
		})
		if err != nil {
			return err
		}
		result.Alias = aliasReport
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = st.Transaction(func(tx *sql.Tx) error {
		return store.UpsertMeta(tx, &store.Meta{
			SchemaVersion:  opts.SchemaVersion,
			AssetUpdatedAt: opts.AssetUpdatedAt,
			GeneratedAt:    util.UTCTimestamp(),
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applySnapshot resets every active flag and reapplies the fresh
// snapshot: absence from the snapshot is the only delisting signal
// upstream provides, so plain upserts would never delist anything.
func applySnapshot(tx *sql.Tx, tables *textage.Tables, showProgress bool, result *Result) error {
	if err := store.ResetActiveFlags(tx); err != nil {
		return err
	}

	tags := make([]string, 0, len(tables.Titles))
	for tag := range tables.Titles {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(tags),
			progressbar.OptionSetDescription("Applying snapshot"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("songs"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	explicitQualifiers := make(map[string]string)
	for _, tag := range tags {
		titleRow := tables.Titles[tag]
		data, hasData := tables.Data[tag]
		act, hasAct := tables.Act[tag]
		if !hasData || !hasAct {
			// a key without its sub-tables is an upstream artifact, not an error
			result.IgnoredRecords++
			util.DebugLog("snapshot: ignoring %s (datatbl=%t, actbl=%t)", tag, hasData, hasAct)
			continue
		}

		title := normalize.TextageString(titleRow.Title)
		if subtitle := normalize.TextageString(titleRow.Subtitle); subtitle != "" {
			title = title + " " + subtitle
		}

		musicID, err := store.UpsertSong(tx, &store.SongInput{
			TextageID:   titleRow.TextageID,
			Version:     titleRow.Version,
			Title:       title,
			Artist:      normalize.TextageString(titleRow.Artist),
			Genre:       normalize.TextageString(titleRow.Genre),
			IsACActive:  act.ACActive(),
			IsINFActive: act.INFActive(),
		})
		if err != nil {
			return err
		}
		result.SongsProcessed++

		for _, kind := range textage.ChartKinds {
			level := act.Level(kind)
			err := store.UpsertChart(tx, &store.Chart{
				MusicID:    musicID,
				PlayStyle:  kind.PlayStyle,
				Difficulty: kind.Difficulty,
				Level:      level,
				Notes:      data.Notes(kind),
				IsActive:   level > 0,
			})
			if err != nil {
				return err
			}
			result.ChartsProcessed++
		}

		if qualifier := normalize.TextageString(act.TitleQualifier()); qualifier != "" {
			explicitQualifiers[titleRow.TextageID] = qualifier
		}

		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	updated, err := resolveQualifiers(tx, explicitQualifiers)
	if err != nil {
		return err
	}
	if updated > 0 {
		util.DebugLog("snapshot: %d title qualifiers updated", updated)
	}

	return nil
}
