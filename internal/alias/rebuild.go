package alias

import (
	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/wiki"
)

// RebuildInput carries the optional seed sources for one alias rebuild.
// WikiRows nil means the wiki stage is skipped entirely; ManualRows nil
// skips the manual stage.
type RebuildInput struct {
	WikiRows                []wiki.AliasRow
	WikiUnresolvedThreshold int
	ManualRows              []ManualRow
	Timestamp               string
}

// RebuildReport aggregates the per-stage outcomes
type RebuildReport struct {
	OfficialInserted int
	Wiki             *WikiSeedReport
	Manual           *ManualSeedReport
	Verification     *VerificationSummary
}

// Rebuild drops every alias and reseeds the table from scratch:
// official first, then wiki-derived aliases, then the manual CSV,
// finishing with a full verification pass. Callers run it inside a
// single transaction so a failed stage leaves the previous artifact's
// aliases untouched.
func Rebuild(q store.DBTX, input *RebuildInput) (*RebuildReport, error) {
	if err := store.DeleteAllAliases(q); err != nil {
		return nil, err
	}
	util.DebugLog("alias: table reset")

	report := &RebuildReport{}

	inserted, err := SeedOfficial(q, input.Timestamp)
	if err != nil {
		return nil, err
	}
	report.OfficialInserted = inserted
	util.InfoLog("alias: seeded %d official aliases", inserted)

	if input.WikiRows != nil {
		wikiReport, err := SeedWiki(q, input.WikiRows, input.Timestamp, input.WikiUnresolvedThreshold)
		if err != nil {
			return nil, err
		}
		report.Wiki = wikiReport
		util.InfoLog("alias: seeded %d wiki aliases (%d rows resolved, %d unresolved, %d deduplicated)",
			wikiReport.InsertedCount, wikiReport.ResolvedRows,
			len(wikiReport.UnresolvedOfficialTitles), wikiReport.DedupSkippedCount)
	}

	if input.ManualRows != nil {
		manualReport, err := SeedManual(q, input.ManualRows, input.Timestamp)
		if err != nil {
			return nil, err
		}
		report.Manual = manualReport
		util.InfoLog("alias: seeded %d manual aliases (%d redundant rows skipped)",
			manualReport.InsertedCount, manualReport.SkippedRedundantCount)
	}

	verification, err := Verify(q)
	if err != nil {
		return nil, err
	}
	report.Verification = verification

	return report, nil
}
