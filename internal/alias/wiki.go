package alias

import (
	"fmt"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/wiki"
)

// WikiSeedReport summarizes one csv_wiki seeding pass
type WikiSeedReport struct {
	ResolvedRows              int
	UnresolvedOfficialTitles  []string
	InsertedCount             int
	DedupSkippedCount         int
	MaxCandidatesPerSong      int
}

// SeedWiki resolves conversion rows against currently ac-active songs and
// inserts their historical titles as csv_wiki aliases. Only the arcade
// scope is eligible; the wiki tracks arcade renamings.
//
// Resolution by exact title: zero matches is recorded as unresolved and
// tolerated up to threshold (negative disables the check); more than one
// match is fatal, because the official seeding step has already enforced
// title uniqueness among ac-active songs.
func SeedWiki(q store.DBTX, rows []wiki.AliasRow, timestamp string, threshold int) (*WikiSeedReport, error) {
	report := &WikiSeedReport{}
	insertedPairs := make(map[store.AliasTriple]bool)
	perSong := make(map[string]int)

	for _, row := range rows {
		ids, err := store.ActiveSongIDsByTitle(q, store.ScopeAC, row.OfficialTitle, 2)
		if err != nil {
			return nil, err
		}

		if len(ids) == 0 {
			report.UnresolvedOfficialTitles = append(report.UnresolvedOfficialTitles, row.OfficialTitle)
			continue
		}
		if len(ids) > 1 {
			return nil, fmt.Errorf("%w: music title is not unique for wiki alias resolution: %q",
				util.ErrValidation, row.OfficialTitle)
		}

		report.ResolvedRows++
		textageID := ids[0]

		for _, replacedTitle := range dedupe(row.ReplacedTitles) {
			if replacedTitle == row.OfficialTitle {
				report.DedupSkippedCount++
				continue
			}

			triple := store.AliasTriple{TextageID: textageID, Scope: store.ScopeAC, Alias: replacedTitle}
			if insertedPairs[triple] {
				report.DedupSkippedCount++
				continue
			}

			err := store.InsertAlias(q, &store.Alias{
				TextageID: textageID,
				Scope:     store.ScopeAC,
				Alias:     replacedTitle,
				Type:      store.AliasCSVWiki,
			}, timestamp)
			if err != nil {
				// the same alternate title claimed by two different songs
				return nil, fmt.Errorf("%w: scope-unique alias violated: %s:%q: %v",
					util.ErrCollision, store.ScopeAC, replacedTitle, err)
			}

			insertedPairs[triple] = true
			report.InsertedCount++
			perSong[textageID]++
			if perSong[textageID] > report.MaxCandidatesPerSong {
				report.MaxCandidatesPerSong = perSong[textageID]
			}
		}
	}

	if threshold >= 0 && len(report.UnresolvedOfficialTitles) > threshold {
		return nil, fmt.Errorf("%w: too many unresolved official titles in wiki alias import: %d > %d",
			util.ErrValidation, len(report.UnresolvedOfficialTitles), threshold)
	}

	return report, nil
}

// dedupe drops repeated titles preserving first-seen order
func dedupe(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		if !seen[title] {
			seen[title] = true
			out = append(out, title)
		}
	}
	return out
}
