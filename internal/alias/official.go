// Package alias rebuilds the searchable alias index from its three
// provenance layers: official titles, wiki-sourced historical renamings
// and manually curated overrides. The rebuild is a fixed sequence —
// reset, official, wiki, manual, verify — and any invariant violation
// aborts the whole build before publication.
package alias

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

// SeedOfficial inserts exactly one official alias per (song, scope) for
// every scope the song is currently active in; the alias text is the
// song's current title. Two active songs producing the same (scope,
// title) is fatal: it means a title duplicate slipped past qualifier
// resolution, and silently dropping one side would hide that.
func SeedOfficial(q store.DBTX, timestamp string) (int, error) {
	inserted := 0

	for _, scope := range store.Scopes {
		songs, err := store.ActiveTitleSongs(q, scope)
		if err != nil {
			return 0, err
		}

		byTitle := make(map[string][]string, len(songs))
		for _, song := range songs {
			byTitle[song.Title] = append(byTitle[song.Title], song.TextageID)
		}
		for title, ids := range byTitle {
			if len(ids) > 1 {
				sort.Strings(ids)
				return 0, fmt.Errorf(
					"%w: official title %q duplicated in scope %s by textage ids %s",
					util.ErrCollision, title, scope, strings.Join(ids, ", "))
			}
		}

		for _, song := range songs {
			err := store.InsertAlias(q, &store.Alias{
				TextageID: song.TextageID,
				Scope:     scope,
				Alias:     song.Title,
				Type:      store.AliasOfficial,
			}, timestamp)
			if err != nil {
				return 0, fmt.Errorf("failed to seed official alias %s:%q: %w",
					scope, song.Title, err)
			}
			inserted++
		}
	}

	return inserted, nil
}
