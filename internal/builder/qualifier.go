package builder

import (
	"database/sql"
	"fmt"

	"github.com/iidx-tools/songmaster/internal/store"
)

type qualifierRow struct {
	textageID string
	title     string
	acActive  bool
	infActive bool
	current   string
}

// resolveQualifiers recomputes title_qualifier for every song row:
// an explicit upstream annotation always wins; otherwise a song active
// in exactly one scope whose title is shared with another song gets that
// scope's suffix; everything else is cleared. The whole table is
// revisited each run since titles and activity shift which songs collide.
func resolveQualifiers(tx *sql.Tx, explicit map[string]string) (int, error) {
	rows, err := tx.Query(`
		SELECT textage_id, title, is_ac_active, is_inf_active, title_qualifier
		FROM music ORDER BY music_id`)
	if err != nil {
		return 0, fmt.Errorf("failed to list songs for qualifier resolution: %w", err)
	}

	var songs []qualifierRow
	titleCount := make(map[string]int)
	for rows.Next() {
		var (
			song    qualifierRow
			ac, inf int
		)
		if err := rows.Scan(&song.textageID, &song.title, &ac, &inf, &song.current); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan song for qualifier resolution: %w", err)
		}
		song.acActive = ac == 1
		song.infActive = inf == 1
		songs = append(songs, song)
		titleCount[song.title]++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	updated := 0
	for _, song := range songs {
		resolved := resolveOne(song, explicit[song.textageID], titleCount[song.title] > 1)
		if resolved == song.current {
			continue
		}
		if err := store.SetTitleQualifier(tx, song.textageID, resolved); err != nil {
			return 0, err
		}
		updated++
	}
	return updated, nil
}

func resolveOne(song qualifierRow, explicitQualifier string, collides bool) string {
	if explicitQualifier != "" {
		return explicitQualifier
	}
	if collides && song.acActive != song.infActive {
		if song.acActive {
			return store.ScopeAC.Qualifier()
		}
		return store.ScopeINF.Qualifier()
	}
	return ""
}
