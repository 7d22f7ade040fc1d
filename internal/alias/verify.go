package alias

import (
	"fmt"
	"strings"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

// VerificationSummary carries the per-scope counts checked after seeding
type VerificationSummary struct {
	ActiveSongs     map[store.Scope]int
	OfficialAliases map[store.Scope]int
	TotalAliases    int
}

// Verify checks the seeded alias table against the music table. Every
// active song must carry exactly one official alias in its scope, and
// the table must be free of duplicates, orphans and unknown types.
func Verify(q store.DBTX) (*VerificationSummary, error) {
	summary := &VerificationSummary{
		ActiveSongs:     make(map[store.Scope]int, len(store.Scopes)),
		OfficialAliases: make(map[store.Scope]int, len(store.Scopes)),
	}

	for _, scope := range store.Scopes {
		activeCount, err := store.ActiveSongCount(q, scope)
		if err != nil {
			return nil, err
		}
		officialCount, err := store.AliasCount(q, scope, store.AliasOfficial)
		if err != nil {
			return nil, err
		}
		summary.ActiveSongs[scope] = activeCount
		summary.OfficialAliases[scope] = officialCount

		if activeCount != officialCount {
			return nil, fmt.Errorf(
				"%w: official alias count mismatch (scope=%s, active_songs=%d, official_aliases=%d)",
				util.ErrValidation, scope, activeCount, officialCount)
		}

		if err := verifyActiveSongsCovered(q, scope); err != nil {
			return nil, err
		}
	}

	if err := verifyNoDuplicateAliases(q); err != nil {
		return nil, err
	}
	if err := verifyNoOrphans(q); err != nil {
		return nil, err
	}
	if err := verifyAliasTypes(q); err != nil {
		return nil, err
	}

	row := q.QueryRow(`SELECT COUNT(*) FROM music_title_alias`)
	if err := row.Scan(&summary.TotalAliases); err != nil {
		return nil, fmt.Errorf("failed to count aliases: %w", err)
	}

	return summary, nil
}

func verifyActiveSongsCovered(q store.DBTX, scope store.Scope) error {
	query := fmt.Sprintf(`
		SELECT m.textage_id
		FROM music m
		LEFT JOIN music_title_alias a
			ON a.textage_id = m.textage_id
			AND a.alias_scope = ?
			AND a.alias_type = 'official'
		WHERE m.is_%s_active = 1 AND a.alias_id IS NULL
		ORDER BY m.textage_id
		LIMIT 10`, scope)

	rows, err := q.Query(query, string(scope))
	if err != nil {
		return fmt.Errorf("failed to query uncovered active songs: %w", err)
	}
	defer rows.Close()

	var uncovered []string
	for rows.Next() {
		var textageID string
		if err := rows.Scan(&textageID); err != nil {
			return fmt.Errorf("failed to scan uncovered active song: %w", err)
		}
		uncovered = append(uncovered, textageID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(uncovered) > 0 {
		return fmt.Errorf("%w: active songs without official alias (scope=%s, textage_ids=%s)",
			util.ErrValidation, scope, strings.Join(uncovered, ", "))
	}
	return nil
}

func verifyNoDuplicateAliases(q store.DBTX) error {
	rows, err := q.Query(`
		SELECT alias_scope, alias, COUNT(*)
		FROM music_title_alias
		GROUP BY alias_scope, alias
		HAVING COUNT(*) > 1
		LIMIT 10`)
	if err != nil {
		return fmt.Errorf("failed to query duplicate aliases: %w", err)
	}
	defer rows.Close()

	var duplicates []string
	for rows.Next() {
		var scope, alias string
		var count int
		if err := rows.Scan(&scope, &alias, &count); err != nil {
			return fmt.Errorf("failed to scan duplicate alias: %w", err)
		}
		duplicates = append(duplicates, fmt.Sprintf("%s:%q(x%d)", scope, alias, count))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(duplicates) > 0 {
		return fmt.Errorf("%w: duplicate (alias_scope, alias) rows: %s",
			util.ErrValidation, strings.Join(duplicates, ", "))
	}
	return nil
}

func verifyNoOrphans(q store.DBTX) error {
	var orphanCount int
	row := q.QueryRow(`
		SELECT COUNT(*)
		FROM music_title_alias a
		LEFT JOIN music m ON m.textage_id = a.textage_id
		WHERE m.music_id IS NULL`)
	if err := row.Scan(&orphanCount); err != nil {
		return fmt.Errorf("failed to count orphan aliases: %w", err)
	}
	if orphanCount > 0 {
		return fmt.Errorf("%w: aliases reference textage ids missing from music (count=%d)",
			util.ErrValidation, orphanCount)
	}
	return nil
}

func verifyAliasTypes(q store.DBTX) error {
	placeholders := make([]string, len(store.AliasTypes))
	args := make([]any, len(store.AliasTypes))
	for i, aliasType := range store.AliasTypes {
		placeholders[i] = "?"
		args[i] = string(aliasType)
	}

	var unknownCount int
	row := q.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM music_title_alias WHERE alias_type NOT IN (%s)`,
		strings.Join(placeholders, ", ")), args...)
	if err := row.Scan(&unknownCount); err != nil {
		return fmt.Errorf("failed to count unknown alias types: %w", err)
	}
	if unknownCount > 0 {
		return fmt.Errorf("%w: aliases with unknown alias_type (count=%d)",
			util.ErrValidation, unknownCount)
	}
	return nil
}
