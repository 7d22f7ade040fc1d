package store

import (
	"fmt"
)

// Alias is one row of the music_title_alias table
type Alias struct {
	AliasID   int64
	TextageID string
	Scope     Scope
	Alias     string
	Type      AliasType
}

// AliasTriple identifies an alias row by its logical key
type AliasTriple struct {
	TextageID string
	Scope     Scope
	Alias     string
}

// DeleteAllAliases clears the alias table ahead of a full rebuild
func DeleteAllAliases(q DBTX) error {
	if _, err := q.Exec("DELETE FROM music_title_alias"); err != nil {
		return fmt.Errorf("failed to reset aliases: %w", err)
	}
	return nil
}

// InsertAlias inserts one alias row. Unique-constraint violations are
// returned to the caller, which decides whether they are fatal.
func InsertAlias(q DBTX, a *Alias, timestamp string) error {
	_, err := q.Exec(`
		INSERT INTO music_title_alias (
			alias_scope, textage_id, alias, alias_type, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		string(a.Scope), a.TextageID, a.Alias, string(a.Type), timestamp, timestamp,
	)
	return err
}

// AliasCount counts alias rows of one type within one scope
func AliasCount(q DBTX, scope Scope, aliasType AliasType) (int, error) {
	var count int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM music_title_alias
		WHERE alias_scope = ? AND alias_type = ?`,
		string(scope), string(aliasType),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s/%s aliases: %w", scope, aliasType, err)
	}
	return count, nil
}

// OfficialAliasTriples loads the logical keys of every official alias,
// used to skip manual rows that only restate an official title.
func OfficialAliasTriples(q DBTX) (map[AliasTriple]bool, error) {
	rows, err := q.Query(`
		SELECT textage_id, alias_scope, alias
		FROM music_title_alias
		WHERE alias_type = ?`, string(AliasOfficial))
	if err != nil {
		return nil, fmt.Errorf("failed to load official aliases: %w", err)
	}
	defer rows.Close()

	triples := make(map[AliasTriple]bool)
	for rows.Next() {
		var (
			triple AliasTriple
			scope  string
		)
		if err := rows.Scan(&triple.TextageID, &scope, &triple.Alias); err != nil {
			return nil, err
		}
		triple.Scope = Scope(scope)
		triples[triple] = true
	}
	return triples, rows.Err()
}

// AliasesByScope returns all alias rows in one scope, alias_id order
func AliasesByScope(q DBTX, scope Scope) ([]Alias, error) {
	rows, err := q.Query(`
		SELECT alias_id, textage_id, alias_scope, alias, alias_type
		FROM music_title_alias
		WHERE alias_scope = ? ORDER BY alias_id`, string(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s aliases: %w", scope, err)
	}
	defer rows.Close()

	var aliases []Alias
	for rows.Next() {
		var (
			a            Alias
			scopeStr     string
			aliasTypeStr string
		)
		if err := rows.Scan(&a.AliasID, &a.TextageID, &scopeStr, &a.Alias, &aliasTypeStr); err != nil {
			return nil, err
		}
		a.Scope = Scope(scopeStr)
		a.Type = AliasType(aliasTypeStr)
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// AliasMap loads alias -> textage_id for one scope restricted to the
// given provenance layers, used by the score CSV identification report.
func AliasMap(q DBTX, scope Scope, types ...AliasType) (map[string]string, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("alias map requires at least one alias type")
	}

	query := `
		SELECT alias, textage_id FROM music_title_alias
		WHERE alias_scope = ? AND alias_type IN (?` + // first placeholder
		repeatPlaceholders(len(types)-1) + `)`

	args := []any{string(scope)}
	for _, t := range types {
		args = append(args, string(t))
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load alias map for %s: %w", scope, err)
	}
	defer rows.Close()

	aliasMap := make(map[string]string)
	for rows.Next() {
		var alias, textageID string
		if err := rows.Scan(&alias, &textageID); err != nil {
			return nil, err
		}
		aliasMap[alias] = textageID
	}
	return aliasMap, rows.Err()
}

func repeatPlaceholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
