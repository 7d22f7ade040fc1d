// Package validate holds the standalone artifact checks that gate
// publication: structural checks against any database file plus the
// cross-generation chart id comparison.
package validate

import (
	"fmt"
	"strings"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

// uniqueKeys are the column sets that must be covered by a unique index
var uniqueKeys = map[string][][]string{
	"music":             {{"textage_id"}},
	"chart":             {{"music_id", "play_style", "difficulty"}},
	"music_title_alias": {{"alias_scope", "alias"}},
}

// lookupIndexes must exist by name for downstream query performance
var lookupIndexes = map[string][]string{
	"music":             {"idx_music_title_search_key"},
	"chart":             {"idx_chart_music_active"},
	"music_title_alias": {"idx_music_title_alias_textage_id"},
}

// notNullColumns must carry the NOT NULL constraint in the live schema
var notNullColumns = map[string][]string{
	"music":             {"textage_id", "version", "title", "title_qualifier", "title_search_key", "artist", "genre", "is_ac_active", "is_inf_active"},
	"chart":             {"music_id", "play_style", "difficulty", "level", "notes", "is_active"},
	"music_title_alias": {"textage_id", "alias_scope", "alias", "alias_type"},
}

// ArtifactReport carries the counts observed during a passing run
type ArtifactReport struct {
	Songs         int
	Charts        int
	Aliases       int
	SchemaVersion string
}

// Artifact runs the full structural check suite against a database file.
// It is independent of the in-transaction verification the alias rebuild
// performs and can be pointed at any artifact, including a downloaded
// release. expectedSchemaVersion "" skips the version comparison.
func Artifact(path, expectedSchemaVersion string) (*ArtifactReport, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	q := st.DB()

	for table, columns := range notNullColumns {
		if err := checkNotNullColumns(q, table, columns); err != nil {
			return nil, err
		}
	}
	for table, keys := range uniqueKeys {
		for _, key := range keys {
			if err := checkUniqueIndex(q, table, key); err != nil {
				return nil, err
			}
		}
	}
	for table, names := range lookupIndexes {
		for _, name := range names {
			if err := checkIndexExists(q, table, name); err != nil {
				return nil, err
			}
		}
	}

	if err := checkNullSearchFields(q); err != nil {
		return nil, err
	}
	if err := checkQualifierShape(q); err != nil {
		return nil, err
	}
	if err := checkCollisionQualifiers(q); err != nil {
		return nil, err
	}
	if err := checkOfficialAliasCounts(q); err != nil {
		return nil, err
	}
	if err := checkOrphanAliases(q); err != nil {
		return nil, err
	}
	if err := checkAliasTypes(q); err != nil {
		return nil, err
	}

	report := &ArtifactReport{}
	if err := q.QueryRow("SELECT COUNT(*) FROM music").Scan(&report.Songs); err != nil {
		return nil, fmt.Errorf("failed to count songs: %w", err)
	}
	if err := q.QueryRow("SELECT COUNT(*) FROM chart").Scan(&report.Charts); err != nil {
		return nil, fmt.Errorf("failed to count charts: %w", err)
	}
	if err := q.QueryRow("SELECT COUNT(*) FROM music_title_alias").Scan(&report.Aliases); err != nil {
		return nil, fmt.Errorf("failed to count aliases: %w", err)
	}

	meta, err := store.ReadMeta(q)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: artifact has no meta record", util.ErrValidation)
	}
	report.SchemaVersion = meta.SchemaVersion
	if expectedSchemaVersion != "" && meta.SchemaVersion != expectedSchemaVersion {
		return nil, fmt.Errorf("%w: schema version mismatch (recorded=%s, expected=%s)",
			util.ErrValidation, meta.SchemaVersion, expectedSchemaVersion)
	}

	return report, nil
}

func checkNotNullColumns(q store.DBTX, table string, columns []string) error {
	rows, err := q.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	notNull := make(map[string]bool)
	for rows.Next() {
		var (
			cid          int
			name, ctype  string
			nn           int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &ctype, &nn, &defaultValue, &pk); err != nil {
			return fmt.Errorf("failed to scan table info for %s: %w", table, err)
		}
		notNull[name] = nn == 1 || pk == 1
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, column := range columns {
		constrained, present := notNull[column]
		if !present {
			return fmt.Errorf("%w: table %s is missing column %s", util.ErrValidation, table, column)
		}
		if !constrained {
			return fmt.Errorf("%w: column %s.%s is not NOT NULL", util.ErrValidation, table, column)
		}
	}
	return nil
}

// checkUniqueIndex accepts any unique index covering exactly the key,
// including the implicit index SQLite creates for table-level UNIQUE.
func checkUniqueIndex(q store.DBTX, table string, key []string) error {
	indexes, err := listIndexes(q, table)
	if err != nil {
		return err
	}

	want := strings.Join(key, ",")
	for _, index := range indexes {
		if !index.unique {
			continue
		}
		columns, err := indexColumns(q, index.name)
		if err != nil {
			return err
		}
		if strings.Join(columns, ",") == want {
			return nil
		}
	}
	return fmt.Errorf("%w: table %s has no unique index on (%s)",
		util.ErrValidation, table, strings.Join(key, ", "))
}

func checkIndexExists(q store.DBTX, table, name string) error {
	indexes, err := listIndexes(q, table)
	if err != nil {
		return err
	}
	for _, index := range indexes {
		if index.name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: table %s is missing index %s", util.ErrValidation, table, name)
}

type indexInfo struct {
	name   string
	unique bool
}

func listIndexes(q store.DBTX, table string) ([]indexInfo, error) {
	rows, err := q.Query(fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var indexes []indexInfo
	for rows.Next() {
		var (
			seq             int
			name, origin    string
			unique, partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("failed to scan index list of %s: %w", table, err)
		}
		indexes = append(indexes, indexInfo{name: name, unique: unique == 1})
	}
	return indexes, rows.Err()
}

func indexColumns(q store.DBTX, index string) ([]string, error) {
	rows, err := q.Query(fmt.Sprintf("PRAGMA index_info(%s)", index))
	if err != nil {
		return nil, fmt.Errorf("failed to read index info of %s: %w", index, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			seqno, cid int
			name       string
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("failed to scan index info of %s: %w", index, err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func checkNullSearchFields(q store.DBTX) error {
	var count int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM music
		WHERE title_search_key IS NULL OR title_qualifier IS NULL`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check search fields: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: songs with null search key or qualifier (count=%d)",
			util.ErrValidation, count)
	}
	return nil
}

// checkQualifierShape flags any qualifier using parentheses without
// being exactly parenthesis-wrapped.
func checkQualifierShape(q store.DBTX) error {
	rows, err := q.Query(`
		SELECT textage_id, title_qualifier FROM music
		WHERE title_qualifier != '' ORDER BY music_id`)
	if err != nil {
		return fmt.Errorf("failed to list qualifiers: %w", err)
	}
	defer rows.Close()

	var malformed []string
	for rows.Next() {
		var textageID, qualifier string
		if err := rows.Scan(&textageID, &qualifier); err != nil {
			return fmt.Errorf("failed to scan qualifier: %w", err)
		}
		if !wellFormedQualifier(qualifier) {
			malformed = append(malformed, fmt.Sprintf("%s=%q", textageID, qualifier))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(malformed) > 0 {
		return fmt.Errorf("%w: malformed qualifiers: %s",
			util.ErrValidation, strings.Join(malformed, ", "))
	}
	return nil
}

// wellFormedQualifier allows plain text without parentheses, or a fully
// wrapped "(...)" form. Partial wrapping is the failure mode this guards.
func wellFormedQualifier(qualifier string) bool {
	usesParens := strings.ContainsAny(qualifier, "()")
	if !usesParens {
		return true
	}
	if !strings.HasPrefix(qualifier, "(") || !strings.HasSuffix(qualifier, ")") {
		return false
	}
	inner := qualifier[1 : len(qualifier)-1]
	return !strings.ContainsAny(inner, "()")
}

// checkCollisionQualifiers mirrors the resolver's guarantee: a song
// active in exactly one scope whose title is shared with another song
// active somewhere must carry a qualifier.
func checkCollisionQualifiers(q store.DBTX) error {
	rows, err := q.Query(`
		SELECT m.textage_id, m.title
		FROM music m
		WHERE m.is_ac_active + m.is_inf_active = 1
		AND m.title_qualifier = ''
		AND EXISTS (
			SELECT 1 FROM music other
			WHERE other.music_id != m.music_id
			AND other.title = m.title
			AND (other.is_ac_active = 1 OR other.is_inf_active = 1)
		)
		ORDER BY m.music_id LIMIT 10`)
	if err != nil {
		return fmt.Errorf("failed to check collision qualifiers: %w", err)
	}
	defer rows.Close()

	var offenders []string
	for rows.Next() {
		var textageID, title string
		if err := rows.Scan(&textageID, &title); err != nil {
			return fmt.Errorf("failed to scan collision qualifier row: %w", err)
		}
		offenders = append(offenders, fmt.Sprintf("%s (title=%q)", textageID, title))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(offenders) > 0 {
		return fmt.Errorf("%w: single-scope songs with colliding titles lack qualifiers: %s",
			util.ErrValidation, strings.Join(offenders, ", "))
	}
	return nil
}

func checkOfficialAliasCounts(q store.DBTX) error {
	for _, scope := range store.Scopes {
		active, err := store.ActiveSongCount(q, scope)
		if err != nil {
			return err
		}
		official, err := store.AliasCount(q, scope, store.AliasOfficial)
		if err != nil {
			return err
		}
		if active != official {
			return fmt.Errorf(
				"%w: official alias count mismatch (scope=%s, active_songs=%d, official_aliases=%d)",
				util.ErrValidation, scope, active, official)
		}
	}
	return nil
}

func checkOrphanAliases(q store.DBTX) error {
	var count int
	err := q.QueryRow(`
		SELECT COUNT(*)
		FROM music_title_alias a
		LEFT JOIN music m ON m.textage_id = a.textage_id
		WHERE m.music_id IS NULL`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check orphan aliases: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: orphan alias rows (count=%d)", util.ErrValidation, count)
	}
	return nil
}

func checkAliasTypes(q store.DBTX) error {
	var count int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM music_title_alias
		WHERE alias_type NOT IN ('official', 'csv_wiki', 'manual')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check alias types: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: alias rows with unknown alias_type (count=%d)",
			util.ErrValidation, count)
	}
	return nil
}
