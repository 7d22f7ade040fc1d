package store

import (
	"database/sql"
	"fmt"

	"github.com/iidx-tools/songmaster/internal/normalize"
)

// The artifact schema. Downstream consumers read this database directly,
// so table, column and index names are frozen; evolution is additive only.
const (
	createMusicTable = `
CREATE TABLE IF NOT EXISTS music (
  music_id INTEGER PRIMARY KEY AUTOINCREMENT,
  textage_id TEXT NOT NULL UNIQUE,
  version TEXT NOT NULL,
  title TEXT NOT NULL,
  title_qualifier TEXT NOT NULL DEFAULT '',
  title_search_key TEXT NOT NULL,
  artist TEXT NOT NULL,
  genre TEXT NOT NULL,
  is_ac_active INTEGER NOT NULL,
  is_inf_active INTEGER NOT NULL,
  last_seen_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`

	createChartTable = `
CREATE TABLE IF NOT EXISTS chart (
  chart_id INTEGER PRIMARY KEY AUTOINCREMENT,
  music_id INTEGER NOT NULL,
  play_style TEXT NOT NULL,
  difficulty TEXT NOT NULL,
  level INTEGER NOT NULL,
  notes INTEGER NOT NULL,
  is_active INTEGER NOT NULL,
  last_seen_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  UNIQUE(music_id, play_style, difficulty),
  FOREIGN KEY(music_id) REFERENCES music(music_id)
);`

	createMetaTable = `
CREATE TABLE IF NOT EXISTS meta (
  schema_version TEXT NOT NULL,
  asset_updated_at TEXT NOT NULL,
  generated_at TEXT NOT NULL
);`

	createAliasTable = `
CREATE TABLE IF NOT EXISTS music_title_alias (
  alias_id INTEGER PRIMARY KEY AUTOINCREMENT,
  textage_id TEXT NOT NULL,
  alias_scope TEXT NOT NULL CHECK(alias_scope IN ('ac', 'inf')),
  alias TEXT NOT NULL,
  alias_type TEXT NOT NULL CHECK(alias_type IN ('official', 'csv_wiki', 'manual')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY(textage_id) REFERENCES music(textage_id)
);`
)

// Indexes recreated idempotently on every open. The two dropped names are
// pre-scope unique indexes superseded by the (alias_scope, alias) pair.
var (
	dropLegacyIndexes = []string{
		"DROP INDEX IF EXISTS uq_music_title_alias_alias;",
		"DROP INDEX IF EXISTS uq_music_title_alias_textage_alias;",
	}

	createIndexes = []string{
		"CREATE INDEX IF NOT EXISTS idx_chart_music_active ON chart(music_id, is_active);",
		"CREATE INDEX IF NOT EXISTS idx_chart_filter ON chart(play_style, difficulty, level, is_active);",
		"CREATE INDEX IF NOT EXISTS idx_chart_notes_active ON chart(is_active, notes);",
		"CREATE INDEX IF NOT EXISTS idx_music_title_search_key ON music(title_search_key);",
		"CREATE INDEX IF NOT EXISTS idx_music_title_alias_textage_id ON music_title_alias(textage_id);",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_music_title_alias_scope_alias ON music_title_alias(alias_scope, alias);",
		"CREATE INDEX IF NOT EXISTS idx_music_title_alias_scope_alias ON music_title_alias(alias_scope, alias);",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_music_title_alias_textage_scope_alias ON music_title_alias(textage_id, alias_scope, alias);",
	}
)

// Migrate brings the on-disk schema forward to the current version.
// Every step is create-if-missing or add-if-absent, so it is safe against
// a brand-new file, a legacy file and an already-current file alike.
// Existing data-bearing columns are never dropped or renamed.
func (s *Store) Migrate() error {
	return s.Transaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{createMusicTable, createChartTable, createMetaTable, createAliasTable} {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}

		if err := addColumnIfMissing(tx, "music", "title_search_key",
			"ALTER TABLE music ADD COLUMN title_search_key TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
		if err := addColumnIfMissing(tx, "music", "title_qualifier",
			"ALTER TABLE music ADD COLUMN title_qualifier TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
		if err := addColumnIfMissing(tx, "music_title_alias", "alias_scope",
			"ALTER TABLE music_title_alias ADD COLUMN alias_scope TEXT NOT NULL DEFAULT 'ac'"); err != nil {
			return err
		}

		if err := backfillTitleSearchKeys(tx); err != nil {
			return err
		}

		for _, stmt := range dropLegacyIndexes {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to drop legacy index: %w", err)
			}
		}
		for _, stmt := range createIndexes {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		return nil
	})
}

// TableExists reports whether the named table is present
func TableExists(q DBTX, name string) (bool, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query sqlite_master: %w", err)
	}
	return count > 0, nil
}

// ColumnExists reports whether the table has the named column
func ColumnExists(q DBTX, table, column string) (bool, error) {
	rows, err := q.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func addColumnIfMissing(tx *sql.Tx, table, column, alter string) error {
	exists, err := ColumnExists(tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := tx.Exec(alter); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}

// backfillTitleSearchKeys recomputes the search key for legacy rows that
// predate the title_search_key column and carry the empty default.
func backfillTitleSearchKeys(tx *sql.Tx) error {
	rows, err := tx.Query("SELECT music_id, title, title_search_key FROM music")
	if err != nil {
		return fmt.Errorf("failed to scan music for backfill: %w", err)
	}
	defer rows.Close()

	type update struct {
		musicID int64
		key     string
	}
	var updates []update

	for rows.Next() {
		var (
			musicID   int64
			title     string
			searchKey sql.NullString
		)
		if err := rows.Scan(&musicID, &title, &searchKey); err != nil {
			return err
		}
		if !searchKey.Valid || searchKey.String == "" {
			updates = append(updates, update{musicID, normalize.TitleSearchKey(title)})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for _, u := range updates {
		if _, err := tx.Exec(
			"UPDATE music SET title_search_key = ? WHERE music_id = ?", u.key, u.musicID,
		); err != nil {
			return fmt.Errorf("failed to backfill title_search_key: %w", err)
		}
	}

	return nil
}
