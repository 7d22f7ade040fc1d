package store

import (
	"database/sql"
	"fmt"
)

// Meta is the single-row generation record, overwritten wholesale each run
type Meta struct {
	SchemaVersion  string
	AssetUpdatedAt string
	GeneratedAt    string
}

// UpsertMeta replaces the meta table contents with one fresh row
func UpsertMeta(q DBTX, m *Meta) error {
	if _, err := q.Exec("DELETE FROM meta"); err != nil {
		return fmt.Errorf("failed to clear meta: %w", err)
	}
	_, err := q.Exec(
		"INSERT INTO meta (schema_version, asset_updated_at, generated_at) VALUES (?, ?, ?)",
		m.SchemaVersion, m.AssetUpdatedAt, m.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}
	return nil
}

// ReadMeta returns the recorded generation metadata
func ReadMeta(q DBTX) (*Meta, error) {
	m := &Meta{}
	err := q.QueryRow(`
		SELECT schema_version, asset_updated_at, generated_at
		FROM meta ORDER BY rowid DESC LIMIT 1`,
	).Scan(&m.SchemaVersion, &m.AssetUpdatedAt, &m.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	return m, nil
}
