package store

import (
	"database/sql"
	"fmt"

	"github.com/iidx-tools/songmaster/internal/normalize"
	"github.com/iidx-tools/songmaster/internal/util"
)

// Song is one row of the music table
type Song struct {
	MusicID        int64
	TextageID      string
	Version        string
	Title          string
	TitleQualifier string
	TitleSearchKey string
	Artist         string
	Genre          string
	IsACActive     bool
	IsINFActive    bool
	LastSeenAt     string
	CreatedAt      string
	UpdatedAt      string
}

// SongInput carries the upstream fields applied by one snapshot pass
type SongInput struct {
	TextageID   string
	Version     string
	Title       string
	Artist      string
	Genre       string
	IsACActive  bool
	IsINFActive bool
}

// ResetActiveFlags clears the per-scope active flags on every song.
// Absence from the fresh snapshot is the only delisting signal upstream
// provides, so each run starts from all-inactive and reapplies.
func ResetActiveFlags(q DBTX) error {
	_, err := q.Exec(
		"UPDATE music SET is_ac_active = 0, is_inf_active = 0, updated_at = ?",
		util.JSTTimestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to reset active flags: %w", err)
	}
	return nil
}

// UpsertSong inserts or updates one song keyed by textage_id and returns
// its music_id. created_at is fixed at first insert; last_seen_at and
// updated_at are refreshed every run the song is observed.
func UpsertSong(q DBTX, in *SongInput) (int64, error) {
	now := util.JSTTimestamp()
	searchKey := normalize.TitleSearchKey(in.Title)

	var musicID int64
	err := q.QueryRow("SELECT music_id FROM music WHERE textage_id = ?", in.TextageID).Scan(&musicID)
	if err == sql.ErrNoRows {
		result, err := q.Exec(`
			INSERT INTO music (
				textage_id, version, title, title_search_key, artist, genre,
				is_ac_active, is_inf_active,
				last_seen_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.TextageID, in.Version, in.Title, searchKey, in.Artist, in.Genre,
			boolInt(in.IsACActive), boolInt(in.IsINFActive),
			now, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert music %s: %w", in.TextageID, err)
		}
		return result.LastInsertId()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up music %s: %w", in.TextageID, err)
	}

	_, err = q.Exec(`
		UPDATE music SET
			version = ?,
			title = ?,
			title_search_key = ?,
			artist = ?,
			genre = ?,
			is_ac_active = ?,
			is_inf_active = ?,
			last_seen_at = ?,
			updated_at = ?
		WHERE textage_id = ?`,
		in.Version, in.Title, searchKey, in.Artist, in.Genre,
		boolInt(in.IsACActive), boolInt(in.IsINFActive),
		now, now, in.TextageID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update music %s: %w", in.TextageID, err)
	}
	return musicID, nil
}

// SongByTextageID returns one song row, or nil when absent
func SongByTextageID(q DBTX, textageID string) (*Song, error) {
	song := &Song{}
	var ac, inf int
	err := q.QueryRow(`
		SELECT music_id, textage_id, version, title, title_qualifier, title_search_key,
		       artist, genre, is_ac_active, is_inf_active,
		       last_seen_at, created_at, updated_at
		FROM music WHERE textage_id = ?`, textageID,
	).Scan(
		&song.MusicID, &song.TextageID, &song.Version, &song.Title,
		&song.TitleQualifier, &song.TitleSearchKey,
		&song.Artist, &song.Genre, &ac, &inf,
		&song.LastSeenAt, &song.CreatedAt, &song.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get music %s: %w", textageID, err)
	}
	song.IsACActive = ac == 1
	song.IsINFActive = inf == 1
	return song, nil
}

// ActiveSongCount counts songs currently active in the given scope
func ActiveSongCount(q DBTX, scope Scope) (int, error) {
	var count int
	err := q.QueryRow(
		fmt.Sprintf("SELECT COUNT(*) FROM music WHERE %s = 1", scopeColumn(scope)),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active songs for %s: %w", scope, err)
	}
	return count, nil
}

// ActiveTitleSongs returns (textage_id, title) for every song active in
// the given scope, in music_id order.
func ActiveTitleSongs(q DBTX, scope Scope) ([]Song, error) {
	rows, err := q.Query(fmt.Sprintf(`
		SELECT textage_id, title FROM music
		WHERE %s = 1 ORDER BY music_id`, scopeColumn(scope)))
	if err != nil {
		return nil, fmt.Errorf("failed to list active songs for %s: %w", scope, err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var song Song
		if err := rows.Scan(&song.TextageID, &song.Title); err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// ActiveSongIDsByTitle returns the textage ids of songs active in the
// given scope carrying exactly this title, capped at limit.
func ActiveSongIDsByTitle(q DBTX, scope Scope, title string, limit int) ([]string, error) {
	rows, err := q.Query(fmt.Sprintf(`
		SELECT textage_id FROM music
		WHERE title = ? AND %s = 1
		LIMIT ?`, scopeColumn(scope)), title, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve title %q in %s: %w", title, scope, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetTitleQualifier writes the resolved display qualifier for one song
func SetTitleQualifier(q DBTX, textageID, qualifier string) error {
	_, err := q.Exec(
		"UPDATE music SET title_qualifier = ?, updated_at = ? WHERE textage_id = ?",
		qualifier, util.JSTTimestamp(), textageID,
	)
	if err != nil {
		return fmt.Errorf("failed to set qualifier for %s: %w", textageID, err)
	}
	return nil
}

// TextageIDSet returns every known stable id
func TextageIDSet(q DBTX) (map[string]bool, error) {
	rows, err := q.Query("SELECT textage_id FROM music")
	if err != nil {
		return nil, fmt.Errorf("failed to list textage ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func scopeColumn(scope Scope) string {
	if scope == ScopeAC {
		return "is_ac_active"
	}
	return "is_inf_active"
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
