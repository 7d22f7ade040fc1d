package store

import (
	"database/sql"
	"fmt"

	"github.com/iidx-tools/songmaster/internal/util"
)

// Chart is one row of the chart table
type Chart struct {
	ChartID    int64
	MusicID    int64
	PlayStyle  PlayStyle
	Difficulty Difficulty
	Level      int
	Notes      int
	IsActive   bool
}

// ChartKey is the business key identifying a chart independent of its
// chart_id: the owning song's stable id plus play style and difficulty.
type ChartKey struct {
	TextageID  string
	PlayStyle  PlayStyle
	Difficulty Difficulty
}

func (k ChartKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.TextageID, k.PlayStyle, k.Difficulty)
}

// UpsertChart inserts or updates one chart keyed by
// (music_id, play_style, difficulty). chart_id is never reassigned for an
// existing key; that stability is the system's strongest external contract.
func UpsertChart(q DBTX, c *Chart) error {
	now := util.JSTTimestamp()

	var chartID int64
	err := q.QueryRow(`
		SELECT chart_id FROM chart
		WHERE music_id = ? AND play_style = ? AND difficulty = ?`,
		c.MusicID, string(c.PlayStyle), string(c.Difficulty),
	).Scan(&chartID)

	if err == sql.ErrNoRows {
		_, err := q.Exec(`
			INSERT INTO chart (
				music_id, play_style, difficulty,
				level, notes, is_active,
				last_seen_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.MusicID, string(c.PlayStyle), string(c.Difficulty),
			c.Level, c.Notes, boolInt(c.IsActive),
			now, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chart %d/%s/%s: %w",
				c.MusicID, c.PlayStyle, c.Difficulty, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up chart %d/%s/%s: %w",
			c.MusicID, c.PlayStyle, c.Difficulty, err)
	}

	_, err = q.Exec(`
		UPDATE chart SET
			level = ?,
			notes = ?,
			is_active = ?,
			last_seen_at = ?,
			updated_at = ?
		WHERE music_id = ? AND play_style = ? AND difficulty = ?`,
		c.Level, c.Notes, boolInt(c.IsActive),
		now, now,
		c.MusicID, string(c.PlayStyle), string(c.Difficulty),
	)
	if err != nil {
		return fmt.Errorf("failed to update chart %d/%s/%s: %w",
			c.MusicID, c.PlayStyle, c.Difficulty, err)
	}
	return nil
}

// ChartKeyMap loads chart_id by business key for one database generation
func ChartKeyMap(q DBTX) (map[ChartKey]int64, error) {
	rows, err := q.Query(`
		SELECT m.textage_id, c.play_style, c.difficulty, c.chart_id
		FROM chart c
		INNER JOIN music m ON m.music_id = c.music_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart key map: %w", err)
	}
	defer rows.Close()

	keyMap := make(map[ChartKey]int64)
	for rows.Next() {
		var (
			key     ChartKey
			style   string
			diff    string
			chartID int64
		)
		if err := rows.Scan(&key.TextageID, &style, &diff, &chartID); err != nil {
			return nil, err
		}
		key.PlayStyle = PlayStyle(style)
		key.Difficulty = Difficulty(diff)
		keyMap[key] = chartID
	}
	return keyMap, rows.Err()
}

// ChartsByMusicID returns all charts for one song
func ChartsByMusicID(q DBTX, musicID int64) ([]Chart, error) {
	rows, err := q.Query(`
		SELECT chart_id, music_id, play_style, difficulty, level, notes, is_active
		FROM chart WHERE music_id = ? ORDER BY chart_id`, musicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts for music %d: %w", musicID, err)
	}
	defer rows.Close()

	var charts []Chart
	for rows.Next() {
		var (
			c           Chart
			style, diff string
			active      int
		)
		if err := rows.Scan(&c.ChartID, &c.MusicID, &style, &diff, &c.Level, &c.Notes, &active); err != nil {
			return nil, err
		}
		c.PlayStyle = PlayStyle(style)
		c.Difficulty = Difficulty(diff)
		c.IsActive = active == 1
		charts = append(charts, c)
	}
	return charts, rows.Err()
}
