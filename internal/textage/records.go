// Package textage is the parsing boundary for the upstream score tables.
// The three JS tables arrive as loosely typed arrays; everything past this
// package works with named, validated fields.
package textage

import (
	"fmt"
	"strconv"

	"github.com/iidx-tools/songmaster/internal/store"
)

// ChartKind maps one upstream chart slot to its play style and
// difficulty tier. Type indexes the notes array of datatbl; the level for
// a kind sits at actbl index Type*2+1, encoded as hex.
type ChartKind struct {
	Type       int
	PlayStyle  store.PlayStyle
	Difficulty store.Difficulty
}

// ChartKinds lists every chart slot upstream publishes. Type 6 (SP LIGHT7
// in ancient data) is not offered and has no slot.
var ChartKinds = []ChartKind{
	{1, store.StyleSP, store.DiffBeginner},
	{2, store.StyleSP, store.DiffNormal},
	{3, store.StyleSP, store.DiffHyper},
	{4, store.StyleSP, store.DiffAnother},
	{5, store.StyleSP, store.DiffLeggendaria},
	{7, store.StyleDP, store.DiffNormal},
	{8, store.StyleDP, store.DiffHyper},
	{9, store.StyleDP, store.DiffAnother},
	{10, store.StyleDP, store.DiffLeggendaria},
}

const (
	// actbl bitmask bits for per-scope activity
	flagACActive  = 0x01
	flagINFActive = 0x02

	// actbl slot holding the optional explicit display qualifier
	actTitleQualifierIndex = 23

	// sentinel version constant upstream uses for substream entries
	versionSentinel = "-35"
	versionSubs     = "SS"
)

// TitleRow is one parsed titletbl entry
type TitleRow struct {
	Version   string
	TextageID string
	Genre     string
	Artist    string
	Title     string
	Subtitle  string
}

// DataRow carries the per-kind note counts of one datatbl entry
type DataRow struct {
	notesByType map[int]int
}

// Notes returns the note count for a chart kind
func (d *DataRow) Notes(kind ChartKind) int {
	return d.notesByType[kind.Type]
}

// ActRow carries the activity bits, per-kind levels and optional explicit
// qualifier of one actbl entry.
type ActRow struct {
	flags        int
	levelsByType map[int]int
	qualifier    string
}

// ACActive reports whether the arcade-active bit is set
func (a *ActRow) ACActive() bool { return a.flags&flagACActive != 0 }

// INFActive reports whether the home-version-active bit is set
func (a *ActRow) INFActive() bool { return a.flags&flagINFActive != 0 }

// Level returns the decoded level for a chart kind; 0 means not offered
func (a *ActRow) Level(kind ChartKind) int {
	return a.levelsByType[kind.Type]
}

// TitleQualifier returns the raw explicit display qualifier, or ""
func (a *ActRow) TitleQualifier() string { return a.qualifier }

// Tables bundles the three parsed upstream tables keyed by upstream tag
type Tables struct {
	Titles map[string]TitleRow
	Data   map[string]DataRow
	Act    map[string]ActRow
}

func parseTitleRow(tag string, raw []any) (TitleRow, error) {
	if len(raw) < 6 {
		return TitleRow{}, fmt.Errorf("titletbl[%s]: want at least 6 fields, got %d", tag, len(raw))
	}

	version, err := stringField(raw[0])
	if err != nil {
		return TitleRow{}, fmt.Errorf("titletbl[%s] version: %w", tag, err)
	}
	if version == versionSentinel {
		version = versionSubs
	}

	textageID, err := stringField(raw[1])
	if err != nil {
		return TitleRow{}, fmt.Errorf("titletbl[%s] textage id: %w", tag, err)
	}

	row := TitleRow{Version: version, TextageID: textageID}
	if row.Genre, err = stringField(raw[3]); err != nil {
		return TitleRow{}, fmt.Errorf("titletbl[%s] genre: %w", tag, err)
	}
	if row.Artist, err = stringField(raw[4]); err != nil {
		return TitleRow{}, fmt.Errorf("titletbl[%s] artist: %w", tag, err)
	}
	if row.Title, err = stringField(raw[5]); err != nil {
		return TitleRow{}, fmt.Errorf("titletbl[%s] title: %w", tag, err)
	}
	if len(raw) > 6 && raw[6] != nil {
		if s, err := stringField(raw[6]); err == nil {
			row.Subtitle = s
		}
	}
	return row, nil
}

func parseDataRow(tag string, raw []any) (DataRow, error) {
	notes := make(map[int]int, len(ChartKinds))
	for _, kind := range ChartKinds {
		if kind.Type >= len(raw) {
			return DataRow{}, fmt.Errorf("datatbl[%s]: missing slot %d", tag, kind.Type)
		}
		n, err := intField(raw[kind.Type])
		if err != nil {
			return DataRow{}, fmt.Errorf("datatbl[%s] slot %d: %w", tag, kind.Type, err)
		}
		notes[kind.Type] = n
	}
	return DataRow{notesByType: notes}, nil
}

func parseActRow(tag string, raw []any) (ActRow, error) {
	if len(raw) == 0 {
		return ActRow{}, fmt.Errorf("actbl[%s]: empty row", tag)
	}

	flags, err := hexField(raw[0])
	if err != nil {
		return ActRow{}, fmt.Errorf("actbl[%s] flags: %w", tag, err)
	}

	levels := make(map[int]int, len(ChartKinds))
	for _, kind := range ChartKinds {
		index := kind.Type*2 + 1
		if index >= len(raw) {
			return ActRow{}, fmt.Errorf("actbl[%s]: missing level slot %d", tag, index)
		}
		level, err := hexField(raw[index])
		if err != nil {
			return ActRow{}, fmt.Errorf("actbl[%s] level slot %d: %w", tag, index, err)
		}
		levels[kind.Type] = level
	}

	row := ActRow{flags: flags, levelsByType: levels}
	if len(raw) > actTitleQualifierIndex {
		if s, ok := raw[actTitleQualifierIndex].(string); ok {
			row.qualifier = s
		}
	}
	return row, nil
}

func stringField(v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case float64:
		// upstream constant substitution leaves numbers in string slots
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("want string, got %T", v)
}

func intField(v any) (int, error) {
	switch value := v.(type) {
	case float64:
		return int(value), nil
	case string:
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", value)
		}
		return n, nil
	}
	return 0, fmt.Errorf("want number, got %T", v)
}

// hexField decodes a level/flag slot: numbers are taken as-is, strings
// are hex digits (levels above 9 arrive as "A".."F").
func hexField(v any) (int, error) {
	switch value := v.(type) {
	case float64:
		return int(value), nil
	case string:
		n, err := strconv.ParseInt(value, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("not a hex value: %q", value)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("want number or hex string, got %T", v)
}
