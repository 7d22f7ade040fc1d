package textage

import (
	"errors"
	"testing"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

const titleFixture = `
SS = 35;

titletbl = {
'_t1':[SS, "t1", 0, "GENRE", "ARTIST", "TITLE"],
'_t2':[33, "t2", 0, "G2", "A2", "T2".fontcolor("#ffffff"), "SUB"], // current version
'deco':[divider(1)]
};
`

const dataFixture = `
datatbl = {
'_t1':[0,101,202,303,404,505,0,707,808,909,1010]
};
`

const actFixture = `
actbl = {
'_t1':[3,0,0,1,0,5,0,A,0,12,0,0,0,0,0,6,0,8,0,11,0,0,0,"(AC)"]
};
`

func TestParseTitleTable(t *testing.T) {
	rows, err := ParseTitleTable(titleFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// the decoration entry is skipped, not fatal
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	t1 := rows["_t1"]
	if t1.Version != "SS" {
		t.Errorf("expected substream sentinel mapped to SS, got %q", t1.Version)
	}
	if t1.TextageID != "t1" || t1.Genre != "GENRE" || t1.Artist != "ARTIST" || t1.Title != "TITLE" {
		t.Errorf("unexpected row fields: %+v", t1)
	}
	if t1.Subtitle != "" {
		t.Errorf("expected empty subtitle, got %q", t1.Subtitle)
	}

	t2 := rows["_t2"]
	if t2.Version != "33" {
		t.Errorf("expected plain version 33, got %q", t2.Version)
	}
	if t2.Title != "T2" {
		t.Errorf("expected fontcolor markup stripped, got %q", t2.Title)
	}
	if t2.Subtitle != "SUB" {
		t.Errorf("expected subtitle SUB, got %q", t2.Subtitle)
	}
}

func TestParseTitleTableMissingVar(t *testing.T) {
	_, err := ParseTitleTable(`othertbl = {};`)
	if !errors.Is(err, util.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseTitleTableEmpty(t *testing.T) {
	_, err := ParseTitleTable(`titletbl = {};`)
	if !errors.Is(err, util.ErrParse) {
		t.Fatalf("expected ErrParse for empty table, got %v", err)
	}
}

func TestParseDataTable(t *testing.T) {
	rows, err := ParseDataTable(dataFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	row, ok := rows["_t1"]
	if !ok {
		t.Fatal("row _t1 missing")
	}

	wantNotes := map[int]int{1: 101, 2: 202, 3: 303, 4: 404, 5: 505, 7: 707, 8: 808, 9: 909, 10: 1010}
	for _, kind := range ChartKinds {
		if got := row.Notes(kind); got != wantNotes[kind.Type] {
			t.Errorf("notes for type %d: got %d, want %d", kind.Type, got, wantNotes[kind.Type])
		}
	}
}

func TestParseActTable(t *testing.T) {
	rows, err := ParseActTable(actFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	row, ok := rows["_t1"]
	if !ok {
		t.Fatal("row _t1 missing")
	}

	if !row.ACActive() || !row.INFActive() {
		t.Errorf("expected both scopes active for flags 3: ac=%t inf=%t", row.ACActive(), row.INFActive())
	}

	wantLevels := map[int]int{1: 1, 2: 5, 3: 10, 4: 12, 5: 0, 7: 6, 8: 8, 9: 11, 10: 0}
	for _, kind := range ChartKinds {
		if got := row.Level(kind); got != wantLevels[kind.Type] {
			t.Errorf("level for type %d: got %d, want %d", kind.Type, got, wantLevels[kind.Type])
		}
	}

	if row.TitleQualifier() != "(AC)" {
		t.Errorf("expected explicit qualifier, got %q", row.TitleQualifier())
	}
}

func TestParseActTableHexFlags(t *testing.T) {
	rows, err := ParseActTable(`actbl = {
'_x':["B",0,1,0,1,0,1,0,1,0,1,0,0,0,0,1,0,1,0,1,0,1]
};`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	row := rows["_x"]
	// 0x0B sets bit0 and bit1
	if !row.ACActive() || !row.INFActive() {
		t.Errorf("hex flag string not decoded: ac=%t inf=%t", row.ACActive(), row.INFActive())
	}
	if row.TitleQualifier() != "" {
		t.Errorf("short row should have no qualifier, got %q", row.TitleQualifier())
	}
}

func TestChartKindAxes(t *testing.T) {
	if len(ChartKinds) != 9 {
		t.Fatalf("expected 9 chart kinds, got %d", len(ChartKinds))
	}

	sp, dp := 0, 0
	for _, kind := range ChartKinds {
		switch kind.PlayStyle {
		case store.StyleSP:
			sp++
		case store.StyleDP:
			dp++
		}
	}
	if sp != 5 || dp != 4 {
		t.Errorf("expected 5 SP and 4 DP kinds, got %d/%d", sp, dp)
	}
}
