package wiki

import (
	"errors"
	"strings"
	"testing"

	"github.com/iidx-tools/songmaster/internal/util"
)

const wikiFixture = `<html><body>
<table class="style_table">
<thead><tr><th>曲名</th><th>備考</th></tr></thead>
<tbody><tr><td>unrelated</td><td>table</td></tr></tbody>
</table>
<table class="style_table">
<thead><tr><th>正式曲名</th><th>置き換え後の曲名</th><th>備考</th></tr></thead>
<tbody>
<tr><td colspan="3">beatmania IIDX 4th style</td></tr>
<tr><td>GAMBOL</td><td>gambol</td><td></td></tr>
<tr><td>V</td><td>V(A)<br>V(TAKA)</td><td>表記揺れ</td></tr>
<tr><td colspan="2">特殊行</td><td></td></tr>
<tr><td></td><td>orphan</td><td></td></tr>
<tr><td>sparse</td><td><br></td><td></td></tr>
</tbody>
</table>
</body></html>`

func TestParseTitleAliasTable(t *testing.T) {
	rows, report, err := ParseTitleAliasTable(wikiFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 definition rows, got %d: %+v", len(rows), rows)
	}

	first := rows[0]
	if first.OfficialTitle != "GAMBOL" || len(first.ReplacedTitles) != 1 || first.ReplacedTitles[0] != "gambol" {
		t.Errorf("unexpected first row: %+v", first)
	}

	second := rows[1]
	if second.OfficialTitle != "V" {
		t.Errorf("unexpected official title: %q", second.OfficialTitle)
	}
	if len(second.ReplacedTitles) != 2 ||
		second.ReplacedTitles[0] != "V(A)" || second.ReplacedTitles[1] != "V(TAKA)" {
		t.Errorf("br-separated titles not split in order: %+v", second.ReplacedTitles)
	}
	if second.Note != "表記揺れ" {
		t.Errorf("unexpected note: %q", second.Note)
	}

	if report.TablesScanned != 2 || report.MatchedTables != 1 || report.SelectedTableIndex != 1 {
		t.Errorf("unexpected table selection: %+v", report)
	}
	if report.DefinitionRows != 2 {
		t.Errorf("definition rows: got %d, want 2", report.DefinitionRows)
	}
	if report.SkippedByReason["section_header"] != 1 {
		t.Errorf("section header row not counted: %+v", report.SkippedByReason)
	}
	if report.SkippedByReason["colspan2_special"] != 1 {
		t.Errorf("colspan2 special row not counted: %+v", report.SkippedByReason)
	}
	if report.SkippedByReason["missing_required_cell"] != 2 {
		t.Errorf("missing-cell rows not counted: %+v", report.SkippedByReason)
	}
}

func TestParseTitleAliasTableNoMatch(t *testing.T) {
	fixture := `<html><body><table class="style_table">
<thead><tr><th>foo</th><th>bar</th></tr></thead>
</table></body></html>`

	_, _, err := ParseTitleAliasTable(fixture)
	if !errors.Is(err, util.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseTitleAliasTableAmbiguous(t *testing.T) {
	one := `<table class="style_table">
<thead><tr><th>正式曲名</th><th>置き換え後の曲名</th><th>備考</th></tr></thead>
<tbody><tr><td>a</td><td>b</td><td></td></tr></tbody>
</table>`
	fixture := "<html><body>" + one + one + "</body></html>"

	_, _, err := ParseTitleAliasTable(fixture)
	if !errors.Is(err, util.ErrParse) {
		t.Fatalf("expected ErrParse for duplicate tables, got %v", err)
	}
	if !strings.Contains(err.Error(), "2") {
		t.Errorf("error should name the match count: %v", err)
	}
}
