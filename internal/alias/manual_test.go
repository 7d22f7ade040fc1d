package alias

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

func writeManualCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manual_aliases.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestReadManualCSV(t *testing.T) {
	// header carries a BOM, the way spreadsheet exports arrive
	path := writeManualCSV(t, "\xEF\xBB\xBF"+
		"textage_id,alias,alias_scope,alias_type,note\n"+
		"s1,Club Mix,ac,manual,long title shortened\n"+
		"s2,B4U,inf,manual,\n")

	rows, err := ReadManualCSV(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.LineNumber != 2 || first.TextageID != "s1" || first.Alias != "Club Mix" ||
		first.Scope != store.ScopeAC || first.Note != "long title shortened" {
		t.Errorf("unexpected first row: %+v", first)
	}
	second := rows[1]
	if second.LineNumber != 3 || second.Scope != store.ScopeINF || second.Note != "" {
		t.Errorf("unexpected second row: %+v", second)
	}
}

func TestReadManualCSVMissingColumns(t *testing.T) {
	path := writeManualCSV(t, "textage_id,alias\ns1,x\n")

	_, err := ReadManualCSV(path)
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "alias_scope") || !strings.Contains(err.Error(), "alias_type") {
		t.Errorf("error should name the missing columns: %v", err)
	}
}

func TestReadManualCSVRejectsMalformedRows(t *testing.T) {
	header := "textage_id,alias,alias_scope,alias_type\n"
	cases := []struct {
		name string
		row  string
	}{
		{"empty required value", "s1,,ac,manual\n"},
		{"invalid scope", "s1,x,arcade,manual\n"},
		{"invalid alias type", "s1,x,ac,official\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManualCSV(t, header+tc.row)
			_, err := ReadManualCSV(path)
			if !errors.Is(err, util.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), "line") {
				t.Errorf("error should carry the line number: %v", err)
			}
		})
	}
}

func TestSeedManual(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)
	seedSong(t, st.DB(), "s2", "Beta", true, false)
	if _, err := SeedOfficial(st.DB(), testTimestamp); err != nil {
		t.Fatal(err)
	}

	rows := []ManualRow{
		{LineNumber: 2, TextageID: "s1", Alias: "Alpha", Scope: store.ScopeAC}, // restates official
		{LineNumber: 3, TextageID: "s1", Alias: "A.", Scope: store.ScopeAC},
	}

	report, err := SeedManual(st.DB(), rows, testTimestamp)
	if err != nil {
		t.Fatalf("seed manual: %v", err)
	}
	if report.InsertedCount != 1 || report.SkippedRedundantCount != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	count, err := store.AliasCount(st.DB(), store.ScopeAC, store.AliasManual)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("manual alias count: got %d, want 1", count)
	}
}

func TestSeedManualDuplicateInBatch(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)
	seedSong(t, st.DB(), "s2", "Beta", true, false)

	rows := []ManualRow{
		{LineNumber: 2, TextageID: "s1", Alias: "X", Scope: store.ScopeAC},
		{LineNumber: 5, TextageID: "s2", Alias: "X", Scope: store.ScopeAC},
	}

	_, err := SeedManual(st.DB(), rows, testTimestamp)
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "first_line=2") || !strings.Contains(err.Error(), "dup_line=5") {
		t.Errorf("error should carry both line numbers: %v", err)
	}
}

func TestSeedManualUnknownTextageID(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)

	rows := []ManualRow{
		{LineNumber: 2, TextageID: "nope", Alias: "X", Scope: store.ScopeAC},
	}

	_, err := SeedManual(st.DB(), rows, testTimestamp)
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSeedManualCollisionWithExistingAlias(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)
	seedSong(t, st.DB(), "s2", "Beta", true, false)

	err := store.InsertAlias(st.DB(), &store.Alias{
		TextageID: "s1",
		Scope:     store.ScopeAC,
		Alias:     "Taken",
		Type:      store.AliasCSVWiki,
	}, testTimestamp)
	if err != nil {
		t.Fatal(err)
	}

	rows := []ManualRow{
		{LineNumber: 2, TextageID: "s2", Alias: "Taken", Scope: store.ScopeAC},
	}

	_, err = SeedManual(st.DB(), rows, testTimestamp)
	if !errors.Is(err, util.ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
}
