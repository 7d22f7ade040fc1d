package alias

import (
	"errors"
	"testing"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
	"github.com/iidx-tools/songmaster/internal/wiki"
)

func TestRebuild(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, true)
	seedSong(t, st.DB(), "s2", "Beta", true, false)

	input := &RebuildInput{
		WikiRows: []wiki.AliasRow{
			{OfficialTitle: "Alpha", ReplacedTitles: []string{"Old Alpha"}},
		},
		WikiUnresolvedThreshold: -1,
		ManualRows: []ManualRow{
			{LineNumber: 2, TextageID: "s2", Alias: "B.", Scope: store.ScopeAC},
		},
		Timestamp: testTimestamp,
	}

	report, err := Rebuild(st.DB(), input)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// 2 ac + 1 inf official
	if report.OfficialInserted != 3 {
		t.Errorf("official inserted: got %d, want 3", report.OfficialInserted)
	}
	if report.Wiki == nil || report.Wiki.InsertedCount != 1 {
		t.Errorf("unexpected wiki report: %+v", report.Wiki)
	}
	if report.Manual == nil || report.Manual.InsertedCount != 1 {
		t.Errorf("unexpected manual report: %+v", report.Manual)
	}

	v := report.Verification
	if v == nil {
		t.Fatal("verification summary missing")
	}
	if v.ActiveSongs[store.ScopeAC] != 2 || v.ActiveSongs[store.ScopeINF] != 1 {
		t.Errorf("active song counts: %+v", v.ActiveSongs)
	}
	if v.OfficialAliases[store.ScopeAC] != 2 || v.OfficialAliases[store.ScopeINF] != 1 {
		t.Errorf("official alias counts: %+v", v.OfficialAliases)
	}
	if v.TotalAliases != 5 {
		t.Errorf("total aliases: got %d, want 5", v.TotalAliases)
	}

	// a second rebuild starts from reset, so counts stay identical
	second, err := Rebuild(st.DB(), input)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if second.Verification.TotalAliases != 5 {
		t.Errorf("rebuild not idempotent: got %d aliases, want 5", second.Verification.TotalAliases)
	}
}

func TestRebuildSkipsNilStages(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)

	report, err := Rebuild(st.DB(), &RebuildInput{Timestamp: testTimestamp})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if report.Wiki != nil || report.Manual != nil {
		t.Errorf("nil seed sources should skip their stages: %+v", report)
	}
	if report.Verification.TotalAliases != 1 {
		t.Errorf("total aliases: got %d, want 1", report.Verification.TotalAliases)
	}
}

func TestVerifyCountMismatch(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)
	seedSong(t, st.DB(), "s2", "Beta", true, false)
	if _, err := SeedOfficial(st.DB(), testTimestamp); err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(st.DB()); err != nil {
		t.Fatalf("verify on consistent table: %v", err)
	}

	if _, err := st.DB().Exec(
		"DELETE FROM music_title_alias WHERE textage_id = 's2'"); err != nil {
		t.Fatal(err)
	}

	_, err := Verify(st.DB())
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestVerifyOrphanAlias(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, false)
	if _, err := SeedOfficial(st.DB(), testTimestamp); err != nil {
		t.Fatal(err)
	}

	// bypass the foreign key to simulate a corrupt legacy artifact
	if _, err := st.DB().Exec("PRAGMA foreign_keys = OFF"); err != nil {
		t.Fatal(err)
	}
	err := store.InsertAlias(st.DB(), &store.Alias{
		TextageID: "ghost",
		Scope:     store.ScopeINF,
		Alias:     "Phantom",
		Type:      store.AliasManual,
	}, testTimestamp)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Verify(st.DB())
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation for orphan alias, got %v", err)
	}
}
