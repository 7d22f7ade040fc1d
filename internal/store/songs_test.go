package store

import (
	"testing"
)

func TestUpsertSongPreservesIdentity(t *testing.T) {
	st := openTestStore(t)

	first, err := UpsertSong(st.DB(), &SongInput{
		TextageID: "t1", Version: "33", Title: "OK", Artist: "a1", Genre: "g1",
		IsACActive: true, IsINFActive: false,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	song, err := SongByTextageID(st.DB(), "t1")
	if err != nil {
		t.Fatalf("get song: %v", err)
	}
	createdAt := song.CreatedAt

	// second sighting with corrected fields keeps music_id and created_at
	second, err := UpsertSong(st.DB(), &SongInput{
		TextageID: "t1", Version: "33", Title: "OK (fixed)", Artist: "a2", Genre: "g1",
		IsACActive: false, IsINFActive: true,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second != first {
		t.Errorf("expected stable music_id %d, got %d", first, second)
	}

	song, err = SongByTextageID(st.DB(), "t1")
	if err != nil {
		t.Fatalf("get song after update: %v", err)
	}
	if song.CreatedAt != createdAt {
		t.Errorf("created_at changed across upserts: %q -> %q", createdAt, song.CreatedAt)
	}
	if song.Title != "OK (fixed)" || song.Artist != "a2" {
		t.Errorf("content fields not updated: %+v", song)
	}
	if song.IsACActive || !song.IsINFActive {
		t.Errorf("active flags not applied: ac=%t inf=%t", song.IsACActive, song.IsINFActive)
	}
	if song.TitleSearchKey != "ok (fixed)" {
		t.Errorf("search key not refreshed, got %q", song.TitleSearchKey)
	}
}

func TestResetActiveFlags(t *testing.T) {
	st := openTestStore(t)

	for _, in := range []SongInput{
		{TextageID: "t1", Version: "33", Title: "A", Artist: "a", Genre: "g", IsACActive: true, IsINFActive: true},
		{TextageID: "t2", Version: "33", Title: "B", Artist: "a", Genre: "g", IsACActive: true},
	} {
		in := in
		if _, err := UpsertSong(st.DB(), &in); err != nil {
			t.Fatalf("upsert %s: %v", in.TextageID, err)
		}
	}

	if err := ResetActiveFlags(st.DB()); err != nil {
		t.Fatalf("reset: %v", err)
	}

	for _, scope := range Scopes {
		count, err := ActiveSongCount(st.DB(), scope)
		if err != nil {
			t.Fatalf("count %s: %v", scope, err)
		}
		if count != 0 {
			t.Errorf("expected no active songs in %s after reset, got %d", scope, count)
		}
	}
}

func TestActiveSongIDsByTitle(t *testing.T) {
	st := openTestStore(t)

	inputs := []SongInput{
		{TextageID: "t1", Version: "33", Title: "DUP", Artist: "a", Genre: "g", IsACActive: true},
		{TextageID: "t2", Version: "33", Title: "DUP", Artist: "b", Genre: "g", IsACActive: true},
		{TextageID: "t3", Version: "33", Title: "DUP", Artist: "c", Genre: "g", IsINFActive: true},
	}
	for _, in := range inputs {
		in := in
		if _, err := UpsertSong(st.DB(), &in); err != nil {
			t.Fatalf("upsert %s: %v", in.TextageID, err)
		}
	}

	ids, err := ActiveSongIDsByTitle(st.DB(), ScopeAC, "DUP", 2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected the limit to cap ac matches at 2, got %d", len(ids))
	}

	ids, err = ActiveSongIDsByTitle(st.DB(), ScopeINF, "DUP", 2)
	if err != nil {
		t.Fatalf("resolve inf: %v", err)
	}
	if len(ids) != 1 || ids[0] != "t3" {
		t.Fatalf("expected only t3 active in inf, got %v", ids)
	}
}

func TestUpsertChartKeepsChartID(t *testing.T) {
	st := openTestStore(t)

	musicID, err := UpsertSong(st.DB(), &SongInput{
		TextageID: "t1", Version: "33", Title: "OK", Artist: "a", Genre: "g", IsACActive: true,
	})
	if err != nil {
		t.Fatalf("upsert song: %v", err)
	}

	chart := &Chart{
		MusicID: musicID, PlayStyle: StyleSP, Difficulty: DiffHyper,
		Level: 10, Notes: 1000, IsActive: true,
	}
	if err := UpsertChart(st.DB(), chart); err != nil {
		t.Fatalf("first chart upsert: %v", err)
	}

	keys, err := ChartKeyMap(st.DB())
	if err != nil {
		t.Fatalf("key map: %v", err)
	}
	key := ChartKey{TextageID: "t1", PlayStyle: StyleSP, Difficulty: DiffHyper}
	firstID, ok := keys[key]
	if !ok {
		t.Fatalf("chart key %s not found", key)
	}

	// level change must not reassign the chart id
	chart.Level = 11
	if err := UpsertChart(st.DB(), chart); err != nil {
		t.Fatalf("second chart upsert: %v", err)
	}

	keys, err = ChartKeyMap(st.DB())
	if err != nil {
		t.Fatalf("key map after update: %v", err)
	}
	if keys[key] != firstID {
		t.Errorf("chart id reassigned: %d -> %d", firstID, keys[key])
	}

	charts, err := ChartsByMusicID(st.DB(), musicID)
	if err != nil {
		t.Fatalf("charts by music: %v", err)
	}
	if len(charts) != 1 || charts[0].Level != 11 {
		t.Errorf("expected one chart at level 11, got %+v", charts)
	}
}

func TestInsertAliasUniqueness(t *testing.T) {
	st := openTestStore(t)

	if _, err := UpsertSong(st.DB(), &SongInput{
		TextageID: "t1", Version: "33", Title: "OK", Artist: "a", Genre: "g", IsACActive: true,
	}); err != nil {
		t.Fatalf("upsert song: %v", err)
	}

	alias := &Alias{TextageID: "t1", Scope: ScopeAC, Alias: "OK", Type: AliasOfficial}
	if err := InsertAlias(st.DB(), alias, "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// same (scope, alias) pair violates the unique index
	dup := &Alias{TextageID: "t1", Scope: ScopeAC, Alias: "OK", Type: AliasManual}
	if err := InsertAlias(st.DB(), dup, "2026-01-01T00:00:00Z"); err == nil {
		t.Fatal("expected duplicate (scope, alias) insert to fail")
	}

	// same alias text in the other scope is fine
	other := &Alias{TextageID: "t1", Scope: ScopeINF, Alias: "OK", Type: AliasOfficial}
	if err := InsertAlias(st.DB(), other, "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("cross-scope insert: %v", err)
	}

	count, err := AliasCount(st.DB(), ScopeAC, AliasOfficial)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 ac official alias, got %d", count)
	}
}
