package alias

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

const testTimestamp = "2026-01-01T00:00:00Z"

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "song_master.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedSong(t *testing.T, q store.DBTX, textageID, title string, ac, inf bool) {
	t.Helper()
	_, err := store.UpsertSong(q, &store.SongInput{
		TextageID:   textageID,
		Version:     "31",
		Title:       title,
		Artist:      "artist",
		Genre:       "genre",
		IsACActive:  ac,
		IsINFActive: inf,
	})
	if err != nil {
		t.Fatalf("seed song %s: %v", textageID, err)
	}
}

func TestSeedOfficialPerScope(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Alpha", true, true)
	seedSong(t, st.DB(), "s2", "Beta", true, false)
	seedSong(t, st.DB(), "s3", "Gamma", false, false)

	inserted, err := SeedOfficial(st.DB(), testTimestamp)
	if err != nil {
		t.Fatalf("seed official: %v", err)
	}
	if inserted != 3 {
		t.Errorf("inserted: got %d, want 3", inserted)
	}

	acCount, err := store.AliasCount(st.DB(), store.ScopeAC, store.AliasOfficial)
	if err != nil {
		t.Fatal(err)
	}
	infCount, err := store.AliasCount(st.DB(), store.ScopeINF, store.AliasOfficial)
	if err != nil {
		t.Fatal(err)
	}
	if acCount != 2 || infCount != 1 {
		t.Errorf("official counts: got ac=%d inf=%d, want ac=2 inf=1", acCount, infCount)
	}
}

func TestSeedOfficialTitleCollision(t *testing.T) {
	st := openTestStore(t)
	seedSong(t, st.DB(), "s1", "Dup", true, false)
	seedSong(t, st.DB(), "s2", "Dup", true, false)

	_, err := SeedOfficial(st.DB(), testTimestamp)
	if !errors.Is(err, util.ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
	if !strings.Contains(err.Error(), "s1") || !strings.Contains(err.Error(), "s2") {
		t.Errorf("error should name both colliding ids: %v", err)
	}
}
