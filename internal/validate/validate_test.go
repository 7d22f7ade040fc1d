package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iidx-tools/songmaster/internal/builder"
	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/textage"
	"github.com/iidx-tools/songmaster/internal/util"
)

const testTitleJS = `
titletbl = {
'_a':[31, "T001", 0, "GENRE", "ARTIST", "OK"]
};`

const testDataJS = `
datatbl = {
'_a':[0,100,200,300,400,500,0,700,800,900,1000]
};`

const testActJS = `
actbl = {
'_a':[3,0,0,5,0,5,0,5,0,5,0,5,0,0,0,5,0,5,0,5,0,5]
};`

// buildArtifact runs a full build into a fresh file and returns its path
func buildArtifact(t *testing.T, dir, name string) string {
	t.Helper()

	titles, err := textage.ParseTitleTable(testTitleJS)
	if err != nil {
		t.Fatal(err)
	}
	data, err := textage.ParseDataTable(testDataJS)
	if err != nil {
		t.Fatal(err)
	}
	act, err := textage.ParseActTable(testActJS)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, name)
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	_, err = builder.Build(st, &textage.Tables{Titles: titles, Data: data, Act: act}, &builder.Options{
		SchemaVersion:           "1",
		AssetUpdatedAt:          "2026-01-01T00:00:00+09:00",
		WikiUnresolvedThreshold: -1,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return path
}

// mutate opens the artifact read-write and applies one corruption
func mutate(t *testing.T, path, stmt string) {
	t.Helper()
	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.DB().Exec(stmt); err != nil {
		t.Fatalf("mutate artifact: %v", err)
	}
}

func TestArtifactPasses(t *testing.T) {
	path := buildArtifact(t, t.TempDir(), "song_master.sqlite")

	report, err := Artifact(path, "1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Songs != 1 || report.Charts != 9 || report.Aliases != 2 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if report.SchemaVersion != "1" {
		t.Errorf("schema version: got %q, want 1", report.SchemaVersion)
	}
}

func TestArtifactSchemaVersionMismatch(t *testing.T) {
	path := buildArtifact(t, t.TempDir(), "song_master.sqlite")

	_, err := Artifact(path, "2")
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestArtifactMissingMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite")
	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	st.Close()

	_, err = Artifact(path, "")
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing meta, got %v", err)
	}
}

func TestArtifactDetectsAliasCountMismatch(t *testing.T) {
	path := buildArtifact(t, t.TempDir(), "song_master.sqlite")
	mutate(t, path, "DELETE FROM music_title_alias WHERE alias_scope = 'inf'")

	_, err := Artifact(path, "1")
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestArtifactDetectsMalformedQualifier(t *testing.T) {
	path := buildArtifact(t, t.TempDir(), "song_master.sqlite")
	mutate(t, path, "UPDATE music SET title_qualifier = '(broken' WHERE textage_id = 'T001'")

	_, err := Artifact(path, "1")
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestWellFormedQualifier(t *testing.T) {
	cases := []struct {
		qualifier string
		want      bool
	}{
		{"", true},
		{"REMIX", true},
		{"(AC)", true},
		{"(INF)", true},
		{"(broken", false},
		{"broken)", false},
		{"(a(b))", false},
		{"x(y)", false},
	}
	for _, tc := range cases {
		if got := wellFormedQualifier(tc.qualifier); got != tc.want {
			t.Errorf("wellFormedQualifier(%q): got %t, want %t", tc.qualifier, got, tc.want)
		}
	}
}

func TestParseMissingPolicy(t *testing.T) {
	if p, err := ParseMissingPolicy("error"); err != nil || p != MissingError {
		t.Errorf("error policy: got %q, %v", p, err)
	}
	if p, err := ParseMissingPolicy("warn"); err != nil || p != MissingWarn {
		t.Errorf("warn policy: got %q, %v", p, err)
	}
	if _, err := ParseMissingPolicy("ignore"); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestChartIDStability(t *testing.T) {
	dir := t.TempDir()
	oldPath := buildArtifact(t, dir, "old.sqlite")
	newPath := copyArtifact(t, oldPath, filepath.Join(dir, "new.sqlite"))

	summary, err := ChartIDStability(oldPath, newPath, MissingError)
	if err != nil {
		t.Fatalf("stability: %v", err)
	}
	if summary.OldCharts != 9 || summary.NewCharts != 9 || summary.SharedCharts != 9 || summary.NewOnly != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestChartIDStabilityReassigned(t *testing.T) {
	dir := t.TempDir()
	oldPath := buildArtifact(t, dir, "old.sqlite")
	newPath := copyArtifact(t, oldPath, filepath.Join(dir, "new.sqlite"))
	mutate(t, newPath, "UPDATE chart SET chart_id = chart_id + 100")

	for _, policy := range []MissingPolicy{MissingError, MissingWarn} {
		_, err := ChartIDStability(oldPath, newPath, policy)
		if !errors.Is(err, util.ErrStability) {
			t.Errorf("policy %s: expected ErrStability, got %v", policy, err)
		}
	}
}

func TestChartIDStabilityMissingKeys(t *testing.T) {
	dir := t.TempDir()
	oldPath := buildArtifact(t, dir, "old.sqlite")
	newPath := copyArtifact(t, oldPath, filepath.Join(dir, "new.sqlite"))
	mutate(t, newPath, "DELETE FROM chart WHERE play_style = 'DP'")

	_, err := ChartIDStability(oldPath, newPath, MissingError)
	if !errors.Is(err, util.ErrStability) {
		t.Fatalf("error policy: expected ErrStability, got %v", err)
	}

	summary, err := ChartIDStability(oldPath, newPath, MissingWarn)
	if err != nil {
		t.Fatalf("warn policy: %v", err)
	}
	if summary.SharedCharts != 5 || len(summary.MissingKeys) != 4 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	for i := 1; i < len(summary.MissingKeys); i++ {
		if summary.MissingKeys[i-1].String() > summary.MissingKeys[i].String() {
			t.Errorf("missing keys not sorted: %v", summary.MissingKeys)
		}
	}
}

func copyArtifact(t *testing.T, src, dst string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		t.Fatal(err)
	}
	return dst
}
