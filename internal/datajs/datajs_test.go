package datajs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warriorpoets/league-stats/internal/league"
)

const sample = `const LEAGUE_DATA = {
  "members": ["Lloyd", "Jett"],
  "seasons": {
    "2024": {
      "champion": "Lloyd",
      "weeklyPoints": {
        "Lloyd": {"1": 162.4, "2": 98.1},
        "Jett": {"1": 76.82, "2": null}
      }
    }
  }
};
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "js", "data.js")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRead_WeeklyPoints(t *testing.T) {
	f, err := Read(writeSample(t))
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	pts, err := f.WeeklyPoints("2024")
	if err != nil {
		t.Fatalf("WeeklyPoints error: %v", err)
	}
	if pts["Lloyd"][1] != 162.4 {
		t.Errorf("Lloyd week 1 = %v, want 162.4", pts["Lloyd"][1])
	}
	if _, ok := pts["Jett"][2]; ok {
		t.Error("null score should be absent")
	}
	if !f.HasSeason("2024") || f.HasSeason("2023") {
		t.Errorf("Seasons = %v", f.Seasons())
	}
}

func TestWeeklyPoints_MissingSeason(t *testing.T) {
	f, _ := Parse([]byte(sample))
	pts, err := f.WeeklyPoints("1999")
	if err != nil || len(pts) != 0 {
		t.Errorf("WeeklyPoints(1999) = %v, %v; want empty, nil", pts, err)
	}
}

func TestWriteRoundTrip_PreservesOtherFields(t *testing.T) {
	path := writeSample(t)
	f, _ := Read(path)

	err := f.SetWeeklyPoints("2025", league.WeeklyPoints{"Lloyd": {1: 120.5}})
	if err != nil {
		t.Fatalf("SetWeeklyPoints error: %v", err)
	}
	if err := Write(path, f); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	b, _ := os.ReadFile(path)
	content := string(b)
	if !strings.HasPrefix(content, "const LEAGUE_DATA = {") || !strings.HasSuffix(content, "};\n") {
		t.Errorf("unexpected framing:\n%s", content)
	}
	for _, want := range []string{`"champion": "Lloyd"`, `"members"`, `"2025"`} {
		if !strings.Contains(content, want) {
			t.Errorf("output missing %s", want)
		}
	}

	again, err := Read(path)
	if err != nil {
		t.Fatalf("re-Read error: %v", err)
	}
	pts, _ := again.WeeklyPoints("2025")
	if pts["Lloyd"][1] != 120.5 {
		t.Errorf("2025 Lloyd week 1 = %v, want 120.5", pts["Lloyd"][1])
	}
	old, _ := again.WeeklyPoints("2024")
	if old["Jett"][1] != 76.82 {
		t.Errorf("2024 Jett week 1 = %v, want 76.82", old["Jett"][1])
	}
}

func TestParse_MissingConst(t *testing.T) {
	if _, err := Parse([]byte(`var X = {};`)); err == nil {
		t.Error("Parse without LEAGUE_DATA should fail")
	}
}

func TestWriteConst_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagers-data.js")
	err := WriteConst(path, "WAGERS_DATA", "Kalshi NFL market data - auto-generated\nLast updated: now", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("WriteConst error: %v", err)
	}
	b, _ := os.ReadFile(path)
	content := string(b)
	if !strings.HasPrefix(content, "// Kalshi NFL market data - auto-generated\n// Last updated: now\n\nconst WAGERS_DATA = {") {
		t.Errorf("unexpected output:\n%s", content)
	}
}

func TestDiff(t *testing.T) {
	prev := league.WeeklyPoints{"Lloyd": {1: 100, 2: 90}}
	next := league.WeeklyPoints{
		"Lloyd": {1: 100, 2: 95.5, 3: 80},
		"Jett":  {1: 70},
	}
	changes := Diff(prev, next)
	got := make([]string, len(changes))
	for i, c := range changes {
		got[i] = c.String()
	}
	want := []string{
		"Jett Week 1: NEW → 70",
		"Lloyd Week 2: 90 → 95.5",
		"Lloyd Week 3: NEW → 80",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Diff = %q, want %q", got, want)
	}
}
