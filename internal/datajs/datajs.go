// Package datajs reads and writes the static JavaScript data modules the
// site pages load (const LEAGUE_DATA = {...};).
package datajs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/warriorpoets/league-stats/internal/league"
)

const LeagueConst = "LEAGUE_DATA"

// File is the parsed LEAGUE_DATA object. Keys other than seasons and the
// per-season weeklyPoints table are kept as raw JSON and written back as-is.
type File struct {
	fields  map[string]json.RawMessage
	seasons map[string]map[string]json.RawMessage
}

func Read(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*File, error) {
	body, err := stripConst(b, LeagueConst)
	if err != nil {
		return nil, err
	}

	f := &File{seasons: map[string]map[string]json.RawMessage{}}
	if err := json.Unmarshal(body, &f.fields); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", LeagueConst, err)
	}
	if f.fields == nil {
		f.fields = map[string]json.RawMessage{}
	}
	if raw, ok := f.fields["seasons"]; ok {
		if err := json.Unmarshal(raw, &f.seasons); err != nil {
			return nil, fmt.Errorf("parsing seasons: %w", err)
		}
		if f.seasons == nil {
			f.seasons = map[string]map[string]json.RawMessage{}
		}
	}
	return f, nil
}

// Seasons lists the season keys present, ascending.
func (f *File) Seasons() []string {
	out := make([]string, 0, len(f.seasons))
	for s := range f.seasons {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (f *File) HasSeason(season string) bool {
	_, ok := f.seasons[season]
	return ok
}

// WeeklyPoints returns the season's table. A missing season or table is empty,
// not an error.
func (f *File) WeeklyPoints(season string) (league.WeeklyPoints, error) {
	raw, ok := f.seasons[season]["weeklyPoints"]
	if !ok {
		return league.WeeklyPoints{}, nil
	}
	var byWeek map[string]map[string]*float64
	if err := json.Unmarshal(raw, &byWeek); err != nil {
		return nil, fmt.Errorf("parsing %s weeklyPoints: %w", season, err)
	}

	pts := make(league.WeeklyPoints, len(byWeek))
	for member, weeks := range byWeek {
		pts[member] = make(map[int]float64, len(weeks))
		for wk, v := range weeks {
			w, err := strconv.Atoi(wk)
			if err != nil {
				return nil, fmt.Errorf("%s %s: week %q: %w", season, member, wk, err)
			}
			// null scores stay absent and count as zero
			if v != nil {
				pts[member][w] = *v
			}
		}
	}
	return pts, nil
}

// SetWeeklyPoints replaces the season's table, creating the season if needed.
func (f *File) SetWeeklyPoints(season string, pts league.WeeklyPoints) error {
	raw, err := json.Marshal(pts)
	if err != nil {
		return fmt.Errorf("encoding weeklyPoints: %w", err)
	}
	if f.seasons[season] == nil {
		f.seasons[season] = map[string]json.RawMessage{}
	}
	f.seasons[season]["weeklyPoints"] = raw
	return nil
}

func (f *File) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(f.fields)+1)
	for k, v := range f.fields {
		out[k] = v
	}
	seasons, err := json.Marshal(f.seasons)
	if err != nil {
		return nil, err
	}
	out["seasons"] = seasons
	return json.Marshal(out)
}

func Write(path string, f *File) error {
	return WriteConst(path, LeagueConst, "", f)
}

// WriteConst writes v as `const NAME = <json>;` with an optional comment
// header, two-space indented.
func WriteConst(path, name, header string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	var buf bytes.Buffer
	for _, line := range strings.Split(header, "\n") {
		if line != "" {
			fmt.Fprintf(&buf, "// %s\n", line)
		}
	}
	if header != "" {
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "const %s = %s;\n", name, b)
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func stripConst(b []byte, name string) ([]byte, error) {
	prefix := []byte("const " + name + " = ")
	i := bytes.Index(b, prefix)
	if i < 0 {
		return nil, fmt.Errorf("%s declaration not found", name)
	}
	body := bytes.TrimSpace(b[i+len(prefix):])
	body = bytes.TrimSuffix(body, []byte(";"))
	return body, nil
}
