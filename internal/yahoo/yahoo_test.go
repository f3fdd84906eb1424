package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const teamsJSON = `{"fantasy_content":{"league":[
  {"league_key":"449.l.95890"},
  {"teams":{
    "0":{"team":[[{"team_key":"449.l.95890.t.1"},{"name":"Poets"},{"managers":[{"manager":{"nickname":"Jonathan"}}]}]]},
    "1":{"team":[[{"team_key":"449.l.95890.t.2"},{"managers":[{"manager":{"nickname":"Jett Miller"}}]}]]},
    "2":{"team":[[{"team_key":"449.l.95890.t.3"},{"managers":[{"manager":{"nickname":"Stranger"}}]}]]},
    "3":{"team":[[{"team_key":"449.l.95890.t.4"}]]},
    "count":4}}
]}}`

func scoreboardJSON(lloyd, jett string) string {
	return fmt.Sprintf(`{"fantasy_content":{"league":[
  {"league_key":"449.l.95890"},
  {"scoreboard":{"week":1,"0":{"matchups":{
    "0":{"matchup":{"0":{"teams":{
      "0":{"team":[[{"team_key":"449.l.95890.t.1"}],{"team_points":{"coverage_type":"week","total":%s}}]},
      "1":{"team":[[{"team_key":"449.l.95890.t.2"}],{"team_points":{"coverage_type":"week","total":%s}}]},
      "count":2}}}},
    "count":1}}}}
]}}`, lloyd, jett)
}

const rosterJSON = `{"fantasy_content":{"team":[
  [{"team_key":"449.l.95890.t.1"},{"managers":[{"manager":{"nickname":"Jonathan"}}]}],
  {"roster":{"coverage_type":"week","0":{"players":{
    "0":{"player":[[{"player_key":"449.p.1"},{"name":{"full":"Josh Allen"}},{"editorial_team_abbr":"Buf"},{"display_position":"QB"}],{"selected_position":[{"coverage_type":"week"},{"position":"QB"}]}]},
    "1":{"player":[[{"player_key":"449.p.2"},{"name":{"full":"Bench Guy"}},{"display_position":"WR"},{"status":"Q"}],{"selected_position":[{"coverage_type":"week"},{"position":"BN"}]}]},
    "count":2}}}}
]}}`

func TestParseTeams(t *testing.T) {
	teams, err := ParseTeams([]byte(teamsJSON), DefaultMembers)
	if err != nil {
		t.Fatalf("ParseTeams error: %v", err)
	}
	want := map[string]string{
		"449.l.95890.t.1": "Lloyd",
		"449.l.95890.t.2": "Jett",
		"449.l.95890.t.3": "Stranger",
	}
	if len(teams) != len(want) {
		t.Fatalf("teams = %v, want %v", teams, want)
	}
	for k, v := range want {
		if teams[k] != v {
			t.Errorf("teams[%s] = %q, want %q", k, teams[k], v)
		}
	}
}

func TestParseScoreboard(t *testing.T) {
	teams := map[string]string{"449.l.95890.t.1": "Lloyd", "449.l.95890.t.2": "Jett"}

	got, err := ParseScoreboard([]byte(scoreboardJSON(`"162.40"`, `76.82`)), teams)
	if err != nil {
		t.Fatalf("ParseScoreboard error: %v", err)
	}
	if got["Lloyd"] != 162.40 {
		t.Errorf("Lloyd = %v, want 162.40 (string total)", got["Lloyd"])
	}
	if got["Jett"] != 76.82 {
		t.Errorf("Jett = %v, want 76.82 (numeric total)", got["Jett"])
	}
}

func TestParseScoreboard_BadJSON(t *testing.T) {
	if _, err := ParseScoreboard([]byte(`{`), nil); err == nil {
		t.Error("expected decode error")
	}
}

func TestParseRoster(t *testing.T) {
	r, err := ParseRoster([]byte(rosterJSON))
	if err != nil {
		t.Fatalf("ParseRoster error: %v", err)
	}
	if r.TeamKey != "449.l.95890.t.1" {
		t.Errorf("TeamKey = %q", r.TeamKey)
	}
	if len(r.Players) != 2 {
		t.Fatalf("Players len = %d, want 2", len(r.Players))
	}
	qb := r.Players[0]
	if qb.Name != "Josh Allen" || qb.Position != "QB" || qb.Team != "Buf" || !qb.Starting {
		t.Errorf("player 0 = %+v", qb)
	}
	bench := r.Players[1]
	if bench.Starting || bench.InjuryStatus != "Q" {
		t.Errorf("player 1 = %+v, want benched and Q", bench)
	}
	if names := r.PlayerNames(); strings.Join(names, ",") != "Josh Allen,Bench Guy" {
		t.Errorf("PlayerNames = %v", names)
	}
}

func TestLeagueKey(t *testing.T) {
	c := &Client{LeagueIDs: map[string]string{"2024": "95890"}}

	key, err := c.LeagueKey("2024")
	if err != nil || key != "449.l.95890" {
		t.Errorf("LeagueKey(2024) = %q, %v", key, err)
	}
	if _, err := c.LeagueKey("2023"); !errors.Is(err, ErrUnknownSeason) {
		t.Errorf("LeagueKey(2023) err = %v, want ErrUnknownSeason", err)
	}
	if _, err := c.LeagueKey("1999"); !errors.Is(err, ErrUnknownSeason) {
		t.Errorf("LeagueKey(1999) err = %v, want ErrUnknownSeason", err)
	}
}

func TestLeagueIDsFromEnv(t *testing.T) {
	t.Setenv("YAHOO_LEAGUE_ID_2023", "12345")
	ids := LeagueIDsFromEnv(map[string]string{"2024": "1"})
	if ids["2023"] != "12345" || ids["2024"] != "1" {
		t.Errorf("ids = %v", ids)
	}
}

func TestClient_WeeklyPoints(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("missing format=json on %s", r.URL)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/teams"):
			io.WriteString(w, teamsJSON)
		case strings.HasSuffix(r.URL.Path, "scoreboard;week=1"):
			io.WriteString(w, scoreboardJSON(`"120.5"`, `"99.25"`))
		case strings.HasSuffix(r.URL.Path, "scoreboard;week=2"):
			io.WriteString(w, scoreboardJSON(`"80"`, `"101"`))
		default:
			http.Error(w, "week not started", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), quietLog())
	c.BaseURL = srv.URL
	c.LeagueIDs = map[string]string{"2024": "95890"}

	pts, err := c.WeeklyPoints(context.Background(), "2024", 0)
	if err != nil {
		t.Fatalf("WeeklyPoints error: %v", err)
	}
	if pts["Lloyd"][1] != 120.5 || pts["Lloyd"][2] != 80 {
		t.Errorf("Lloyd = %v", pts["Lloyd"])
	}
	if pts["Jett"][2] != 101 {
		t.Errorf("Jett = %v", pts["Jett"])
	}
	if _, ok := pts["Stranger"]; !ok {
		t.Error("member without scores should still be present")
	}
	// teams + weeks 1..3, stopping at the first failure
	if len(paths) != 4 {
		t.Errorf("requests = %d (%v), want 4", len(paths), paths)
	}
}

func TestClient_Rosters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/teams"):
			io.WriteString(w, teamsJSON)
		case strings.Contains(r.URL.Path, "449.l.95890.t.1/roster"):
			io.WriteString(w, rosterJSON)
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), quietLog())
	c.BaseURL = srv.URL
	c.LeagueIDs = map[string]string{"2025": "50810"}

	rosters, err := c.Rosters(context.Background(), "2025", 0)
	if err != nil {
		t.Fatalf("Rosters error: %v", err)
	}
	if len(rosters) != 1 {
		t.Fatalf("rosters = %d, want 1 (failed teams skipped)", len(rosters))
	}
	if r := rosters["Lloyd"]; r.Member != "Lloyd" || len(r.Players) != 2 {
		t.Errorf("Lloyd roster = %+v", r)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_TruncatedBody(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body := io.MultiReader(strings.NewReader(`{"fantasy_content":`), iotest.ErrReader(io.ErrUnexpectedEOF))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(body), Request: r}, nil
	})}
	c := NewClient(httpClient, quietLog())
	c.LeagueIDs = map[string]string{"2024": "95890"}

	_, err := c.Teams(context.Background(), "2024")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Teams err = %v, want io.ErrUnexpectedEOF", err)
	}
}
