// Package yahoo fetches league data from the Yahoo Fantasy Sports API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warriorpoets/league-stats/internal/league"
)

const APIBase = "https://fantasysports.yahooapis.com/fantasy/v2"

// DefaultWeeks is how many scoreboard weeks a season sync walks.
const DefaultWeeks = 17

var ErrUnknownSeason = errors.New("unknown season")

// GameKeys maps an NFL season to Yahoo's game id.
var GameKeys = map[string]string{
	"2025": "461", "2024": "449", "2023": "423", "2022": "414",
	"2021": "406", "2020": "399", "2019": "390", "2018": "380",
	"2017": "371", "2016": "359", "2015": "348", "2014": "331",
	"2013": "314", "2012": "273", "2011": "242", "2010": "223",
	"2009": "199",
}

// DefaultLeagueIDs holds the league id per season; the league is renewed
// under a new id every year.
var DefaultLeagueIDs = map[string]string{
	"2025": "50810",
	"2024": "95890",
}

// DefaultMembers maps Yahoo manager nicknames to league member names.
var DefaultMembers = map[string]string{
	"Ryan":            "Pinkston",
	"Cliff":           "CP",
	"Joe Rizzo":       "Rizzo",
	"Josh":            "Farber",
	"Bradley":         "Dues",
	"Jett Miller":     "Jett",
	"Rick":            "Rick",
	"Jonathan":        "Lloyd",
	"Eric":            "Stern",
	"Justin Bagdzius": "JB",
	"Michael Y":       "Yonk",
	"Ben":             "Ben",
	"Richard":         "Rich",
	"Andrew":          "Andrew",
}

type Client struct {
	HTTP      *http.Client
	BaseURL   string
	LeagueIDs map[string]string
	Members   map[string]string
	Log       logrus.FieldLogger
}

// NewClient wraps an authorized HTTP client, normally one built by
// Auth.Client.
func NewClient(httpClient *http.Client, log logrus.FieldLogger) *Client {
	return &Client{
		HTTP:      httpClient,
		BaseURL:   APIBase,
		LeagueIDs: LeagueIDsFromEnv(DefaultLeagueIDs),
		Members:   DefaultMembers,
		Log:       log,
	}
}

// LeagueIDsFromEnv overlays YAHOO_LEAGUE_ID_<year> variables on defaults.
func LeagueIDsFromEnv(defaults map[string]string) map[string]string {
	ids := make(map[string]string, len(defaults))
	for k, v := range defaults {
		ids[k] = v
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if year, ok := strings.CutPrefix(k, "YAHOO_LEAGUE_ID_"); ok && v != "" {
			ids[year] = v
		}
	}
	return ids
}

func (c *Client) LeagueKey(year string) (string, error) {
	game, ok := GameKeys[year]
	if !ok {
		return "", fmt.Errorf("no game key for %s: %w", year, ErrUnknownSeason)
	}
	id, ok := c.LeagueIDs[year]
	if !ok {
		return "", fmt.Errorf("no league id for %s, set YAHOO_LEAGUE_ID_%s: %w", year, year, ErrUnknownSeason)
	}
	return game + ".l." + id, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	url := c.BaseURL + endpoint
	if strings.Contains(url, "?") {
		url += "&format=json"
	} else {
		url += "?format=json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading GET %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s failed: %d body=%s", endpoint, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) Teams(ctx context.Context, year string) ([]byte, error) {
	key, err := c.LeagueKey(year)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "/league/"+key+"/teams")
}

func (c *Client) Scoreboard(ctx context.Context, year string, week int) ([]byte, error) {
	key, err := c.LeagueKey(year)
	if err != nil {
		return nil, err
	}
	endpoint := "/league/" + key + "/scoreboard"
	if week > 0 {
		endpoint += fmt.Sprintf(";week=%d", week)
	}
	return c.get(ctx, endpoint)
}

func (c *Client) Roster(ctx context.Context, teamKey string, week int) ([]byte, error) {
	endpoint := "/team/" + teamKey + "/roster/players"
	if week > 0 {
		endpoint = fmt.Sprintf("/team/%s/roster;week=%d/players", teamKey, week)
	}
	return c.get(ctx, endpoint)
}

// TeamMembers maps each team key in the season to its member name.
func (c *Client) TeamMembers(ctx context.Context, year string) (map[string]string, error) {
	body, err := c.Teams(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("fetching teams: %w", err)
	}
	teams, err := ParseTeams(body, c.Members)
	if err != nil {
		return nil, err
	}
	c.Log.WithFields(logrus.Fields{"season": year, "teams": len(teams)}).Info("loaded teams")
	return teams, nil
}

// WeeklyPoints walks the scoreboard for weeks 1..weeks. The walk stops at the
// first week Yahoo refuses, since later weeks have not been played.
func (c *Client) WeeklyPoints(ctx context.Context, year string, weeks int) (league.WeeklyPoints, error) {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	teams, err := c.TeamMembers(ctx, year)
	if err != nil {
		return nil, err
	}

	pts := make(league.WeeklyPoints, len(teams))
	for _, m := range teams {
		pts[m] = map[int]float64{}
	}

	for week := 1; week <= weeks; week++ {
		body, err := c.Scoreboard(ctx, year, week)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.Log.WithFields(logrus.Fields{"week": week, "error": err}).Warn("could not fetch week, stopping")
			break
		}
		scores, err := ParseScoreboard(body, teams)
		if err != nil {
			return nil, fmt.Errorf("week %d: %w", week, err)
		}
		for m, p := range scores {
			pts[m][week] = p
		}
		c.Log.WithFields(logrus.Fields{"week": week, "teams": len(scores)}).Debug("fetched scoreboard")
	}
	return pts, nil
}

// Rosters fetches every team's current roster, keyed by member. A team whose
// roster fails is logged and skipped.
func (c *Client) Rosters(ctx context.Context, year string, week int) (map[string]Roster, error) {
	teams, err := c.TeamMembers(ctx, year)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Roster, len(teams))
	for teamKey, member := range teams {
		body, err := c.Roster(ctx, teamKey, week)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.Log.WithFields(logrus.Fields{"member": member, "team": teamKey, "error": err}).Warn("roster fetch failed")
			continue
		}
		r, err := ParseRoster(body)
		if err != nil {
			c.Log.WithFields(logrus.Fields{"member": member, "error": err}).Warn("roster parse failed")
			continue
		}
		r.Member = member
		out[member] = r
	}
	return out, nil
}
