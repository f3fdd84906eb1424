package yahoo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Yahoo encodes collections as objects keyed "0", "1", ... plus a "count",
// and records as arrays of single-key objects. The helpers below walk that
// shape without a schema.

var benchPositions = map[string]bool{"BN": true, "IR": true, "IR+": true}

type Player struct {
	Name             string `json:"name"`
	Position         string `json:"position"`
	Team             string `json:"team,omitempty"`
	SelectedPosition string `json:"selectedPosition,omitempty"`
	Starting         bool   `json:"starting"`
	InjuryStatus     string `json:"injuryStatus,omitempty"`
}

type Roster struct {
	TeamKey string   `json:"teamKey"`
	Member  string   `json:"member"`
	Players []Player `json:"players"`
}

// PlayerNames lists the roster's player names in roster order.
func (r Roster) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Name)
	}
	return names
}

// ParseTeams maps team keys to member names, translating manager nicknames
// through members. Unknown nicknames are used verbatim.
func ParseTeams(body []byte, members map[string]string) (map[string]string, error) {
	root, err := decode(body)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	for _, part := range list(field(obj(root["fantasy_content"]), "league")) {
		teams, ok := obj(part)["teams"]
		if !ok {
			continue
		}
		for _, team := range indexed(obj(teams)) {
			key, manager := teamIdentity(obj(team)["team"])
			if key == "" || manager == "" {
				continue
			}
			if m, ok := members[manager]; ok {
				manager = m
			}
			out[key] = manager
		}
	}
	return out, nil
}

// ParseScoreboard returns member -> points for every team in the scoreboard
// whose key is in teams.
func ParseScoreboard(body []byte, teams map[string]string) (map[string]float64, error) {
	root, err := decode(body)
	if err != nil {
		return nil, err
	}

	out := map[string]float64{}
	for _, part := range list(field(obj(root["fantasy_content"]), "league")) {
		board, ok := obj(part)["scoreboard"]
		if !ok {
			continue
		}
		matchups := obj(obj(obj(board)["0"])["matchups"])
		for _, mu := range indexed(matchups) {
			sides := obj(obj(obj(obj(mu)["matchup"])["0"])["teams"])
			for _, side := range indexed(sides) {
				info := obj(side)["team"]
				key, _ := teamIdentity(info)
				pts, ok := teamPoints(info)
				if key == "" || !ok {
					continue
				}
				if member, ok := teams[key]; ok {
					out[member] = pts
				}
			}
		}
	}
	return out, nil
}

// ParseRoster reads a /team/{key}/roster/players response.
func ParseRoster(body []byte) (Roster, error) {
	root, err := decode(body)
	if err != nil {
		return Roster{}, err
	}

	var r Roster
	team := list(obj(root["fantasy_content"])["team"])
	r.TeamKey, _ = teamIdentity(team)

	for _, part := range team {
		roster, ok := obj(part)["roster"]
		if !ok {
			continue
		}
		players := obj(obj(obj(roster)["0"])["players"])
		for _, pd := range indexed(players) {
			if p, ok := parsePlayer(obj(pd)["player"]); ok {
				r.Players = append(r.Players, p)
			}
		}
	}
	return r, nil
}

func parsePlayer(v any) (Player, bool) {
	var p Player
	for _, part := range list(v) {
		for _, item := range list(part) {
			o := obj(item)
			if name, ok := o["name"]; ok {
				p.Name = str(obj(name)["full"])
			}
			if pos, ok := o["display_position"]; ok {
				p.Position = str(pos)
			}
			if team, ok := o["editorial_team_abbr"]; ok {
				p.Team = str(team)
			}
			if status, ok := o["status"]; ok {
				p.InjuryStatus = str(status)
			}
		}
		if sp, ok := obj(part)["selected_position"]; ok {
			for _, item := range list(sp) {
				if pos, ok := obj(item)["position"]; ok {
					p.SelectedPosition = str(pos)
					p.Starting = !benchPositions[p.SelectedPosition]
				}
			}
		}
	}
	return p, p.Name != ""
}

// teamIdentity pulls the team key and first manager nickname out of a team
// record.
func teamIdentity(v any) (key, manager string) {
	for _, part := range list(v) {
		for _, item := range list(part) {
			o := obj(item)
			if k, ok := o["team_key"]; ok {
				key = str(k)
			}
			if mgrs, ok := o["managers"]; ok && manager == "" {
				for _, m := range list(mgrs) {
					if nick := str(obj(obj(m)["manager"])["nickname"]); nick != "" {
						manager = nick
						break
					}
				}
			}
		}
	}
	return key, manager
}

func teamPoints(v any) (float64, bool) {
	for _, part := range list(v) {
		tp, ok := obj(part)["team_points"]
		if !ok {
			continue
		}
		switch t := obj(tp)["total"].(type) {
		case string:
			f, err := strconv.ParseFloat(t, 64)
			return f, err == nil
		case float64:
			return t, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func decode(body []byte) (map[string]any, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decoding yahoo response: %w", err)
	}
	return root, nil
}

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

func field(m map[string]any, k string) any {
	return m[k]
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// indexed returns the numbered entries of a Yahoo collection in index order.
func indexed(m map[string]any) []any {
	type entry struct {
		i int
		v any
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		entries = append(entries, entry{i, v})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].i < entries[b].i })

	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.v
	}
	return out
}
