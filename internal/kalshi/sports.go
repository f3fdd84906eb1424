package kalshi

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// SuperBowlSeries is the pro football championship series.
const SuperBowlSeries = "KXSB"

// PropSeries is one NFL prop category and how many markets the static
// wagers page shows for it.
type PropSeries struct {
	Name   string
	Ticker string
	Limit  int
}

var NFLPropSeries = []PropSeries{
	{"spread", "KXNFLSPREAD", 10},
	{"total", "KXNFLTOTAL", 10},
	{"team_total", "KXNFLTEAMTOTAL", 10},
	{"first_td", "KXNFLFIRSTTD", 15},
	{"anytime_td", "KXNFLANYTD", 15},
	{"passing_yards", "KXNFLPASSYDS", 10},
	{"rushing_yards", "KXNFLRUSHYDS", 10},
	{"receiving_yards", "KXNFLRECYDS", 10},
}

// ActiveByVolume keeps active markets, busiest first.
func ActiveByVolume(markets []Market) []Market {
	out := make([]Market, 0, len(markets))
	for _, m := range markets {
		if m.Status == "active" {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume > out[j].Volume
	})
	return out
}

// Championship returns the active Super Bowl markets by volume.
func (c *Client) Championship(ctx context.Context) ([]Market, error) {
	page, err := c.Markets(ctx, MarketsQuery{SeriesTicker: SuperBowlSeries, Limit: 100})
	if err != nil {
		return nil, err
	}
	return ActiveByVolume(page.Markets), nil
}

// NFLProps fetches every prop category. A failing category is logged and
// left empty so one bad series does not sink the rest.
func (c *Client) NFLProps(ctx context.Context) map[string][]Market {
	props := make(map[string][]Market, len(NFLPropSeries))
	for _, s := range NFLPropSeries {
		page, err := c.Markets(ctx, MarketsQuery{SeriesTicker: s.Ticker, Limit: 100})
		if err != nil {
			c.Log.WithFields(logrus.Fields{"series": s.Ticker, "error": err}).Warn("fetching props failed")
			props[s.Name] = []Market{}
			continue
		}
		props[s.Name] = ActiveByVolume(page.Markets)
	}
	return props
}

// Snapshot is the WAGERS_DATA object the static wagers page reads.
type Snapshot struct {
	Championship []Market
	Props        map[string][]Market
	Updated      time.Time
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"championship": nonNil(s.Championship),
		"updated":      s.Updated.UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	}
	for _, p := range NFLPropSeries {
		markets := s.Props[p.Name]
		if len(markets) > p.Limit {
			markets = markets[:p.Limit]
		}
		out[p.Name] = nonNil(markets)
	}
	return json.Marshal(out)
}

// MarketCount is the number of markets the snapshot will publish.
func (s Snapshot) MarketCount() int {
	n := len(s.Championship)
	for _, p := range NFLPropSeries {
		n += min(len(s.Props[p.Name]), p.Limit)
	}
	return n
}

func nonNil(m []Market) []Market {
	if m == nil {
		return []Market{}
	}
	return m
}
