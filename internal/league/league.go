package league

import "errors"

// LeagueSize is the member count the default payout scale is calibrated for.
const LeagueSize = 14

// ErrUnevenScale is returned when a scale cannot produce whole-number payouts
// for the given league size.
var ErrUnevenScale = errors.New("payout scale does not divide evenly for league size")

// ErrInvalidStep is returned for a scale whose step is not positive.
var ErrInvalidStep = errors.New("payout step must be positive")

// WeeklyPoints maps member -> week (1-based) -> fantasy points.
type WeeklyPoints map[string]map[int]float64

// Payouts maps member -> sidebet payout for a single week.
type Payouts map[string]int

// Scale configures the payout ladder. Step is the difference between two
// adjacent ranks.
type Scale struct {
	Step int
}

// DefaultScale pays 65, 55, ... -65 in a 14-member league.
var DefaultScale = Scale{Step: 10}

// Standing holds the season aggregate for one member.
type Standing struct {
	Member        string      `json:"member"`
	TotalPoints   float64     `json:"totalPoints"`
	PointsRank    int         `json:"pointsRank"`
	TotalSidebets int         `json:"totalSidebets"`
	LowManCount   int         `json:"lowManCount"`
	Sidebets      map[int]int `json:"sidebets"`
}

type ranked struct {
	member string
	points float64
}
