// internal/league/logic.go
package league

import (
	"fmt"
	"io"
	"sort"
)

// Validate reports whether every rank in a league of the given size gets a
// whole-number payout.
func (s Scale) Validate(members int) error {
	if s.Step <= 0 {
		return fmt.Errorf("step %d: %w", s.Step, ErrInvalidStep)
	}
	if members < 1 {
		return fmt.Errorf("league size %d: must be positive", members)
	}
	if s.Step%2 != 0 && members%2 == 0 {
		return fmt.Errorf("step %d, %d members: %w", s.Step, members, ErrUnevenScale)
	}
	return nil
}

// ForRank returns the payout for a rank in [1, members]. ok is false for
// ranks outside that range or when the scale is invalid for the league size.
func (s Scale) ForRank(rank, members int) (payout int, ok bool) {
	if rank < 1 || rank > members {
		return 0, false
	}
	if s.Validate(members) != nil {
		return 0, false
	}
	// p(r) = -p(N+1-r) and p(r) - p(r+1) = Step, so the ladder sums to zero.
	return s.Step * (members + 1 - 2*rank) / 2, true
}

// PayoutForRank is DefaultScale.ForRank.
func PayoutForRank(rank, members int) (int, bool) {
	return DefaultScale.ForRank(rank, members)
}

// SidebetPayout returns the payout for a rank in the full 14-member league.
func SidebetPayout(rank int) (int, bool) {
	return PayoutForRank(rank, LeagueSize)
}

// Rank orders members by descending points, ties going to the member whose
// name sorts first. Missing entries count as zero.
func Rank(points map[string]float64, members []string) []string {
	entries := make([]ranked, 0, len(members))
	for _, m := range members {
		entries = append(entries, ranked{member: m, points: points[m]})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.points != b.points {
			return a.points > b.points
		}
		return a.member < b.member
	})

	order := make([]string, len(entries))
	for i, e := range entries {
		order[i] = e.member
	}
	return order
}

// WeekScores extracts one week from the table, zero-filling missing members.
func WeekScores(points WeeklyPoints, week int) map[string]float64 {
	scores := make(map[string]float64, len(points))
	for m, weeks := range points {
		scores[m] = weeks[week]
	}
	return scores
}

// WeeklySidebets ranks every member of the table for the week and maps each
// one to the payout for their rank. A scale that cannot pay this league size
// is an error, never a table of zeros.
func (s Scale) WeeklySidebets(points WeeklyPoints, week int) (Payouts, error) {
	order := Rank(WeekScores(points, week), Members(points))
	n := len(order)
	if n == 0 {
		return Payouts{}, nil
	}
	if err := s.Validate(n); err != nil {
		return nil, err
	}

	out := make(Payouts, n)
	for i, m := range order {
		out[m], _ = s.ForRank(i+1, n)
	}
	return out, nil
}

// WeeklySidebets is DefaultScale.WeeklySidebets.
func WeeklySidebets(points WeeklyPoints, week int) Payouts {
	// an even step is valid for every league size
	out, _ := DefaultScale.WeeklySidebets(points, week)
	return out
}

// SeasonTotalPoints sums a member's weekly points.
func SeasonTotalPoints(weeks map[int]float64) float64 {
	total := 0.0
	for _, p := range weeks {
		total += p
	}
	return total
}

// SeasonTotalSidebets sums a member's weekly payouts.
func SeasonTotalSidebets(weeks map[int]int) int {
	total := 0
	for _, p := range weeks {
		total += p
	}
	return total
}

// LowManCount counts the weeks a member finished last.
func (s Scale) LowManCount(weeks map[int]int, members int) int {
	worst, ok := s.ForRank(members, members)
	if !ok {
		return 0
	}
	count := 0
	for _, p := range weeks {
		if p == worst {
			count++
		}
	}
	return count
}

// LowManCount is DefaultScale.LowManCount.
func LowManCount(weeks map[int]int, members int) int {
	return DefaultScale.LowManCount(weeks, members)
}

// PointsRank assigns 1..N by descending season total, name ascending on ties.
func PointsRank(totals map[string]float64) map[string]int {
	members := make([]string, 0, len(totals))
	for m := range totals {
		members = append(members, m)
	}
	ranks := make(map[string]int, len(members))
	for i, m := range Rank(totals, members) {
		ranks[m] = i + 1
	}
	return ranks
}

// Members returns the table's members in name order.
func Members(points WeeklyPoints) []string {
	members := make([]string, 0, len(points))
	for m := range points {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

// Weeks returns every week that has at least one score, ascending.
func Weeks(points WeeklyPoints) []int {
	seen := make(map[int]bool)
	for _, weeks := range points {
		for w := range weeks {
			seen[w] = true
		}
	}
	out := make([]int, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

// PlayedWeeks is Weeks without the weeks where every score is zero. Yahoo
// reports unplayed weeks as all-zero scoreboards.
func PlayedWeeks(points WeeklyPoints) []int {
	var out []int
	for _, w := range Weeks(points) {
		for _, weeks := range points {
			if weeks[w] != 0 {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

// Season derives the full standings from the raw weekly table. Nothing is
// carried over between calls. Weeks nobody has played yet pay nothing.
func (s Scale) Season(points WeeklyPoints) ([]Standing, error) {
	members := Members(points)
	n := len(members)
	if n == 0 {
		return []Standing{}, nil
	}
	if err := s.Validate(n); err != nil {
		return nil, err
	}

	// 1) Per-week payouts
	sidebets := make(map[string]map[int]int, n)
	for _, m := range members {
		sidebets[m] = make(map[int]int)
	}
	for _, w := range PlayedWeeks(points) {
		payouts, err := s.WeeklySidebets(points, w)
		if err != nil {
			return nil, err
		}
		for m, p := range payouts {
			sidebets[m][w] = p
		}
	}

	// 2) Totals
	totals := make(map[string]float64, n)
	for _, m := range members {
		totals[m] = SeasonTotalPoints(points[m])
	}
	ranks := PointsRank(totals)

	// 3) Assemble
	standings := make([]Standing, 0, n)
	for _, m := range members {
		standings = append(standings, Standing{
			Member:        m,
			TotalPoints:   totals[m],
			PointsRank:    ranks[m],
			TotalSidebets: SeasonTotalSidebets(sidebets[m]),
			LowManCount:   s.LowManCount(sidebets[m], n),
			Sidebets:      sidebets[m],
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		return standings[i].PointsRank < standings[j].PointsRank
	})
	return standings, nil
}

// Season is DefaultScale.Season.
func Season(points WeeklyPoints) []Standing {
	// an even step is valid for every league size
	table, _ := DefaultScale.Season(points)
	return table
}

func PrintStandings(w io.Writer, label string, table []Standing) {
	fmt.Fprintln(w, label)
	fmt.Fprintf(w, "%-5s %-10s %10s %9s %7s",
		"Rank", "Member", "Points", "Sidebets", "LowMan")
	for _, s := range table {
		fmt.Fprintf(w, "\n%-5s %-10s %10s %9s %7d",
			Ordinal(s.PointsRank),
			s.Member,
			FormatPoints(s.TotalPoints),
			FormatDelta(s.TotalSidebets),
			s.LowManCount,
		)
	}
	fmt.Fprintln(w)
}
