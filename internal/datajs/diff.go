package datajs

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/warriorpoets/league-stats/internal/league"
)

// Change is one weekly score that differs between two tables. Old is nil
// when the score is new.
type Change struct {
	Member string
	Week   int
	Old    *float64
	New    float64
}

func (c Change) String() string {
	old := "NEW"
	if c.Old != nil {
		old = formatFloat(*c.Old)
	}
	return fmt.Sprintf("%s Week %d: %s → %s", c.Member, c.Week, old, formatFloat(c.New))
}

// Diff lists the scores in next that are new or changed relative to prev,
// ordered by member then week. Scores dropped from next are not reported.
func Diff(prev, next league.WeeklyPoints) []Change {
	var changes []Change
	for member, weeks := range next {
		for w, v := range weeks {
			old, ok := prev[member][w]
			switch {
			case !ok:
				changes = append(changes, Change{Member: member, Week: w, New: v})
			case old != v:
				o := old
				changes = append(changes, Change{Member: member, Week: w, Old: &o, New: v})
			}
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Member != changes[j].Member {
			return changes[i].Member < changes[j].Member
		}
		return changes[i].Week < changes[j].Week
	})
	return changes
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
