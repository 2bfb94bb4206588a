// Package retention classifies existing archives into keep and prune sets
// according to a geometric spacing policy.
package retention

import (
	"sort"
	"time"

	"github.com/mcdonaldj/tarkeep/internal/policy"
	"github.com/mcdonaldj/tarkeep/internal/ports"
)

// Plan is the partition of an archive listing into survivors and prune
// candidates. It is recomputed from the live listing on every run; nothing
// is persisted between invocations.
type Plan struct {
	Keep  []ports.Archive
	Prune []ports.Archive
}

const dayHours = 24

// Evaluate walks archives from newest to oldest and decides which survive.
//
// The newest rule-covered archive anchors the walk and is always kept. Each
// older archive is kept when the gap to the last kept archive is at least the
// operative spacing for its age (inclusive, so an exact-boundary gap keeps
// the newer archive). Archives older than every rule horizon are pruned
// unconditionally and do not advance the last-kept instant.
//
// Only adjacent-kept spacing is guaranteed; the walk is greedy and does not
// optimize long-range gaps.
func Evaluate(archives []ports.Archive, now time.Time, rules []policy.Rule) Plan {
	sorted := make([]ports.Archive, len(archives))
	copy(sorted, archives)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.After(sorted[j].Time)
	})

	var plan Plan
	var lastKept time.Time
	anchored := false

	for _, a := range sorted {
		age := now.Sub(a.Time).Hours() / dayHours
		spacing, covered := policy.SpacingAt(rules, age)
		if !covered {
			// Aged out past every horizon: no rule protects it.
			plan.Prune = append(plan.Prune, a)
			continue
		}
		if !anchored {
			plan.Keep = append(plan.Keep, a)
			lastKept = a.Time
			anchored = true
			continue
		}
		elapsed := lastKept.Sub(a.Time).Hours() / dayHours
		if elapsed >= float64(spacing) {
			plan.Keep = append(plan.Keep, a)
			lastKept = a.Time
		} else {
			plan.Prune = append(plan.Prune, a)
		}
	}

	return plan
}
