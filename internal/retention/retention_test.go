package retention

import (
	"fmt"
	"testing"
	"time"

	"github.com/mcdonaldj/tarkeep/internal/policy"
	"github.com/mcdonaldj/tarkeep/internal/ports"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// archiveAt builds an archive whose age relative to testNow is the given
// number of days.
func archiveAt(ageDays float64) ports.Archive {
	return ports.Archive{
		Name: fmt.Sprintf("host: age-%v", ageDays),
		Time: testNow.Add(-time.Duration(ageDays * 24 * float64(time.Hour))),
	}
}

func archivesAt(ages ...float64) []ports.Archive {
	archives := make([]ports.Archive, len(ages))
	for i, age := range ages {
		archives[i] = archiveAt(age)
	}
	return archives
}

func keptAges(plan Plan) map[float64]bool {
	ages := make(map[float64]bool)
	for _, a := range plan.Keep {
		ages[testNow.Sub(a.Time).Hours()/24] = true
	}
	return ages
}

// Regression trace for the documented example: rules 1:7,7:30,30:-1 against
// archives aged 0,1,2,8,15,40,100 days. Walking newest to oldest with
// inclusive spacing: 0 anchors; 1 and 2 are a full day from the previous
// kept; 8 is only 6 days past 2 against a 7-day spacing; 15 is 13 days past
// 2; 40 is 25 days past 15 against a 30-day spacing; 100 is 85 days past 15.
func TestEvaluateScenario(t *testing.T) {
	rules, err := policy.ParseRules("1:7,7:30,30:-1")
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}

	ages := []float64{0, 1, 2, 8, 15, 40, 100}
	plan := Evaluate(archivesAt(ages...), testNow, rules)

	expectedKeep := map[float64]bool{0: true, 1: true, 2: true, 15: true, 100: true}
	kept := keptAges(plan)

	for _, age := range ages {
		if kept[age] != expectedKeep[age] {
			t.Errorf("age %v: kept = %v, expected %v", age, kept[age], expectedKeep[age])
		}
	}
	if len(plan.Keep)+len(plan.Prune) != len(ages) {
		t.Errorf("keep %d + prune %d != %d archives",
			len(plan.Keep), len(plan.Prune), len(ages))
	}
}

func TestEvaluateNewestAlwaysKept(t *testing.T) {
	plans := []Plan{
		Evaluate(archivesAt(0, 0.1, 0.2), testNow, policy.DefaultRules),
		Evaluate(archivesAt(0), testNow, policy.DefaultRules),
		Evaluate(archivesAt(5, 6, 7), testNow, policy.DefaultRules),
	}
	newest := []float64{0, 0, 5}

	for i, plan := range plans {
		if len(plan.Keep) == 0 {
			t.Fatalf("plan %d kept nothing", i)
		}
		age := testNow.Sub(plan.Keep[0].Time).Hours() / 24
		if age != newest[i] {
			t.Errorf("plan %d: newest kept age = %v, expected %v", i, age, newest[i])
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	archives := archivesAt(0, 0.5, 1, 3, 9, 20, 45, 200, 900)

	first := Evaluate(archives, testNow, policy.DefaultRules)
	second := Evaluate(archives, testNow, policy.DefaultRules)

	if len(first.Keep) != len(second.Keep) || len(first.Prune) != len(second.Prune) {
		t.Fatalf("plans differ: (%d,%d) vs (%d,%d)",
			len(first.Keep), len(first.Prune), len(second.Keep), len(second.Prune))
	}
	for i := range first.Keep {
		if first.Keep[i] != second.Keep[i] {
			t.Errorf("keep[%d] differs: %v vs %v", i, first.Keep[i], second.Keep[i])
		}
	}
	for i := range first.Prune {
		if first.Prune[i] != second.Prune[i] {
			t.Errorf("prune[%d] differs: %v vs %v", i, first.Prune[i], second.Prune[i])
		}
	}
}

// With an unbounded final rule every archive is covered: nothing is pruned
// for being past all horizons, only for spacing.
func TestEvaluateUnboundedCoverage(t *testing.T) {
	rules := []policy.Rule{
		{Spacing: 1, Horizon: policy.Bounded(7)},
		{Spacing: 30, Horizon: policy.Unbounded()},
	}

	// A lone ancient archive is still protected.
	plan := Evaluate(archivesAt(5000), testNow, rules)
	if len(plan.Keep) != 1 || len(plan.Prune) != 0 {
		t.Errorf("lone ancient archive: keep %d prune %d, expected 1/0",
			len(plan.Keep), len(plan.Prune))
	}
}

// Without an unbounded rule, archives past the final horizon are pruned
// regardless of spacing, and they do not advance the last-kept instant.
func TestEvaluateAgedOut(t *testing.T) {
	rules := []policy.Rule{{Spacing: 1, Horizon: policy.Bounded(7)}}

	plan := Evaluate(archivesAt(0, 1, 100, 400), testNow, rules)

	kept := keptAges(plan)
	if !kept[0] || !kept[1] {
		t.Errorf("in-horizon archives not kept: %v", kept)
	}
	if kept[100] || kept[400] {
		t.Errorf("aged-out archives kept: %v", kept)
	}
	if len(plan.Prune) != 2 {
		t.Errorf("prune count = %d, expected 2", len(plan.Prune))
	}
}

// An aged-out archive in the middle of the walk must not act as a spacing
// anchor for older covered archives.
func TestEvaluateAgedOutDoesNotAnchor(t *testing.T) {
	// Only ages in (20, 30] are aged out.
	rules := []policy.Rule{
		{Spacing: 1, Horizon: policy.Bounded(20)},
	}

	plan := Evaluate(archivesAt(0, 25), testNow, rules)
	kept := keptAges(plan)
	if !kept[0] {
		t.Errorf("age 0 not kept")
	}
	if kept[25] {
		t.Errorf("age 25 kept despite exceeding every horizon")
	}
}

// Increasing a spacing is strictly stricter: the kept set can only shrink.
func TestEvaluateSpacingMonotonicity(t *testing.T) {
	archives := archivesAt(0, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55)

	for spacing := 1; spacing <= 5; spacing++ {
		loose := []policy.Rule{{Spacing: spacing, Horizon: policy.Unbounded()}}
		strict := []policy.Rule{{Spacing: spacing + 1, Horizon: policy.Unbounded()}}

		looseKept := keptAges(Evaluate(archives, testNow, loose))
		strictKept := keptAges(Evaluate(archives, testNow, strict))

		for age := range strictKept {
			if !looseKept[age] {
				t.Errorf("spacing %d->%d: age %v kept under stricter rules only",
					spacing, spacing+1, age)
			}
		}
		if len(strictKept) > len(looseKept) {
			t.Errorf("spacing %d->%d: kept set grew from %d to %d",
				spacing, spacing+1, len(looseKept), len(strictKept))
		}
	}
}

// Input order must not matter: the evaluator sorts internally.
func TestEvaluateUnsortedInput(t *testing.T) {
	shuffled := archivesAt(40, 0, 100, 2, 15, 1, 8)
	ordered := archivesAt(0, 1, 2, 8, 15, 40, 100)
	rules, err := policy.ParseRules("1:7,7:30,30:-1")
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}

	a := keptAges(Evaluate(shuffled, testNow, rules))
	b := keptAges(Evaluate(ordered, testNow, rules))
	if len(a) != len(b) {
		t.Fatalf("kept %d vs %d archives", len(a), len(b))
	}
	for age := range b {
		if !a[age] {
			t.Errorf("age %v kept only for sorted input", age)
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	plan := Evaluate(nil, testNow, policy.DefaultRules)
	if len(plan.Keep) != 0 || len(plan.Prune) != 0 {
		t.Errorf("empty listing produced non-empty plan: %+v", plan)
	}
}
