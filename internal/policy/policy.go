// Package policy defines geometric retention rules: how far apart kept
// backups must be, by age bracket.
package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRules is wrapped by all rule validation and parse errors.
var ErrInvalidRules = errors.New("invalid retention rules")

// Horizon is the age threshold, in days, up to which a rule applies.
// An unbounded horizon covers every age beyond the previous rule.
type Horizon struct {
	Days      int // meaningful only when Unbounded is false
	Unbounded bool
}

// Bounded returns a horizon covering ages up to and including days.
func Bounded(days int) Horizon {
	return Horizon{Days: days}
}

// Unbounded returns a horizon with no upper age limit.
func Unbounded() Horizon {
	return Horizon{Unbounded: true}
}

// Covers reports whether an archive of the given age in days falls under
// this horizon. The boundary is inclusive: age == Days is covered.
func (h Horizon) Covers(ageDays float64) bool {
	return h.Unbounded || ageDays <= float64(h.Days)
}

func (h Horizon) String() string {
	if h.Unbounded {
		return "unbounded"
	}
	return fmt.Sprintf("%dd", h.Days)
}

// Rule pairs a minimum spacing between kept backups with the age horizon
// up to which that spacing applies.
type Rule struct {
	Spacing int // days, positive
	Horizon Horizon
}

func (r Rule) String() string {
	return fmt.Sprintf("every %dd up to %s", r.Spacing, r.Horizon)
}

// DefaultRules is the built-in policy: daily backups for two weeks, weekly
// for two months, monthly for two years, then yearly forever.
var DefaultRules = []Rule{
	{Spacing: 1, Horizon: Bounded(14)},
	{Spacing: 7, Horizon: Bounded(60)},
	{Spacing: 30, Horizon: Bounded(730)},
	{Spacing: 365, Horizon: Unbounded()},
}

// Validate checks a rule list for use by the retention evaluator. Rules must
// be ordered by horizon, newest bracket first; spacings must be positive; at
// most one unbounded rule is allowed and it must be last.
func Validate(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: empty rule list", ErrInvalidRules)
	}
	prev := -1
	for i, r := range rules {
		if r.Spacing <= 0 {
			return fmt.Errorf("%w: rule %d has non-positive spacing %d", ErrInvalidRules, i, r.Spacing)
		}
		if r.Horizon.Unbounded {
			if i != len(rules)-1 {
				return fmt.Errorf("%w: unbounded rule must be last (rule %d)", ErrInvalidRules, i)
			}
			continue
		}
		if r.Horizon.Days < 0 {
			return fmt.Errorf("%w: rule %d has negative horizon %d", ErrInvalidRules, i, r.Horizon.Days)
		}
		if r.Horizon.Days < prev {
			return fmt.Errorf("%w: horizons must be non-decreasing (rule %d: %d after %d)", ErrInvalidRules, i, r.Horizon.Days, prev)
		}
		prev = r.Horizon.Days
	}
	return nil
}

// SpacingAt returns the operative spacing in days for an archive of the
// given age: the spacing of the first rule whose horizon covers the age.
// ok is false when the age is beyond every horizon, meaning no rule
// protects the archive at all.
func SpacingAt(rules []Rule, ageDays float64) (spacing int, ok bool) {
	for _, r := range rules {
		if r.Horizon.Covers(ageDays) {
			return r.Spacing, true
		}
	}
	return 0, false
}

// ParseRules parses the external "spacing:horizon,..." encoding used by the
// CLI and config file, where a horizon of -1 denotes unbounded. The sentinel
// exists only in this string form; parsed rules carry an explicit Horizon.
// The result is validated.
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spacingStr, horizonStr, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("%w: %q is not spacing:horizon", ErrInvalidRules, part)
		}
		spacing, err := strconv.Atoi(strings.TrimSpace(spacingStr))
		if err != nil {
			return nil, fmt.Errorf("%w: bad spacing in %q", ErrInvalidRules, part)
		}
		horizon, err := strconv.Atoi(strings.TrimSpace(horizonStr))
		if err != nil {
			return nil, fmt.Errorf("%w: bad horizon in %q", ErrInvalidRules, part)
		}
		r := Rule{Spacing: spacing}
		if horizon == -1 {
			r.Horizon = Unbounded()
		} else {
			r.Horizon = Bounded(horizon)
		}
		rules = append(rules, r)
	}
	if err := Validate(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// FormatRules renders rules back into the spacing:horizon string encoding.
func FormatRules(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		horizon := -1
		if !r.Horizon.Unbounded {
			horizon = r.Horizon.Days
		}
		parts[i] = fmt.Sprintf("%d:%d", r.Spacing, horizon)
	}
	return strings.Join(parts, ",")
}
