// Package backup orchestrates one managed backup run: create a new archive,
// then prune existing archives that the retention policy no longer requires.
package backup

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mcdonaldj/tarkeep/internal/logging"
	"github.com/mcdonaldj/tarkeep/internal/policy"
	"github.com/mcdonaldj/tarkeep/internal/ports"
	"github.com/mcdonaldj/tarkeep/internal/retention"
)

// ArchiveDateLayout is the timestamp embedded in new archive names.
const ArchiveDateLayout = "2006-01-02_15h04m05s"

// ErrPartialDeletion marks a run where some prune candidates could not be
// deleted. The run completed otherwise; already-deleted archives stay
// deleted.
var ErrPartialDeletion = errors.New("some archives could not be deleted")

// Options configures a managed backup run.
type Options struct {
	Target string        // path to back up
	Name   string        // archive base name; defaults to the target's basename
	Rules  []policy.Rule // retention policy
	Buffer time.Duration // skip the run when the newest archive is younger than this
	Delay  time.Duration // wait before creating the archive
	DryRun bool          // report the plan without creating or deleting

	// Now and Sleep are injectable for tests. Nil means time.Now/time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// DeleteFailure records one archive that could not be deleted.
type DeleteFailure struct {
	Name string
	Err  error
}

// Result describes what a run did.
type Result struct {
	Base     string          // archive name prefix for this target
	Archive  string          // name of the created archive, empty when skipped or dry-run
	Skipped  bool            // run skipped entirely (buffer window)
	Reason   string          // why the run was skipped
	Kept     []ports.Archive // archives retained by the policy
	Pruned   []string        // archives deleted this run
	Failures []DeleteFailure // archives that failed to delete
}

// BaseName returns the archive name prefix for a target: the explicit name
// when given, otherwise the target path's basename.
func BaseName(target, name string) string {
	if name != "" {
		return name
	}
	return filepath.Base(target)
}

// ArchiveName builds the full name for a new archive of base at instant t.
func ArchiveName(base string, t time.Time) string {
	return fmt.Sprintf("%s: %s", base, t.Format(ArchiveDateLayout))
}

// Run performs one create-then-prune pass against the store.
//
// The rule list is validated before any store interaction. Archive creation
// failure aborts the run before anything is deleted: pruning without a fresh
// backup would shrink the safety margin. Individual deletion failures are
// logged and skipped; the run then returns ErrPartialDeletion so the caller
// exits non-zero, but successful deletions are not rolled back.
func Run(store ports.Store, log logging.Logger, opts Options) (Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	sleep := time.Sleep
	if opts.Sleep != nil {
		sleep = opts.Sleep
	}

	result := Result{Base: BaseName(opts.Target, opts.Name)}

	if err := policy.Validate(opts.Rules); err != nil {
		return result, err
	}

	if opts.Buffer > 0 {
		archives, err := store.List(result.Base)
		if err != nil {
			return result, fmt.Errorf("listing archives: %w", err)
		}
		if len(archives) > 0 {
			newest := archives[0]
			if age := now().Sub(newest.Time); age < opts.Buffer {
				result.Skipped = true
				result.Reason = fmt.Sprintf("last backup %s is %s old, within buffer of %s",
					newest.Name, age.Round(time.Second), opts.Buffer)
				log.Info("%s", result.Reason)
				return result, nil
			}
		}
	}

	if opts.Delay > 0 && !opts.DryRun {
		sleep(opts.Delay)
	}

	if !opts.DryRun {
		name := ArchiveName(result.Base, now())
		log.Info("creating archive %s for %s", name, opts.Target)
		if err := store.Create(name, opts.Target); err != nil {
			return result, fmt.Errorf("creating archive %q: %w", name, err)
		}
		result.Archive = name
	}

	archives, err := store.List(result.Base)
	if err != nil {
		return result, fmt.Errorf("listing archives: %w", err)
	}

	plan := retention.Evaluate(archives, now(), opts.Rules)
	result.Kept = plan.Keep

	if opts.DryRun {
		for _, a := range plan.Prune {
			result.Pruned = append(result.Pruned, a.Name)
		}
		return result, nil
	}

	for _, a := range plan.Prune {
		if err := store.Delete(a.Name); err != nil {
			log.Error("deleting archive %s: %v", a.Name, err)
			result.Failures = append(result.Failures, DeleteFailure{Name: a.Name, Err: err})
			continue
		}
		log.Info("deleted expired archive %s", a.Name)
		result.Pruned = append(result.Pruned, a.Name)
	}

	if len(result.Failures) > 0 {
		return result, fmt.Errorf("%w: %d of %d", ErrPartialDeletion,
			len(result.Failures), len(plan.Prune))
	}
	return result, nil
}

// Preview lists the store and evaluates the policy without creating or
// deleting anything.
func Preview(store ports.Store, base string, rules []policy.Rule, now time.Time) (retention.Plan, error) {
	if err := policy.Validate(rules); err != nil {
		return retention.Plan{}, err
	}
	archives, err := store.List(base)
	if err != nil {
		return retention.Plan{}, fmt.Errorf("listing archives: %w", err)
	}
	return retention.Evaluate(archives, now, rules), nil
}
