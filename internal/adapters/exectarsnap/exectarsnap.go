// Package exectarsnap provides an archive store adapter driving the tarsnap
// binary via exec.Command.
package exectarsnap

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/mcdonaldj/tarkeep/internal/logging"
	"github.com/mcdonaldj/tarkeep/internal/ports"
)

// listDateLayout is the timestamp format tarsnap prints in verbose
// --list-archives output.
const listDateLayout = "2006-01-02 15:04:05"

// ExecTarsnapStore implements ports.Store using exec.Command.
type ExecTarsnapStore struct {
	// tarsnapPath is the path to the tarsnap binary. Defaults to "tarsnap".
	tarsnapPath string
	// attempts and retryDelay control retries of failed invocations.
	// tarsnap is known to fail transiently (network, occasional segfault
	// during list), so each command is retried before giving up.
	attempts   int
	retryDelay time.Duration
	log        logging.Logger
	sleep      func(time.Duration)
}

// Option is a functional option for configuring ExecTarsnapStore.
type Option func(*ExecTarsnapStore)

// WithTarsnapPath sets a custom path to the tarsnap binary.
func WithTarsnapPath(path string) Option {
	return func(s *ExecTarsnapStore) {
		s.tarsnapPath = path
	}
}

// WithRetry sets how many times each tarsnap invocation is attempted and the
// delay between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *ExecTarsnapStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
		s.retryDelay = delay
	}
}

// WithLogger sets the logger used for warnings about skipped listing lines
// and retried invocations.
func WithLogger(log logging.Logger) Option {
	return func(s *ExecTarsnapStore) {
		s.log = log
	}
}

// New creates a new ExecTarsnapStore adapter.
func New(opts ...Option) *ExecTarsnapStore {
	s := &ExecTarsnapStore{
		tarsnapPath: "tarsnap",
		attempts:    5,
		retryDelay:  10 * time.Minute,
		log:         logging.StdLogger{},
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns archives whose names start with filter, newest first.
func (s *ExecTarsnapStore) List(filter string) ([]ports.Archive, error) {
	out, err := s.run("-v", "--list-archives")
	if err != nil {
		return nil, fmt.Errorf("tarsnap list-archives failed: %w", err)
	}
	return s.parseListing(string(out), filter), nil
}

// Create stores a new archive with the given name covering path.
func (s *ExecTarsnapStore) Create(name, path string) error {
	if _, err := s.run("-c", "-f", name, path); err != nil {
		return fmt.Errorf("tarsnap create %q failed: %w", name, err)
	}
	return nil
}

// Delete removes the named archive from the store.
func (s *ExecTarsnapStore) Delete(name string) error {
	if _, err := s.run("-d", "-f", name); err != nil {
		return fmt.Errorf("tarsnap delete %q failed: %w", name, err)
	}
	return nil
}

// run invokes tarsnap, retrying failed attempts with a delay in between.
func (s *ExecTarsnapStore) run(args ...string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			s.log.Info("retrying tarsnap %s in %s (attempt %d/%d)",
				args[0], s.retryDelay, attempt+1, s.attempts)
			s.sleep(s.retryDelay)
		}
		cmd := exec.Command(s.tarsnapPath, args...)
		out, err := cmd.Output()
		if err == nil {
			return out, nil
		}
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			lastErr = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
		} else {
			lastErr = err
		}
	}
	return nil, lastErr
}

// parseListing parses verbose list-archives output: one archive per line,
// name and creation timestamp separated by a tab. Lines whose timestamp does
// not parse are skipped with a warning so they are never considered for
// deletion.
func (s *ExecTarsnapStore) parseListing(out, filter string) []ports.Archive {
	var archives []ports.Archive
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, stamp, found := strings.Cut(line, "\t")
		if !strings.HasPrefix(name, filter) {
			continue
		}
		if !found {
			s.log.Warn("skipping archive %q: listing line has no timestamp", name)
			continue
		}
		t, err := time.Parse(listDateLayout, strings.TrimSpace(stamp))
		if err != nil {
			s.log.Warn("skipping archive %q: unparseable timestamp %q", name, stamp)
			continue
		}
		archives = append(archives, ports.Archive{Name: name, Time: t})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Time.After(archives[j].Time)
	})
	return archives
}

// Compile-time check that ExecTarsnapStore implements ports.Store.
var _ ports.Store = (*ExecTarsnapStore)(nil)
