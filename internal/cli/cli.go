// Package cli provides the command-line interface with injectable io.Writer for testing.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mcdonaldj/tarkeep/internal/adapters/exectarsnap"
	"github.com/mcdonaldj/tarkeep/internal/backup"
	"github.com/mcdonaldj/tarkeep/internal/config"
	"github.com/mcdonaldj/tarkeep/internal/logging"
	"github.com/mcdonaldj/tarkeep/internal/policy"
	"github.com/mcdonaldj/tarkeep/internal/ports"
	"github.com/mcdonaldj/tarkeep/internal/tui"
)

// ConfigService provides configuration operations for the CLI.
type ConfigService interface {
	Load() (*config.Config, error)
	Save(cfg *config.Config) error
	ConfigPath() string
	DefaultConfig() *config.Config
}

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable dependencies (nil means use defaults)
	ConfigSvc ConfigService
	Store     ports.Store
	Log       logging.Logger

	// Now is injectable for deterministic plan output in tests.
	Now func() time.Time

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		Now:     time.Now,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		gray:    color.New(color.FgHiBlack).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	exitCode := 0
	return &CLI{
		Out:     out,
		Err:     errOut,
		Version: "test",
		Args:    args,
		Exit:    func(code int) { exitCode = code; _ = exitCode },
		Log:     logging.Discard{},
		Now:     time.Now,
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		gray:    noColor,
		red:     noColor,
	}
}

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load() (*config.Config, error) { return config.Load() }
func (d *defaultConfigService) Save(cfg *config.Config) error { return cfg.Save() }
func (d *defaultConfigService) ConfigPath() string            { return config.ConfigPath() }
func (d *defaultConfigService) DefaultConfig() *config.Config { return config.DefaultConfig() }

// Helper methods to get the service or default
func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

func (c *CLI) log() logging.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logging.StdLogger{}
}

// store returns the injected store or builds the tarsnap adapter from config.
func (c *CLI) store(cfg *config.Config) ports.Store {
	if c.Store != nil {
		return c.Store
	}
	return exectarsnap.New(
		exectarsnap.WithTarsnapPath(cfg.TarsnapPath),
		exectarsnap.WithRetry(cfg.Retry.Attempts, cfg.RetryDelay()),
		exectarsnap.WithLogger(c.log()),
	)
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	if len(c.Args) < 2 {
		c.PrintUsage()
		return
	}

	switch c.Args[1] {
	case "run":
		c.RunBackup()
	case "plan":
		c.ShowPlan()
	case "list":
		c.ListArchives()
	case "ui":
		c.RunUI()
	case "init":
		c.InitConfig()
	case "version", "-v", "--version":
		fmt.Fprintf(c.Out, "tarkeep v%s\n", c.Version)
	case "help", "-h", "--help":
		c.PrintUsage()
	default:
		fmt.Fprintf(c.Err, "Unknown command: %s\n", c.Args[1])
		c.PrintUsage()
		c.Exit(1)
	}
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `tarkeep - Geometric Backup Retention for tarsnap

Usage:
  tarkeep run <target> [options]    Create a backup and prune expired archives
  tarkeep plan <base> [options]     Show the keep/prune plan without touching anything
  tarkeep list <base>               List archives for a base name
  tarkeep ui <base> [options]       Browse the retention plan interactively
  tarkeep init                      Create default config file
  tarkeep version, -v               Show version
  tarkeep help, -h                  Show this help

Options:
  --name=<base>      Archive base name (default: basename of target)
  --rules=<s:h,...>  Retention rules as spacing:horizon day pairs, ordered
                     newest horizon first; horizon -1 means unbounded
                     (default: 1:14,7:60,30:730,365:-1)
  --buffer=<min>     Skip the run if the newest archive is younger than this
  --delay=<sec>      Wait before creating the backup
  --dry-run          Compute and print the plan without creating or deleting

Config: ~/.tarkeep/config.yaml`)
}

// runFlags holds the parsed flags for run/plan/ui commands.
type runFlags struct {
	name   string
	rules  string
	buffer int // minutes
	delay  int // seconds
	dryRun bool
}

func (c *CLI) parseFlags(args []string) (runFlags, error) {
	var f runFlags
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--name="):
			f.name = strings.TrimPrefix(arg, "--name=")
		case strings.HasPrefix(arg, "--rules="):
			f.rules = strings.TrimPrefix(arg, "--rules=")
		case strings.HasPrefix(arg, "--buffer="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "--buffer="))
			if err != nil {
				return f, fmt.Errorf("invalid --buffer value: %q", arg)
			}
			f.buffer = n
		case strings.HasPrefix(arg, "--delay="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "--delay="))
			if err != nil {
				return f, fmt.Errorf("invalid --delay value: %q", arg)
			}
			f.delay = n
		case arg == "--dry-run":
			f.dryRun = true
		default:
			return f, fmt.Errorf("unknown option: %s", arg)
		}
	}
	return f, nil
}

// resolveRules picks the rule list: --rules flag, else config.
func (c *CLI) resolveRules(cfg *config.Config, flagRules string) ([]policy.Rule, error) {
	if flagRules != "" {
		return policy.ParseRules(flagRules)
	}
	return cfg.ParsedRules()
}

// InitConfig creates the default config file.
func (c *CLI) InitConfig() {
	svc := c.configSvc()
	cfg := svc.DefaultConfig()
	if err := svc.Save(cfg); err != nil {
		fmt.Fprintf(c.Err, "Error saving config: %v\n", err)
		c.Exit(1)
		return
	}
	fmt.Fprintf(c.Out, "Created config at %s\n", svc.ConfigPath())
}

// RunBackup runs the backup command: create a new archive, then prune.
func (c *CLI) RunBackup() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: tarkeep run <target> [--name=] [--rules=] [--buffer=] [--delay=] [--dry-run]")
		c.Exit(1)
		return
	}

	target := c.Args[2]
	flags, err := c.parseFlags(c.Args[3:])
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	rules, err := c.resolveRules(cfg, flags.rules)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	opts := backup.Options{
		Target: config.ExpandPath(target),
		Name:   flags.name,
		Rules:  rules,
		Buffer: time.Duration(flags.buffer) * time.Minute,
		Delay:  time.Duration(flags.delay) * time.Second,
		DryRun: flags.dryRun,
		Now:    c.Now,
	}

	result, err := backup.Run(c.store(cfg), c.log(), opts)
	c.printResult(result)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
	}
}

func (c *CLI) printResult(result backup.Result) {
	if result.Skipped {
		fmt.Fprintf(c.Out, "  %s %s\n", c.gray("-"), c.gray(result.Reason))
		return
	}

	if result.Archive != "" {
		fmt.Fprintf(c.Out, "  %s created %s\n", c.green("*"), result.Archive)
	}
	for _, name := range result.Pruned {
		fmt.Fprintf(c.Out, "  %s pruned %s\n", c.yellow("-"), name)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(c.Out, "  %s %s: %v\n", c.red("x"), f.Name, f.Err)
	}

	fmt.Fprintf(c.Out, "Done: %s kept, %s pruned",
		c.green(fmt.Sprintf("%d", len(result.Kept))),
		c.yellow(fmt.Sprintf("%d", len(result.Pruned))))
	if len(result.Failures) > 0 {
		fmt.Fprintf(c.Out, ", %s failed", c.red(fmt.Sprintf("%d", len(result.Failures))))
	}
	fmt.Fprintln(c.Out)
}

// ShowPlan prints the keep/prune partition for a base without side effects.
func (c *CLI) ShowPlan() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: tarkeep plan <base> [--rules=]")
		c.Exit(1)
		return
	}

	base := c.Args[2]
	flags, err := c.parseFlags(c.Args[3:])
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	rules, err := c.resolveRules(cfg, flags.rules)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	now := c.Now()
	plan, err := backup.Preview(c.store(cfg), base, rules, now)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	fmt.Fprintf(c.Out, "Plan for %s (%d rules):\n\n", c.cyan(base), len(rules))
	for _, a := range plan.Keep {
		fmt.Fprintf(c.Out, "  %s %s %s\n", c.green("keep "), a.Name, c.gray(formatAge(now, a.Time)))
	}
	for _, a := range plan.Prune {
		fmt.Fprintf(c.Out, "  %s %s %s\n", c.yellow("prune"), a.Name, c.gray(formatAge(now, a.Time)))
	}
	fmt.Fprintf(c.Out, "\n%s kept, %s to prune\n",
		c.green(fmt.Sprintf("%d", len(plan.Keep))),
		c.yellow(fmt.Sprintf("%d", len(plan.Prune))))
}

// ListArchives lists all archives for a base.
func (c *CLI) ListArchives() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: tarkeep list <base>")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	base := c.Args[2]
	archives, err := c.store(cfg).List(base)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	if len(archives) == 0 {
		fmt.Fprintf(c.Out, "No archives found for %s\n", base)
		return
	}

	fmt.Fprintf(c.Out, "Archives for %s:\n\n", c.cyan(base))
	fmt.Fprintf(c.Out, "  %-40s %s\n", "NAME", "CREATED")
	fmt.Fprintf(c.Out, "  %-40s %s\n", "----", "-------")
	for _, a := range archives {
		fmt.Fprintf(c.Out, "  %-40s %s\n", a.Name, a.Time.Format("2006-01-02 15:04:05"))
	}
}

// RunUI launches the interactive plan browser.
func (c *CLI) RunUI() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: tarkeep ui <base> [--rules=]")
		c.Exit(1)
		return
	}

	base := c.Args[2]
	flags, err := c.parseFlags(c.Args[3:])
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	rules, err := c.resolveRules(cfg, flags.rules)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	if err := tui.Run(c.store(cfg), base, rules); err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
	}
}

// formatAge renders an archive age for display, in days.
func formatAge(now, t time.Time) string {
	days := now.Sub(t).Hours() / 24
	if days < 1 {
		return fmt.Sprintf("(%.1fh old)", now.Sub(t).Hours())
	}
	return fmt.Sprintf("(%.1fd old)", days)
}
