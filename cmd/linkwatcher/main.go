package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/linkwatcher/internal/config"
	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
	"github.com/standardbeagle/linkwatcher/internal/logging"
	"github.com/standardbeagle/linkwatcher/internal/service"
	"github.com/standardbeagle/linkwatcher/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "linkwatcher",
		Usage:                  "Keep links between project files intact while files move",
		Version:                version.FullInfo(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "project-root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: .linkwatcher.{kdl,toml,yaml,json} in the project root)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report link updates without writing files",
			},
			&cli.BoolFlag{
				Name:  "no-initial-scan",
				Usage: "Skip the initial project scan",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "DEBUG, INFO, WARNING, ERROR or CRITICAL (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "Write logs to a timestamped file in this directory instead of stderr",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Emit logs as JSON",
			},
		},
		Action: watchCommand,
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "Scan the project and report broken links",
				Action: checkCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
					&cli.StringSliceFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "Only report links of these kinds (e.g. markdown, markdown-inline, python-import)",
					},
				},
			},
			{
				Name:   "scan",
				Usage:  "Scan the project once and print statistics",
				Action: scanCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management commands",
				Subcommands: []*cli.Command{
					{
						Name:    "init",
						Aliases: []string{"i"},
						Usage:   "Initialize a configuration file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "format",
								Aliases: []string{"f"},
								Usage:   "Output format: kdl, toml, yaml, json",
								Value:   "kdl",
							},
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file path (default: .linkwatcher.<format> in the project root)",
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite existing configuration file",
							},
						},
						Action: configInitCommand,
					},
					{
						Name:    "show",
						Aliases: []string{"s"},
						Usage:   "Show current configuration values",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "format",
								Aliases: []string{"f"},
								Usage:   "Output format: kdl, toml, yaml, json",
								Value:   "kdl",
							},
						},
						Action: configShowCommand,
					},
					{
						Name:    "validate",
						Aliases: []string{"v"},
						Usage:   "Validate configuration file",
						Action:  configValidateCommand,
					},
				},
			},
		},
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("project-root")

	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		dir := root
		if dir == "" {
			dir = "."
		}
		cfg, err = config.Discover(dir)
	}
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("configuration error: %v", err), 1)
	}

	if root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("failed to resolve root path %q: %v", root, err), 1)
		}
		cfg.ProjectRoot = absRoot
	}
	if c.Bool("dry-run") {
		cfg.DryRunMode = true
	}
	if c.Bool("no-initial-scan") {
		cfg.InitialScanEnabled = false
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// newLogger builds the root logger. The returned closer releases the log file.
func newLogger(c *cli.Context, cfg *config.Config) (*slog.Logger, func(), error) {
	var out io.Writer = c.App.ErrWriter
	if out == nil {
		out = os.Stderr
	}
	closer := func() {}

	if dir := c.String("log-dir"); dir != "" {
		f, _, err := logging.OpenLogFile(dir)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closer = func() { _ = f.Close() }
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Quiet:  c.Bool("quiet"),
		Output: out,
		JSON:   c.Bool("log-json"),
	})
	if err != nil {
		closer()
		return nil, nil, cli.Exit(fmt.Sprintf("configuration error: %v", lwerrors.NewConfigError("log_level", cfg.LogLevel, err)), 1)
	}
	return logger, closer, nil
}

// newService loads config, logger and service. Startup failures exit with 1.
func newService(c *cli.Context) (*service.Service, func(), error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, nil, err
	}
	logger, closer, err := newLogger(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.New(cfg, logger)
	if err != nil {
		closer()
		switch {
		case errors.Is(err, lwerrors.ErrConfigInvalid):
			return nil, nil, cli.Exit(fmt.Sprintf("configuration error: %v", err), 1)
		case errors.Is(err, lwerrors.ErrRootInvalid):
			return nil, nil, cli.Exit(fmt.Sprintf("invalid project root: %v", err), 1)
		default:
			return nil, nil, cli.Exit(err.Error(), 1)
		}
	}
	return svc, closer, nil
}

func watchCommand(c *cli.Context) error {
	svc, closer, err := newService(c)
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.App.Writer, "Watching %s (Ctrl+C to stop)\n", svc.Root())
	if err := svc.Run(ctx); err != nil {
		svc.Stop()
		return cli.Exit(fmt.Sprintf("fatal: %v", err), 1)
	}
	printStats(c.App.Writer, svc)
	return nil
}

func scanCommand(c *cli.Context) error {
	svc, closer, err := newService(c)
	if err != nil {
		return err
	}
	defer closer()
	defer svc.Stop()

	if err := svc.Scan(contextOf(c)); err != nil {
		return cli.Exit(fmt.Sprintf("scan failed: %v", err), 1)
	}
	printStats(c.App.Writer, svc)
	return nil
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
