package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/batch"
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/discover"
	"github.com/galkepler/snbbsched/internal/inspect"
	"github.com/galkepler/snbbsched/internal/lock"
	"github.com/galkepler/snbbsched/internal/manifest"
	"github.com/galkepler/snbbsched/internal/monitor"
	"github.com/galkepler/snbbsched/internal/retry"
	"github.com/galkepler/snbbsched/internal/rules"
	"github.com/galkepler/snbbsched/internal/scaffold"
	"github.com/galkepler/snbbsched/internal/scheduler"
	"github.com/galkepler/snbbsched/internal/statestore"
	"github.com/galkepler/snbbsched/internal/ux"
)

const defaultConfigPath = ".scheduler/config.yaml"

func main() {
	app := &cli.Command{
		Name:  "snbbsched",
		Usage: "Declarative rule-based scheduler for a multi-stage neuroimaging pipeline",
		Commands: []*cli.Command{
			initCmd(),
			runCmd(),
			manifestCmd(),
			statusCmd(),
			monitorCmd(),
			retryCmd(),
			inspectCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{Name: "config", Value: defaultConfigPath, Usage: "path to scheduler.yaml"}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Scaffold a starter scheduler.yaml",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			if path == "" {
				path = defaultConfigPath
			}
			if err := scaffold.Init(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one scheduler pass: discover, monitor, reconcile, submit",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the submission plan without executing"},
			&cli.BoolFlag{Name: "force", Usage: "Re-queue procedures already reported complete"},
			&cli.StringSliceFlag{Name: "procedure", Usage: "restrict --force to these procedures"},
			&cli.BoolFlag{Name: "skip-monitor", Usage: "skip the Monitor/Reconcile step before submitting"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			l, err := lock.Acquire(cfg.StateFile)
			if err != nil {
				return err
			}
			defer l.Release()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			store, err := statestore.Open(cfg.StateFile)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			auditLog, err := audit.Open(cfg.LogFile)
			if err != nil {
				return fmt.Errorf("opening audit log: %w", err)
			}
			defer auditLog.Close()

			filter := map[string]bool{}
			for _, p := range cmd.StringSlice("procedure") {
				filter[p] = true
			}

			sc := &scheduler.Context{
				Config: cfg,
				Store:  store,
				Audit:  auditLog,
				Batch:  batch.NewSlurmManager(),
				Warnf:  ux.Warning,
				Options: rules.Options{
					Force:      cmd.Bool("force"),
					Procedures: filter,
				},
				DryRun:      cmd.Bool("dry-run"),
				SkipMonitor: cmd.Bool("skip-monitor"),
			}

			result, err := scheduler.Run(ctx, sc)
			if err != nil {
				return err
			}

			ux.ManifestTable(result.Tasks)
			submitted, failed := 0, 0
			for _, r := range result.Results {
				ux.SubmitLine(r.Task.Subject, r.Task.Session, r.Task.Procedure, r.JobID, r.Err)
				if r.Err != nil {
					failed++
				} else {
					submitted++
				}
			}
			ux.PassComplete(submitted, failed)
			return nil
		},
	}
}

func manifestCmd() *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Print the manifest for the current pass without submitting",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{Name: "force", Usage: "Re-queue procedures already reported complete"},
			&cli.StringSliceFlag{Name: "procedure", Usage: "restrict --force to these procedures"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := statestore.Open(cfg.StateFile)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}

			rows, err := discover.Table(cfg)
			if err != nil {
				return fmt.Errorf("discovering work keys: %w", err)
			}

			filter := map[string]bool{}
			for _, p := range cmd.StringSlice("procedure") {
				filter[p] = true
			}
			tasks := manifest.Build(cfg, rows, store, rules.Options{Force: cmd.Bool("force"), Procedures: filter})
			ux.ManifestTable(tasks)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the State Store summary",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := statestore.Open(cfg.StateFile)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			ux.RenderStatus(store.Rows())
			return nil
		},
	}
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Poll the batch manager and reconcile against disk without submitting",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			l, err := lock.Acquire(cfg.StateFile)
			if err != nil {
				return err
			}
			defer l.Release()

			store, err := statestore.Open(cfg.StateFile)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			auditLog, err := audit.Open(cfg.LogFile)
			if err != nil {
				return fmt.Errorf("opening audit log: %w", err)
			}
			defer auditLog.Close()

			pass := auditLog.NewPass()
			if err := monitor.Run(ctx, cfg, store, batch.NewSlurmManager(), pass, ux.Warning); err != nil {
				return err
			}
			ux.RenderStatus(store.Rows())
			return nil
		},
	}
}

func retryCmd() *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "Clear failed State Rows so they are re-queued",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "procedure", Usage: "restrict to this procedure"},
			&cli.StringFlag{Name: "subject", Usage: "restrict to this subject"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			l, err := lock.Acquire(cfg.StateFile)
			if err != nil {
				return err
			}
			defer l.Release()

			store, err := statestore.Open(cfg.StateFile)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			auditLog, err := audit.Open(cfg.LogFile)
			if err != nil {
				return fmt.Errorf("opening audit log: %w", err)
			}
			defer auditLog.Close()

			pass := auditLog.NewPass()
			removed, err := retry.Run(store, pass, cmd.String("procedure"), cmd.String("subject"))
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d failed row(s)\n", len(removed))
			return nil
		},
	}
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Explain rule outcomes for one subject/session",
		ArgsUsage: "<subject> [session]",
		Flags:     []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			subject := cmd.Args().Get(0)
			if subject == "" {
				return fmt.Errorf("subject argument is required")
			}
			session := cmd.Args().Get(1)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := statestore.Open(cfg.StateFile)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}

			row, found, err := inspect.Row(cfg, subject, session)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no discoverable work key for subject=%s session=%s", subject, session)
			}

			for _, e := range inspect.Explain(cfg, row, store) {
				if e.Detail != "" {
					fmt.Printf("  %-14s %s (%s)\n", e.Procedure, e.Reason, e.Detail)
				} else {
					fmt.Printf("  %-14s %s\n", e.Procedure, e.Reason)
				}
			}
			return nil
		},
	}
}
