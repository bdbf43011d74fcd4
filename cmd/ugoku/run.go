package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/user"

	"github.com/nerrad567/ugoku-core/internal/audit"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/logging"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/metrics"
	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// runCmd loads the session, connects the cameras when connect_on_start is
// set, validates it with a dry pass and, unless validateOnly or
// session.dry_run is set, prepares the devices and executes it. Nothing is
// written to a device before the dry pass has accepted every row.
func runCmd(ctx context.Context, args []string, stdout io.Writer, validateOnly bool) error {
	name := "run"
	if validateOnly {
		name = "validate"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file (default $UGOKU_CONFIG or "+defaultConfigPath+")")
	tasksFlag := fs.String("tasks", "", "task list CSV (overrides session.tasks_file)")
	devicesFlag := fs.String("devices", "", "device list JSON or YAML (overrides session.devices_file)")
	dryFlag := fs.Bool("dry-run", false, "validate only; nothing is sent to any device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath(*cfgFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *tasksFlag != "" {
		cfg.Session.TasksFile = *tasksFlag
	}
	if *devicesFlag != "" {
		cfg.Session.DevicesFile = *devicesFlag
	}
	if *dryFlag {
		cfg.Session.DryRun = true
	}

	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // best-effort flush of the log file
	log.Info("starting ugoku", "version", version, "commit", commit, "build_date", date)
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	m := metrics.New()
	sess, err := newSession(cfg, log, m)
	if err != nil {
		return err
	}

	if cfg.Camera.ConnectOnStart {
		if err := sess.connectCameras(ctx); err != nil {
			return fmt.Errorf("connecting cameras: %w", err)
		}
	}

	dryOnly := validateOnly || cfg.Session.DryRun
	if dryOnly || cfg.Session.Preflight {
		exec, err := sess.dispatcher.Run(ctx, sess.list, sequencer.Options{DryRun: true, Source: cfg.Session.TasksFile})
		if err != nil {
			printSummary(stdout, exec)
			return fmt.Errorf("preflight validation: %w", err)
		}
		log.Info("preflight validation passed", "tasks", exec.Total, "total_wait", sess.list.TotalWait())
	}
	if dryOnly {
		fmt.Fprintf(stdout, "%s: %d tasks valid, total wait %s\n", cfg.Session.TasksFile, sess.list.Len(), sess.list.TotalWait())
		return nil
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	svc, err := startServices(ctx, cfg, log, sess, m, stop)
	defer svc.close()
	if err != nil {
		return err
	}

	defer sess.close()
	if err := sess.prepare(runCtx); err != nil {
		return fmt.Errorf("preparing devices: %w", err)
	}

	exec, err := sess.dispatcher.Run(runCtx, sess.list, sequencer.Options{Source: cfg.Session.TasksFile})
	printSummary(stdout, exec)

	if exec.ID != "" {
		recordRun(ctx, svc, cfg, exec)
	}

	var halt *sequencer.HaltError
	if errors.As(err, &halt) {
		return fmt.Errorf("%w at row %d (task %s): %w", errHalted, halt.Row, halt.TaskID, halt.Err)
	}
	return err
}

// recordRun audits who started the run and whether a signal ended it.
func recordRun(ctx context.Context, s *services, cfg *config.Config, exec sequencer.Execution) {
	actor := currentUser()
	s.record(ctx, &audit.Entry{
		Action:    audit.ActionRunStart,
		RunID:     exec.ID,
		Actor:     actor,
		Source:    audit.SourceCLI,
		Details:   map[string]any{"tasks_file": cfg.Session.TasksFile, "devices_file": cfg.Session.DevicesFile},
		CreatedAt: exec.StartedAt,
	})
	if ctx.Err() != nil {
		s.record(ctx, &audit.Entry{
			Action: audit.ActionRunInterrupt,
			RunID:  exec.ID,
			Actor:  actor,
			Source: audit.SourceSignal,
		})
	}
}

func printSummary(w io.Writer, exec sequencer.Execution) {
	if exec.ID == "" {
		return
	}
	mode := ""
	if exec.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "run %s%s: %s, %d/%d tasks\n", exec.ID, mode, exec.State, exec.Completed, exec.Total)
	if exec.State == sequencer.StateHalted && exec.HaltRow != nil {
		fmt.Fprintf(w, "  halted at row %d, task %s: %s\n", *exec.HaltRow, exec.HaltTaskID, exec.HaltReason)
	}
}

// currentUser names the operator for the audit log.
func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
