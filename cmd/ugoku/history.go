package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/database"
	"github.com/nerrad567/ugoku-core/internal/journal"
	"github.com/nerrad567/ugoku-core/internal/sequencer"
	"github.com/nerrad567/ugoku-core/migrations"
)

const defaultHistoryLimit = 20

// historyCmd prints recent runs from the journal, or one run's outcomes.
func historyCmd(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file")
	limit := fs.Int("limit", defaultHistoryLimit, "number of runs to list")
	runID := fs.String("run", "", "show the task outcomes of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Decode(configPath(*cfgFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only use
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrating journal: %w", err)
	}
	repo := journal.NewSQLiteRepository(db.DB)

	if *runID != "" {
		return printRun(ctx, stdout, repo, *runID)
	}

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tTASKS\tDRY\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%v\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.State, r.Completed, r.Total, r.DryRun, r.Source)
	}
	return tw.Flush()
}

func printRun(ctx context.Context, w io.Writer, repo journal.Repository, id string) error {
	run, err := repo.GetRun(ctx, id)
	if err != nil {
		return err
	}
	outcomes, err := repo.ListOutcomes(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s: %s, %d/%d tasks, source %s\n", run.ID, run.State, run.Completed, run.Total, run.Source)
	if run.State == sequencer.StateHalted && run.HaltRow != nil {
		fmt.Fprintf(w, "halted at row %d (task %s): %s\n", *run.HaltRow, run.HaltTaskID, run.HaltReason)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tTASK\tTARGET\tACTION\tSTATUS\tATTEMPTS\tDURATION\tREASON")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			o.Row, o.TaskID, o.Target, o.Action, o.Status, o.Attempts, o.Duration().Round(time.Millisecond), o.Reason)
	}
	return tw.Flush()
}
