package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/ugoku-core/internal/infrastructure/database"
	"github.com/nerrad567/ugoku-core/migrations"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_FillsIDAndTime(t *testing.T) {
	repo := setupRepo(t)

	e := &Entry{Action: ActionRunStop, RunID: "run-1", Actor: "alice", Source: SourceAPI}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("entry not filled in: %+v", e)
	}
}

func TestList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionRunStart, RunID: "run-1", Source: SourceCLI, CreatedAt: base,
			Details: map[string]any{"tasks_file": "tasks.csv"}},
		{Action: ActionRunStop, RunID: "run-1", Actor: "alice", Source: SourceAPI, CreatedAt: base.Add(1500 * time.Millisecond)},
		{Action: ActionRunStart, RunID: "run-2", Source: SourceCLI, CreatedAt: base.Add(time.Minute)},
		{Action: ActionRunInterrupt, RunID: "run-2", Source: SourceSignal, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
		wantLen   int
	}{
		{"all newest first", Filter{}, 4, ActionRunInterrupt, 4},
		{"by action", Filter{Action: ActionRunStart}, 2, ActionRunStart, 2},
		{"by run", Filter{RunID: "run-1"}, 2, ActionRunStop, 2},
		{"paged", Filter{Limit: 1, Offset: 1}, 4, ActionRunStart, 1},
		{"no match", Filter{RunID: "run-9"}, 0, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.wantTotal || len(got.Entries) != tt.wantLen {
				t.Fatalf("List() total=%d len=%d, want %d/%d", got.Total, len(got.Entries), tt.wantTotal, tt.wantLen)
			}
			if tt.wantLen > 0 && got.Entries[0].Action != tt.wantFirst {
				t.Errorf("first action = %q, want %q", got.Entries[0].Action, tt.wantFirst)
			}
		})
	}

	got, err := repo.List(ctx, Filter{Action: ActionRunStart, RunID: "run-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Details["tasks_file"] != "tasks.csv" {
		t.Errorf("details not round-tripped: %+v", got.Entries)
	}
	if got.Entries[0].Actor != "" {
		t.Errorf("Actor = %q, want empty", got.Entries[0].Actor)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := setupRepo(t)

	got, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Limit != maxListLimit || got.Offset != 0 || got.Entries == nil {
		t.Errorf("List() = %+v", got)
	}
}
