package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/ugoku-core/migrations"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"0001_first.up.sql":    {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"0001_first.down.sql":  {Data: []byte("DROP TABLE a;")},
		"0002_second.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
		"0002_second.down.sql": {Data: []byte("DROP TABLE b;")},
		"README.md":            {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "a") || !tableExists(t, db, "b") {
		t.Error("tables not created")
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error = %v", err)
	}
	if len(versions) != 2 || versions[0] != "0001" || versions[1] != "0002" {
		t.Errorf("AppliedVersions() = %v", versions)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "b") {
		t.Error("table b still exists after rollback")
	}
	if !tableExists(t, db, "a") {
		t.Error("table a was rolled back too")
	}
}

func TestMigrateFailureKeepsEarlierSteps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	fsys["0003_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE oops (")}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() expected error")
	}
	versions, _ := db.AppliedVersions(ctx) //nolint:errcheck // checked by length
	if len(versions) != 2 {
		t.Errorf("AppliedVersions() = %v, want the two good migrations", versions)
	}
}

func TestJournalSchemaMigrates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate(journal) error = %v", err)
	}
	for _, table := range []string{"runs", "task_outcomes", "audit_logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing", table)
		}
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown(audit) error = %v", err)
	}
	if tableExists(t, db, "audit_logs") || !tableExists(t, db, "runs") {
		t.Error("first rollback should drop only audit_logs")
	}
	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown(journal) error = %v", err)
	}
	if tableExists(t, db, "runs") {
		t.Error("runs still exists after rollback")
	}
}

func TestLoadMigrations_UpRequired(t *testing.T) {
	fsys := fstest.MapFS{"0001_only_down.down.sql": {Data: []byte("DROP TABLE x;")}}
	if _, err := LoadMigrations(fsys); err == nil {
		t.Error("LoadMigrations() expected error for missing up file")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file        string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{file: "0001_run_journal.up.sql", wantVersion: "0001", wantName: "run_journal", wantUp: true, wantOK: true},
		{file: "0001_run_journal.down.sql", wantVersion: "0001", wantName: "run_journal", wantOK: true},
		{file: "0001_run_journal.sql"},
		{file: "abcd_name.up.sql"},
		{file: "0001.up.sql"},
		{file: "embed.go"},
	}
	for _, tt := range tests {
		v, n, up, ok := parseMigrationFilename(tt.file)
		if ok != tt.wantOK || v != tt.wantVersion || n != tt.wantName || up != tt.wantUp {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v, %v", tt.file, v, n, up, ok)
		}
	}
}
