// Package database opens the SQLite file that holds the run journal and
// applies its schema migrations.
//
// Migrations are plain SQL files named NNNN_name.up.sql (and optionally
// NNNN_name.down.sql) read from an fs.FS; the binary passes the embedded
// migrations.FS. Each migration runs in its own transaction and is recorded
// in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
