// Package database provides SQLite connectivity for stalink.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Forward-only schema migrations from an fs.FS
//   - Health checks and transaction helpers
//
// The database backs the persistence service (see package kvstore). The
// file is created with 0600 permissions because it holds Wi-Fi credentials.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
package database
