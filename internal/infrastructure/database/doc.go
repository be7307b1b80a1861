// Package database provides SQLite connectivity for the facade service.
//
// This package manages:
//   - The database connection, with WAL mode for concurrent access
//   - Schema migrations read from an fs.FS (see package migrations)
//   - In-memory databases for tests and history-less runs
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.All()); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or have DEFAULT
// values, and each .up.sql should come with a .down.sql.
package database
