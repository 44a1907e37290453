// Package database provides the SQLite handle used by the bindings service.
//
// The database holds the binding event journal. It is opened in WAL mode
// with a single connection, since SQLite supports one writer, and schema
// changes are applied from versioned up/down SQL files registered by the
// migrations package.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are NULLABLE or carry a DEFAULT, and
// every .up.sql file has a matching .down.sql.
package database
