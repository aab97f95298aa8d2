// Package database provides SQLite connectivity and schema migrations for
// the button store.
//
// The database runs in WAL mode with a busy timeout and a single pooled
// connection. Tables are declared STRICT. Migrations are embedded in the
// binary by the migrations package and applied at startup:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
