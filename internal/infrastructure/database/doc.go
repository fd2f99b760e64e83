// Package database provides SQLite connectivity for the SwitchBot bridge.
//
// The database holds two things: the persisted device contexts (last
// committed canonical state, firmware, per-device overrides) and a local
// state history used when no InfluxDB is configured.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded from the migrations package
//   - Connection pooling and lifecycle management
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and every .up.sql has a matching .down.sql.
package database
