// Package database opens the engine's SQLite file and applies schema
// migrations.
//
// The database holds the status history audit log only. Device state is
// never restored from it.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
