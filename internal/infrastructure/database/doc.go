// Package database provides SQLite database connectivity for Ghost Gateway.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema bootstrap (settings and outbound event journal tables)
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.EnsureSchema(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
