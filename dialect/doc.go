// Package dialect provides database dialect abstraction for Celer.
//
// This package defines the interfaces and types used for database-specific
// operations, allowing Celer to support multiple database backends including
// PostgreSQL, MySQL, and SQLite.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback, and the
// ExecQuerier interface is implemented by both Driver and Tx.
//
// # Features
//
// A Features descriptor captures what a dialect can express: its
// identifier quoting, bind placeholder style, locking and ILIKE support,
// and the schema change operations it can perform directly. The SQL
// compiler and the schema engine consult the descriptor instead of
// switching on dialect names:
//
//	feats := dialect.FeaturesFor(dialect.Postgres)
//	expr, err := sql.Compile(entity, fetch, feats)
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/syssam/celer/dialect"
//	    "github.com/syssam/celer/dialect/sql"
//	)
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// # Sub-packages
//
//   - dialect/sql: qualifier-to-SQL compilation and driver implementation
//   - dialect/sql/schema: schema diffing and DDL generation
package dialect
