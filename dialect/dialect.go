package dialect

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two standard SQL operations.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The args
	// value is expected to be a []any, and v, when non-nil, receives
	// the execution result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows; v receives them.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface the statement execution layer is built on.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transactional driver.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback methods wrapping
// the provided Driver d.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

// DebugDriver is a driver that logs all driver operations.
type DebugDriver struct {
	Driver
	log *slog.Logger
}

// Debug gets a driver and an optional logger and returns a new
// debugged-driver that prints all outgoing operations with their
// duration.
func Debug(d Driver, logger ...*slog.Logger) Driver {
	l := slog.Default()
	if len(logger) > 0 {
		l = logger[0]
	}
	return &DebugDriver{d, l}
}

// Exec logs its params and calls the underlying driver Exec method.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.log.LogAttrs(ctx, slog.LevelDebug, "driver.Exec",
		slog.String("query", query),
		slog.Any("args", args),
		slog.Duration("duration", time.Since(start)),
	)
	return err
}

// Query logs its params and calls the underlying driver Query method.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.log.LogAttrs(ctx, slog.LevelDebug, "driver.Query",
		slog.String("query", query),
		slog.Any("args", args),
		slog.Duration("duration", time.Since(start)),
	)
	return err
}

// Tx wraps the underlying transaction with logging.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{tx, d.log}, nil
}

// DebugTx is a transaction implementation that logs all transaction operations.
type DebugTx struct {
	Tx
	log *slog.Logger
}

// Exec logs its params and calls the underlying transaction Exec method.
func (d *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Tx.Exec(ctx, query, args, v)
	d.log.LogAttrs(ctx, slog.LevelDebug, "tx.Exec",
		slog.String("query", query),
		slog.Any("args", args),
		slog.Duration("duration", time.Since(start)),
	)
	return err
}

// Query logs its params and calls the underlying transaction Query method.
func (d *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Tx.Query(ctx, query, args, v)
	d.log.LogAttrs(ctx, slog.LevelDebug, "tx.Query",
		slog.String("query", query),
		slog.Any("args", args),
		slog.Duration("duration", time.Since(start)),
	)
	return err
}

// Features describes what a dialect can express. The compiler and the
// schema engine consult it instead of switching on the dialect name, so
// a custom dialect only needs to fill in a descriptor.
type Features struct {
	// Name is the dialect name the descriptor was built for.
	Name string
	// IdentQuote is the identifier quote character.
	IdentQuote byte
	// DollarPlaceholders selects $1, $2, ... bind placeholders
	// instead of ?.
	DollarPlaceholders bool
	// SupportsForUpdate reports FOR UPDATE row locking. Without it the
	// locking clause is omitted, not an error.
	SupportsForUpdate bool
	// SupportsILike reports a native ILIKE operator. Without it ILIKE
	// compiles to LOWER(col) LIKE LOWER(?).
	SupportsILike bool
	// CoalesceLike wraps LIKE operands in a null-coalescing function
	// so NULL columns compare like empty strings.
	CoalesceLike bool
	// OffsetWithoutLimit is the LIMIT literal required when a statement
	// carries OFFSET but no LIMIT. Empty means none is needed.
	OffsetWithoutLimit string

	// Schema change capabilities.
	ColumnInsertion         bool
	ColumnDeletion          bool
	ColumnRenaming          bool
	ColumnCoercion          bool
	NullRuleModification    bool
	ForeignKeyModification  bool
	EmbedConstraintsInTable bool
}

var (
	// MySQLFeatures describes MySQL / MariaDB.
	MySQLFeatures = Features{
		Name:                    MySQL,
		IdentQuote:              '`',
		SupportsForUpdate:       true,
		OffsetWithoutLimit:      "18446744073709551615",
		ColumnInsertion:         true,
		ColumnDeletion:          true,
		ColumnRenaming:          true,
		ColumnCoercion:          true,
		NullRuleModification:    true,
		ForeignKeyModification:  true,
		EmbedConstraintsInTable: true,
	}
	// PostgresFeatures describes PostgreSQL.
	PostgresFeatures = Features{
		Name:                    Postgres,
		IdentQuote:              '"',
		DollarPlaceholders:      true,
		SupportsForUpdate:       true,
		SupportsILike:           true,
		ColumnInsertion:         true,
		ColumnDeletion:          true,
		ColumnRenaming:          true,
		ColumnCoercion:          true,
		NullRuleModification:    true,
		ForeignKeyModification:  true,
		EmbedConstraintsInTable: true,
	}
	// SQLiteFeatures describes SQLite. Dropping, retyping and
	// re-nulling columns needs the table-rebuild dance, which the
	// schema engine surfaces as manual statements.
	SQLiteFeatures = Features{
		Name:                    SQLite,
		IdentQuote:              '"',
		OffsetWithoutLimit:      "-1",
		ColumnInsertion:         true,
		ColumnRenaming:          true,
		EmbedConstraintsInTable: true,
	}
)

// FeaturesFor returns the descriptor for a dialect name. Unknown names
// get the most conservative descriptor so compilation still produces
// portable SQL.
func FeaturesFor(name string) Features {
	switch name {
	case MySQL:
		return MySQLFeatures
	case Postgres:
		return PostgresFeatures
	case SQLite:
		return SQLiteFeatures
	}
	f := SQLiteFeatures
	f.Name = name
	f.SupportsForUpdate = false
	return f
}

// Quote quotes an identifier with the dialect's quote character.
func (f Features) Quote(ident string) string {
	q := string(f.IdentQuote)
	return q + ident + q
}

// Placeholder returns the i-th (1-based) bind placeholder.
func (f Features) Placeholder(i int) string {
	if f.DollarPlaceholders {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}
