package schema

import (
	"context"
	"errors"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/sqltool"

	"github.com/syssam/celer/dialect"
)

// Migrate applies or records schema changes for a single database.
type Migrate struct {
	drv       dialect.Driver
	feats     dialect.Features
	dir       migrate.Dir
	fmt       migrate.Formatter
	current   []*Table
	strict    bool
	errNoPlan bool
}

// MigrateOption configures a Migrate.
type MigrateOption func(*Migrate)

// WithDir sets the migration directory Diff writes versioned files to.
func WithDir(dir migrate.Dir) MigrateOption {
	return func(m *Migrate) { m.dir = dir }
}

// WithFormatter sets the migration file formatter. Without it, a
// formatter matching the directory flavor is chosen.
func WithFormatter(fmt migrate.Formatter) MigrateOption {
	return func(m *Migrate) { m.fmt = fmt }
}

// WithFeatures overrides the capability descriptor derived from the
// driver's dialect.
func WithFeatures(feats dialect.Features) MigrateOption {
	return func(m *Migrate) { m.feats = feats }
}

// WithCurrent sets the tables the database currently holds. Diff plans
// against them; without this option it plans a fresh creation.
func WithCurrent(tables ...*Table) MigrateOption {
	return func(m *Migrate) { m.current = tables }
}

// WithStrictDiff makes unsupported operations fail the plan instead of
// producing manual-intervention markers.
func WithStrictDiff() MigrateOption {
	return func(m *Migrate) { m.strict = true }
}

// WithErrNoPlan makes Diff return migrate.ErrNoPlan when there is
// nothing to change, instead of succeeding without output.
func WithErrNoPlan(b bool) MigrateOption {
	return func(m *Migrate) { m.errNoPlan = b }
}

// NewMigrate returns a Migrate for the given driver. A nil driver is
// allowed for offline planning with WithFeatures; Create then fails.
func NewMigrate(drv dialect.Driver, opts ...MigrateOption) (*Migrate, error) {
	m := &Migrate{drv: drv}
	if drv != nil {
		m.feats = dialect.FeaturesFor(drv.Dialect())
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.feats.Name == "" {
		return nil, errors.New("schema: no dialect; pass a driver or WithFeatures")
	}
	if m.fmt == nil {
		m.fmt = formatterFor(m.dir)
	}
	return m, nil
}

func formatterFor(dir migrate.Dir) migrate.Formatter {
	switch dir.(type) {
	case *sqltool.GooseDir:
		return sqltool.GooseFormatter
	case *sqltool.DBMateDir:
		return sqltool.DBMateFormatter
	case *sqltool.FlywayDir:
		return sqltool.FlywayFormatter
	case *sqltool.LiquibaseDir:
		return sqltool.LiquibaseFormatter
	default:
		return sqltool.GolangMigrateFormatter
	}
}

// diffOpts translates the Migrate configuration to diff options.
func (m *Migrate) diffOpts() []DiffOption {
	var opts []DiffOption
	if m.strict {
		opts = append(opts, WithStrict())
	}
	return opts
}

// Create executes the statements bringing the database to the desired
// tables inside a single transaction. It fails on plans that contain
// manual-intervention markers instead of skipping them.
func (m *Migrate) Create(ctx context.Context, tables ...*Table) error {
	stmts, err := Diff(m.current, tables, m.feats, m.diffOpts()...)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if s.Manual {
			return fmt.Errorf("schema: plan requires manual intervention: %s", s.Comment)
		}
	}
	if m.drv == nil {
		return errors.New("schema: create requires a driver")
	}
	tx, err := m.drv.Tx(ctx)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if err := tx.Exec(ctx, s.Cmd, []any{}, nil); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: %v", err, rerr)
			}
			return fmt.Errorf("schema: execute %q: %w", s.Cmd, err)
		}
	}
	return tx.Commit()
}

// Diff writes the plan toward the desired tables to the migration
// directory under the default "changes" name.
func (m *Migrate) Diff(ctx context.Context, tables ...*Table) error {
	return m.NamedDiff(ctx, "changes", tables...)
}

// NamedDiff writes the plan toward the desired tables to the migration
// directory as a named, versioned migration. The directory checksum is
// verified before planning and rewritten after.
func (m *Migrate) NamedDiff(ctx context.Context, name string, tables ...*Table) error {
	if m.dir == nil {
		return errors.New("schema: diff requires a migration directory; use WithDir")
	}
	if err := migrate.Validate(m.dir); err != nil {
		return fmt.Errorf("schema: validating migration directory: %w", err)
	}
	stmts, err := Diff(m.current, tables, m.feats, m.diffOpts()...)
	if err != nil {
		return err
	}
	if len(stmts) == 0 {
		if m.errNoPlan {
			return migrate.ErrNoPlan
		}
		return nil
	}
	plan := &migrate.Plan{Name: name, Reversible: true, Transactional: true}
	for _, s := range stmts {
		if s.Reverse == "" {
			plan.Reversible = false
		}
		plan.Changes = append(plan.Changes, &migrate.Change{
			Cmd:     s.Cmd,
			Reverse: s.Reverse,
			Comment: s.Comment,
		})
	}
	files, err := m.fmt.Format(plan)
	if err != nil {
		return fmt.Errorf("schema: formatting plan: %w", err)
	}
	for _, f := range files {
		if err := m.dir.WriteFile(f.Name(), f.Bytes()); err != nil {
			return fmt.Errorf("schema: writing %q: %w", f.Name(), err)
		}
	}
	sum, err := m.dir.Checksum()
	if err != nil {
		return fmt.Errorf("schema: hashing migration directory: %w", err)
	}
	return migrate.WriteSumFile(m.dir, sum)
}
