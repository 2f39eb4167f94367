package schema

import (
	"fmt"
	"strings"
)

// ValidationError is a single finding about a table, optionally scoped
// to a column.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation. Errors block
// a migration plan; warnings are surfaced but do not.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	writeGroup := func(header string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(header)
		for _, e := range errs {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	writeGroup("Errors:\n", r.Errors)
	writeGroup("Warnings:\n", r.Warnings)
	if sb.Len() == 0 {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(table, column string, breaking bool, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{
		Table: table, Column: column, Breaking: breaking,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *ValidationResult) warnf(table, column string, breaking bool, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{
		Table: table, Column: column, Breaking: breaking,
		Message: fmt.Sprintf(format, args...),
	})
}

// gated routes a breaking finding: allowed downgrades it to a warning.
func (r *ValidationResult) gated(allowed bool, table, column, message string) {
	if allowed {
		r.warnf(table, column, true, "%s", message)
		return
	}
	r.errorf(table, column, true, "%s", message)
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex allows dropping indexes without error.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateDiff lints the change from the current table set to the
// desired one before a plan is generated. Destructive changes (dropped
// tables, columns or indexes, NULL rule tightening) are errors unless
// the matching Allow option downgrades them to warnings; risky but
// non-destructive changes always warn. Tables are visited in the input
// order of current, then desired.
//
//	result := schema.ValidateDiff(current, desired)
//	if result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
func ValidateDiff(current, desired []*Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &ValidationResult{}
	desiredMap := make(map[string]*Table, len(desired))
	for _, t := range desired {
		desiredMap[t.Name] = t
	}

	for _, curr := range current {
		next, ok := desiredMap[curr.Name]
		if !ok {
			result.gated(cfg.allowDropTable, curr.Name, "", "table will be dropped")
			continue
		}
		validateTableDiff(curr, next, cfg, result)
	}
	return result
}

func validateTableDiff(curr, next *Table, cfg *validateConfig, result *ValidationResult) {
	for _, c := range curr.Columns {
		if !next.HasColumn(c.Name) {
			result.gated(cfg.allowDropColumn, curr.Name, c.Name, "column will be dropped")
		}
	}

	for _, nc := range next.Columns {
		cc, ok := curr.Column(nc.Name)
		if !ok {
			if !nc.Nullable && nc.Default == nil {
				result.warnf(curr.Name, nc.Name, false, "new NOT NULL column without default value may fail if table has data")
			}
			continue
		}
		if cc.Type != nc.Type {
			result.warnf(curr.Name, nc.Name, false, "column type changing from %v to %v", cc.Type, nc.Type)
		}
		if cc.Nullable && !nc.Nullable {
			result.gated(cfg.allowNullToNotNull, curr.Name, nc.Name, "column changing from NULL to NOT NULL may fail if column has NULL values")
		}
		if cc.Size > 0 && nc.Size > 0 && nc.Size < cc.Size {
			result.warnf(curr.Name, nc.Name, false, "column size reducing from %d to %d may truncate data", cc.Size, nc.Size)
		}
		if !cc.Unique && nc.Unique {
			result.warnf(curr.Name, nc.Name, false, "adding UNIQUE constraint may fail if duplicate values exist")
		}
	}

	nextIdxs := make(map[string]*Index, len(next.Indexes))
	for _, idx := range next.Indexes {
		nextIdxs[idx.Name] = idx
	}
	for _, idx := range curr.Indexes {
		if _, ok := nextIdxs[idx.Name]; !ok {
			msg := fmt.Sprintf("index %q will be dropped", idx.Name)
			result.gated(cfg.allowDropIndex, curr.Name, "", msg)
		}
	}

	for _, fk := range curr.ForeignKeys {
		if _, ok := next.fk(fk.Symbol); !ok {
			result.warnf(curr.Name, "", false, "foreign key %q will be dropped", fk.Symbol)
		}
	}
	for _, fk := range next.ForeignKeys {
		if _, ok := curr.fk(fk.Symbol); !ok {
			result.warnf(curr.Name, "", false, "adding foreign key %q may fail if existing rows violate it", fk.Symbol)
		}
	}
}

// ValidateTable lints a single table definition: duplicate column and
// index names, index and foreign-key references to columns the table
// does not have, and mismatched foreign-key column lists.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}

	if len(t.PrimaryKey) == 0 {
		result.warnf(t.Name, "", false, "table has no primary key")
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			result.errorf(t.Name, c.Name, false, "duplicate column name")
		}
		seen[c.Name] = true
	}

	idxNames := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idxNames[idx.Name] {
			result.errorf(t.Name, "", false, "duplicate index name: %s", idx.Name)
		}
		idxNames[idx.Name] = true
		for _, name := range idx.columnNames() {
			if !seen[name] {
				result.errorf(t.Name, "", false, "index %q references non-existent column %q", idx.Name, name)
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		for _, col := range fk.Columns {
			if !seen[col.Name] {
				result.errorf(t.Name, "", false, "foreign key references non-existent column %q", col.Name)
			}
		}
		if len(fk.Columns) != len(fk.RefColumns) {
			result.errorf(t.Name, "", false, "foreign key %q has %d column(s) but %d referenced column(s)", fk.Symbol, len(fk.Columns), len(fk.RefColumns))
		}
	}

	return result
}

// ValidateSchema lints a whole table set: per-table findings plus
// cross-table ones, namely duplicate table names, duplicate foreign-key
// symbols and references to tables or columns outside the set.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}

	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		if _, ok := byName[t.Name]; ok {
			result.errorf(t.Name, "", false, "duplicate table name")
		}
		byName[t.Name] = t

		tr := ValidateTable(t)
		result.Errors = append(result.Errors, tr.Errors...)
		result.Warnings = append(result.Warnings, tr.Warnings...)
	}

	symbols := make(map[string]bool)
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if symbols[fk.Symbol] {
				result.errorf(t.Name, "", false, "duplicate foreign key symbol %q", fk.Symbol)
			}
			symbols[fk.Symbol] = true

			ref, ok := byName[fk.RefTable.Name]
			if !ok {
				result.errorf(t.Name, "", false, "foreign key references non-existent table %q", fk.RefTable.Name)
				continue
			}
			for _, col := range fk.RefColumns {
				if !ref.HasColumn(col.Name) {
					result.errorf(t.Name, "", false, "foreign key %q references non-existent column %q on %q", fk.Symbol, col.Name, ref.Name)
				}
			}
		}
	}

	return result
}
