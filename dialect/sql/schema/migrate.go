package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/celer/dialect"
)

// Statement is a single DDL change. Cmd moves the schema forward and
// Reverse undoes it (empty when the change is irreversible). Manual
// statements describe a change the dialect cannot express directly;
// their Cmd is a SQL comment and executors must not run them blindly.
type Statement struct {
	Cmd     string
	Reverse string
	Comment string
	Manual  bool
}

// UnsupportedError is returned in strict mode when a required change has
// no capability-backed representation on the target dialect.
type UnsupportedError struct {
	Table     string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("schema: table %q: %s is not supported by this dialect", e.Table, e.Operation)
}

// DiffOption configures a schema diff.
type DiffOption func(*differ)

// WithStrict makes unsupported operations fail with an UnsupportedError
// instead of producing manual-intervention markers.
func WithStrict() DiffOption {
	return func(d *differ) { d.strict = true }
}

// CreateAll returns the statements creating the desired tables from
// scratch, ordered so referenced tables are created first.
func CreateAll(desired []*Table, feats dialect.Features, opts ...DiffOption) ([]*Statement, error) {
	return Diff(nil, desired, feats, opts...)
}

// Diff compares the current tables with the desired ones and returns the
// ordered statements migrating current toward desired. The order is:
// drops for removed tables (dependents first), creates for new tables
// (dependencies first), alters for changed tables, then deferred
// constraint additions.
func Diff(current, desired []*Table, feats dialect.Features, opts ...DiffOption) ([]*Statement, error) {
	d := &differ{feats: feats}
	for _, opt := range opts {
		opt(d)
	}
	currentMap := make(map[string]*Table, len(current))
	for _, t := range current {
		currentMap[t.Name] = t
	}
	desiredMap := make(map[string]*Table, len(desired))
	for _, t := range desired {
		desiredMap[t.Name] = t
	}

	var dropped, created, kept []*Table
	for _, t := range current {
		if _, ok := desiredMap[t.Name]; !ok {
			dropped = append(dropped, t)
		}
	}
	for _, t := range desired {
		if _, ok := currentMap[t.Name]; ok {
			kept = append(kept, t)
		} else {
			created = append(created, t)
		}
	}

	if err := d.dropTables(dropped, current); err != nil {
		return nil, err
	}
	if err := d.createTables(created); err != nil {
		return nil, err
	}
	for _, t := range kept {
		if err := d.alterTable(currentMap[t.Name], t); err != nil {
			return nil, err
		}
	}
	d.stmts = append(d.stmts, d.deferred...)
	return d.stmts, nil
}

type differ struct {
	feats    dialect.Features
	strict   bool
	stmts    []*Statement
	deferred []*Statement
	goners   map[string]bool // tables dropped in this diff
}

func (d *differ) append(s *Statement) {
	d.stmts = append(d.stmts, s)
}

// manual records an unsupported change as a comment-only marker, or
// fails in strict mode.
func (d *differ) manual(table, operation string) error {
	if d.strict {
		return &UnsupportedError{Table: table, Operation: operation}
	}
	d.append(&Statement{
		Cmd:     fmt.Sprintf("-- manual intervention: table %q: %s", table, operation),
		Comment: fmt.Sprintf("unsupported on this dialect: %s on %q", operation, table),
		Manual:  true,
	})
	return nil
}

// dropTables emits DROP statements for removed tables, dependents before
// the tables they reference. Foreign keys on surviving tables that point
// at a dropped table are dropped first.
func (d *differ) dropTables(dropped, current []*Table) error {
	if len(dropped) == 0 {
		return nil
	}
	d.goners = make(map[string]bool, len(dropped))
	for _, t := range dropped {
		d.goners[t.Name] = true
	}
	for _, t := range current {
		if d.goners[t.Name] {
			continue
		}
		for _, fk := range t.ForeignKeys {
			if !d.goners[fk.RefTable.Name] {
				continue
			}
			if !d.feats.ForeignKeyModification {
				if err := d.manual(t.Name, fmt.Sprintf("dropping foreign key %q", fk.Symbol)); err != nil {
					return err
				}
				continue
			}
			d.append(d.dropForeignKey(t, fk))
		}
	}
	order, _ := topoSort(dropped)
	// Reverse: a table is dropped before the tables it references.
	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		d.append(&Statement{
			Cmd:     fmt.Sprintf("DROP TABLE %s", d.feats.Quote(t.Name)),
			Comment: fmt.Sprintf("drop %q table", t.Name),
		})
	}
	return nil
}

// createTables emits CREATE statements in dependency order. Tables that
// take part in a foreign-key cycle are created without any constraints;
// their foreign keys are added afterwards with ALTER statements. The
// same deferral applies to every table when the dialect prefers
// constraints outside the CREATE statement.
func (d *differ) createTables(created []*Table) error {
	if len(created) == 0 {
		return nil
	}
	batch := make(map[string]bool, len(created))
	for _, t := range created {
		batch[t.Name] = true
	}
	order, cyclic := topoSort(created)
	for _, t := range order {
		embed := d.feats.EmbedConstraintsInTable && !cyclic[t.Name]
		d.append(d.createTable(t, embed))
		for _, idx := range t.Indexes {
			d.append(d.createIndex(t, idx))
		}
		if embed {
			continue
		}
		for _, fk := range t.ForeignKeys {
			if !d.feats.ForeignKeyModification {
				if err := d.manual(t.Name, fmt.Sprintf("adding foreign key %q after creation", fk.Symbol)); err != nil {
					return err
				}
				continue
			}
			d.deferred = append(d.deferred, d.addForeignKey(t, fk))
		}
	}
	return nil
}

func (d *differ) createTable(t *Table, embedConstraints bool) *Statement {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.feats.Quote(t.Name))
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(columnDDL(c, d.feats))
	}
	if len(t.PrimaryKey) > 0 {
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(d.columnList(t.PrimaryKey))
		b.WriteString(")")
	}
	if embedConstraints {
		for _, fk := range t.ForeignKeys {
			b.WriteString(", ")
			b.WriteString(d.fkDDL(fk))
		}
	}
	b.WriteString(")")
	return &Statement{
		Cmd:     b.String(),
		Reverse: fmt.Sprintf("DROP TABLE %s", d.feats.Quote(t.Name)),
		Comment: fmt.Sprintf("create %q table", t.Name),
	}
}

func (d *differ) createIndex(t *Table, idx *Index) *Statement {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(d.feats.Quote(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(d.feats.Quote(t.Name))
	b.WriteString(" (")
	for i, name := range idx.columnNames() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.feats.Quote(name))
	}
	b.WriteString(")")
	return &Statement{
		Cmd:     b.String(),
		Reverse: d.dropIndexCmd(t, idx),
		Comment: fmt.Sprintf("create index %q on %q", idx.Name, t.Name),
	}
}

func (d *differ) dropIndexCmd(t *Table, idx *Index) string {
	if d.feats.Name == dialect.MySQL {
		return fmt.Sprintf("DROP INDEX %s ON %s", d.feats.Quote(idx.Name), d.feats.Quote(t.Name))
	}
	return fmt.Sprintf("DROP INDEX %s", d.feats.Quote(idx.Name))
}

// fkDDL renders the constraint clause shared by CREATE TABLE and
// ALTER TABLE ADD CONSTRAINT.
func (d *differ) fkDDL(fk *ForeignKey) string {
	var b strings.Builder
	b.WriteString("CONSTRAINT ")
	b.WriteString(d.feats.Quote(fk.Symbol))
	b.WriteString(" FOREIGN KEY (")
	b.WriteString(d.columnList(fk.Columns))
	b.WriteString(") REFERENCES ")
	b.WriteString(d.feats.Quote(fk.RefTable.Name))
	b.WriteString(" (")
	b.WriteString(d.columnList(fk.RefColumns))
	b.WriteString(")")
	if fk.OnUpdate != "" && fk.OnUpdate != NoAction {
		b.WriteString(" ON UPDATE ")
		b.WriteString(string(fk.OnUpdate))
	}
	if fk.OnDelete != "" && fk.OnDelete != NoAction {
		b.WriteString(" ON DELETE ")
		b.WriteString(string(fk.OnDelete))
	}
	return b.String()
}

func (d *differ) addForeignKey(t *Table, fk *ForeignKey) *Statement {
	drop := d.dropForeignKey(t, fk)
	return &Statement{
		Cmd:     fmt.Sprintf("ALTER TABLE %s ADD %s", d.feats.Quote(t.Name), d.fkDDL(fk)),
		Reverse: drop.Cmd,
		Comment: fmt.Sprintf("add constraint %q to %q", fk.Symbol, t.Name),
	}
}

func (d *differ) dropForeignKey(t *Table, fk *ForeignKey) *Statement {
	drop := "DROP CONSTRAINT"
	if d.feats.Name == dialect.MySQL {
		drop = "DROP FOREIGN KEY"
	}
	return &Statement{
		Cmd:     fmt.Sprintf("ALTER TABLE %s %s %s", d.feats.Quote(t.Name), drop, d.feats.Quote(fk.Symbol)),
		Comment: fmt.Sprintf("drop constraint %q from %q", fk.Symbol, t.Name),
	}
}

// alterTable diffs one kept table and emits the capability-gated changes.
func (d *differ) alterTable(curr, next *Table) error {
	quoted := d.feats.Quote(next.Name)
	for _, c := range next.Columns {
		prev, ok := curr.Column(c.Name)
		if !ok {
			if !d.feats.ColumnInsertion {
				if err := d.manual(next.Name, fmt.Sprintf("adding column %q", c.Name)); err != nil {
					return err
				}
				continue
			}
			stmt := &Statement{
				Cmd:     fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoted, columnDDL(c, d.feats)),
				Comment: fmt.Sprintf("add column %q to %q", c.Name, next.Name),
			}
			if d.feats.ColumnDeletion {
				stmt.Reverse = fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoted, d.feats.Quote(c.Name))
			}
			d.append(stmt)
			continue
		}
		if err := d.modifyColumn(next, prev, c); err != nil {
			return err
		}
	}
	for _, c := range curr.Columns {
		if next.HasColumn(c.Name) {
			continue
		}
		if !d.feats.ColumnDeletion {
			if err := d.manual(next.Name, fmt.Sprintf("dropping column %q", c.Name)); err != nil {
				return err
			}
			continue
		}
		d.append(&Statement{
			Cmd:     fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoted, d.feats.Quote(c.Name)),
			Comment: fmt.Sprintf("drop column %q from %q", c.Name, next.Name),
		})
	}
	if err := d.alterPrimaryKey(curr, next); err != nil {
		return err
	}
	if err := d.alterForeignKeys(curr, next); err != nil {
		return err
	}
	d.alterIndexes(curr, next)
	return nil
}

func (d *differ) modifyColumn(t *Table, prev, next *Column) error {
	quoted := d.feats.Quote(t.Name)
	if prev.Type != next.Type || prev.Size != next.Size {
		if !d.feats.ColumnCoercion {
			if err := d.manual(t.Name, fmt.Sprintf("changing type of column %q", next.Name)); err != nil {
				return err
			}
		} else if d.feats.Name == dialect.MySQL {
			d.append(&Statement{
				Cmd:     fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quoted, columnDDL(next, d.feats)),
				Comment: fmt.Sprintf("modify column %q of %q", next.Name, t.Name),
			})
		} else {
			d.append(&Statement{
				Cmd:     fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", quoted, d.feats.Quote(next.Name), columnType(next, d.feats)),
				Comment: fmt.Sprintf("modify column %q of %q", next.Name, t.Name),
			})
		}
	}
	if prev.Nullable != next.Nullable {
		if !d.feats.NullRuleModification {
			return d.manual(t.Name, fmt.Sprintf("changing null rule of column %q", next.Name))
		}
		if d.feats.Name == dialect.MySQL {
			d.append(&Statement{
				Cmd:     fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quoted, columnDDL(next, d.feats)),
				Comment: fmt.Sprintf("modify column %q of %q", next.Name, t.Name),
			})
			return nil
		}
		rule := "SET NOT NULL"
		if next.Nullable {
			rule = "DROP NOT NULL"
		}
		d.append(&Statement{
			Cmd:     fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", quoted, d.feats.Quote(next.Name), rule),
			Comment: fmt.Sprintf("modify column %q of %q", next.Name, t.Name),
		})
	}
	return nil
}

func (d *differ) alterPrimaryKey(curr, next *Table) error {
	if columnNamesEqual(curr.PrimaryKey, next.PrimaryKey) {
		return nil
	}
	// Replacing a primary key rewrites a table-level constraint; gate it
	// with the same flag as other post-hoc constraint changes.
	if !d.feats.ForeignKeyModification {
		return d.manual(next.Name, "changing the primary key")
	}
	quoted := d.feats.Quote(next.Name)
	drop := fmt.Sprintf("DROP CONSTRAINT %s", d.feats.Quote(next.Name+"_pkey"))
	if d.feats.Name == dialect.MySQL {
		drop = "DROP PRIMARY KEY"
	}
	d.append(&Statement{
		Cmd:     fmt.Sprintf("ALTER TABLE %s %s, ADD PRIMARY KEY (%s)", quoted, drop, d.columnList(next.PrimaryKey)),
		Comment: fmt.Sprintf("change primary key of %q", next.Name),
	})
	return nil
}

func (d *differ) alterForeignKeys(curr, next *Table) error {
	for _, fk := range next.ForeignKeys {
		if _, ok := curr.fk(fk.Symbol); ok {
			continue
		}
		if !d.feats.ForeignKeyModification {
			if err := d.manual(next.Name, fmt.Sprintf("adding foreign key %q", fk.Symbol)); err != nil {
				return err
			}
			continue
		}
		d.deferred = append(d.deferred, d.addForeignKey(next, fk))
	}
	for _, fk := range curr.ForeignKeys {
		if _, ok := next.fk(fk.Symbol); ok {
			continue
		}
		// Already dropped alongside its referenced table.
		if d.goners[fk.RefTable.Name] {
			continue
		}
		if !d.feats.ForeignKeyModification {
			if err := d.manual(next.Name, fmt.Sprintf("dropping foreign key %q", fk.Symbol)); err != nil {
				return err
			}
			continue
		}
		d.append(d.dropForeignKey(next, fk))
	}
	return nil
}

func (d *differ) alterIndexes(curr, next *Table) {
	currIdx := make(map[string]*Index, len(curr.Indexes))
	for _, idx := range curr.Indexes {
		currIdx[idx.Name] = idx
	}
	for _, idx := range next.Indexes {
		if _, ok := currIdx[idx.Name]; ok {
			continue
		}
		d.append(d.createIndex(next, idx))
	}
	for _, idx := range curr.Indexes {
		found := false
		for _, n := range next.Indexes {
			if n.Name == idx.Name {
				found = true
				break
			}
		}
		if !found {
			d.append(&Statement{
				Cmd:     d.dropIndexCmd(next, idx),
				Comment: fmt.Sprintf("drop index %q from %q", idx.Name, next.Name),
			})
		}
	}
}

func (d *differ) columnList(cols []*Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.feats.Quote(c.Name)
	}
	return strings.Join(names, ", ")
}

func columnNamesEqual(a, b []*Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

// topoSort orders tables so every table appears after the tables its
// foreign keys reference, considering only references inside the batch.
// Tables on a foreign-key cycle cannot be ordered; they are reported in
// the cyclic set and sorted as if they had no outgoing references, which
// is how they end up being created (constraints deferred).
func topoSort(tables []*Table) ([]*Table, map[string]bool) {
	batch := make(map[string]*Table, len(tables))
	for _, t := range tables {
		batch[t.Name] = t
	}
	deps := func(t *Table, skip map[string]bool) []string {
		var out []string
		seen := make(map[string]bool)
		for _, fk := range t.ForeignKeys {
			ref := fk.RefTable.Name
			if ref == t.Name || seen[ref] || skip[t.Name] {
				continue
			}
			if _, ok := batch[ref]; !ok {
				continue
			}
			seen[ref] = true
			out = append(out, ref)
		}
		return out
	}
	order := kahn(tables, deps, nil)
	if len(order) == len(tables) {
		return order, map[string]bool{}
	}
	// Cycle: the unordered remainder forms it. Drop their outgoing edges
	// and order again.
	cyclic := make(map[string]bool, len(tables)-len(order))
	placed := make(map[string]bool, len(order))
	for _, t := range order {
		placed[t.Name] = true
	}
	for _, t := range tables {
		if !placed[t.Name] {
			cyclic[t.Name] = true
		}
	}
	return kahn(tables, deps, cyclic), cyclic
}

// kahn runs a deterministic topological sort: among ready tables, input
// order wins.
func kahn(tables []*Table, deps func(*Table, map[string]bool) []string, skip map[string]bool) []*Table {
	indeg := make(map[string]int, len(tables))
	dependents := make(map[string][]*Table, len(tables))
	for _, t := range tables {
		for _, ref := range deps(t, skip) {
			indeg[t.Name]++
			dependents[ref] = append(dependents[ref], t)
		}
	}
	var order []*Table
	done := make(map[string]bool, len(tables))
	ready := func() []*Table {
		var out []*Table
		for _, t := range tables {
			if !done[t.Name] && indeg[t.Name] == 0 {
				out = append(out, t)
			}
		}
		return out
	}
	for {
		next := ready()
		if len(next) == 0 {
			return order
		}
		for _, t := range next {
			done[t.Name] = true
			order = append(order, t)
			for _, dep := range dependents[t.Name] {
				indeg[dep.Name]--
			}
		}
	}
}
