// Package sql compiles qualifiers and fetch specifications into SQL
// statements, and provides the driver plumbing to execute them.
//
// # Compilation
//
// The three compiler entry points mirror the statement kinds:
//
//	feats := dialect.FeaturesFor(dialect.Postgres)
//	expr, err := sql.Compile(company, &model.FetchSpecification{
//	    Qualifier: qualifier.GT("age", 13),
//	}, feats)
//	// expr.Statement: SELECT BASE."id", BASE."age", BASE."name"
//	//                 FROM "company" AS BASE WHERE BASE."age" > 13
//
//	sql.CompileInsert(company, []sql.ChangedValue{sql.Changed("age", 42)}, feats)
//	sql.CompileUpdate(company, values, qualifier.EQ("id", 5), feats)
//	sql.CompileDelete(company, qualifier.EQ("id", 5), feats)
//
// Qualifier keys may traverse relationships ("addresses.city"); the
// compiler synthesizes LEFT JOIN clauses and assigns table aliases in
// traversal order: BASE for the root entity, then A, B, C, ... One
// relationship path always maps to one alias within a statement.
//
// Integer, float and boolean literals are inlined into the statement
// text; strings and all other value kinds become bind variables, so
// user-supplied text never reaches the SQL.
//
// # Execution
//
// A compiled Expression is self-contained and can be executed on any
// dialect.ExecQuerier:
//
//	drv, err := sql.Open("postgres", dsn)
//	rows := &sql.Rows{}
//	err = drv.Query(ctx, expr.Statement, expr.Args(), rows)
//
// # Caching
//
// CachedCompile stores compiled expressions in a celer.Cache keyed by a
// fingerprint of the compilation inputs, for hot fetch specifications
// compiled per request.
package sql
