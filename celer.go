// Package celer is the runtime core of an object-relational mapper: it
// parses and evaluates qualifier predicates, compiles them together with
// fetch options into dialect-correct SQL with ordered bind variables, and
// synchronizes entity models against schema snapshots.
//
// The package itself holds only the pieces shared by the sub-packages: the
// closed literal value representation, the common error taxonomy, and the
// statement-cache contract. The interesting entry points live below:
//
//   - qualifier: predicate AST, textual grammar parser and in-memory evaluator
//   - model: entity/relationship metadata and fetch specifications
//   - dialect: database capability descriptors and driver contracts
//   - dialect/sql: the SQL expression compiler and driver adapter
//   - dialect/sql/schema: schema diffing and DDL planning
//   - privacy: access policies evaluated before compilation
//   - compiler/gen: Go struct generation from the entity model
package celer
