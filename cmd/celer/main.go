// Command celer compiles qualifiers against a YAML entity model and
// keeps database schemas in sync with it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/sqltool"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/celer/compiler/gen"
	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/dialect/sql"
	"github.com/syssam/celer/dialect/sql/schema"
	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "celer",
		Short:         "Entity model toolkit: qualifier compilation and schema synchronization",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(sqlCmd(), validateCmd(), diffCmd(), planCmd(), createCmd(), generateCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sqlCmd() *cobra.Command {
	var (
		entity      string
		dialectName string
		limit       int
		offset      int
		orderings   []string
		distinct    bool
		lock        bool
	)
	cmd := &cobra.Command{
		Use:   "sql <model-dir> <qualifier>",
		Short: "Compile a qualifier into a SELECT statement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.LoadDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, ok := m.Entity(entity)
			if !ok {
				return fmt.Errorf("unknown entity %q", entity)
			}
			q, err := qualifier.Parse(args[1])
			if err != nil {
				return err
			}
			fetch := &model.FetchSpecification{
				Entity:    entity,
				Qualifier: q,
				Limit:     limit,
				Offset:    offset,
				Distinct:  distinct,
				Locks:     lock,
			}
			for _, o := range orderings {
				if key, ok := strings.CutPrefix(o, "-"); ok {
					fetch.SortOrderings = append(fetch.SortOrderings, model.Desc(key))
				} else {
					fetch.SortOrderings = append(fetch.SortOrderings, model.Asc(o))
				}
			}
			expr, err := sql.Compile(e, fetch, dialect.FeaturesFor(dialectName))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr.Statement)
			for i, arg := range expr.Args() {
				fmt.Fprintf(cmd.OutOrStdout(), "  $%d = %v\n", i+1, arg)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Entity the qualifier applies to")
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", dialect.Postgres, "Target dialect: mysql, postgres or sqlite")
	cmd.Flags().IntVar(&limit, "limit", 0, "LIMIT value, 0 for none")
	cmd.Flags().IntVar(&offset, "offset", 0, "OFFSET value, 0 for none")
	cmd.Flags().StringArrayVar(&orderings, "order", nil, "Sort key, prefix with - for descending (repeatable)")
	cmd.Flags().BoolVar(&distinct, "distinct", false, "SELECT DISTINCT")
	cmd.Flags().BoolVar(&lock, "lock", false, "Append FOR UPDATE where supported")
	cobra.CheckErr(cmd.MarkFlagRequired("entity"))
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model-dir>",
		Short: "Validate the model and its derived schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := loadTables(cmd, args[0])
			if err != nil {
				return err
			}
			result := schema.ValidateSchema(tables)
			fmt.Fprintln(cmd.OutOrStdout(), result)
			if result.HasErrors() {
				return fmt.Errorf("schema has %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
	return cmd
}

func diffCmd() *cobra.Command {
	var (
		dialectName string
		unsafe      bool
	)
	cmd := &cobra.Command{
		Use:   "diff <old-model-dir> <new-model-dir>",
		Short: "Print the DDL migrating the old model to the new one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := loadTables(cmd, args[0])
			if err != nil {
				return err
			}
			desired, err := loadTables(cmd, args[1])
			if err != nil {
				return err
			}
			var opts []schema.ValidateOption
			if unsafe {
				opts = append(opts,
					schema.AllowDropTable(),
					schema.AllowDropColumn(),
					schema.AllowDropIndex(),
					schema.AllowNullToNotNull(),
				)
			}
			result := schema.ValidateDiff(current, desired, opts...)
			if result.HasErrors() {
				fmt.Fprintln(cmd.ErrOrStderr(), result)
				return fmt.Errorf("refusing to plan breaking changes; re-run with --unsafe to force")
			}
			if result.HasWarnings() {
				fmt.Fprintln(cmd.ErrOrStderr(), result)
			}
			stmts, err := schema.Diff(current, desired, dialect.FeaturesFor(dialectName))
			if err != nil {
				return err
			}
			for _, s := range stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", s.Cmd)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", dialect.Postgres, "Target dialect")
	cmd.Flags().BoolVar(&unsafe, "unsafe", false, "Allow breaking changes (drops, NULL rule tightening)")
	return cmd
}

func planCmd() *cobra.Command {
	var (
		dialectName string
		dirPath     string
		name        string
		format      string
	)
	cmd := &cobra.Command{
		Use:   "plan <model-dir>",
		Short: "Write a versioned migration creating the model from scratch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := loadTables(cmd, args[0])
			if err != nil {
				return err
			}
			dir, err := migrationDir(format, dirPath)
			if err != nil {
				return err
			}
			m, err := schema.NewMigrate(nil,
				schema.WithFeatures(dialect.FeaturesFor(dialectName)),
				schema.WithDir(dir),
			)
			if err != nil {
				return err
			}
			return m.NamedDiff(cmd.Context(), name, tables...)
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", dialect.Postgres, "Target dialect")
	cmd.Flags().StringVar(&dirPath, "dir", "migrations", "Migration directory")
	cmd.Flags().StringVar(&name, "name", "changes", "Migration name")
	cmd.Flags().StringVar(&format, "format", "golang-migrate", "Migration file format: golang-migrate, goose, dbmate, flyway or liquibase")
	return cmd
}

func createCmd() *cobra.Command {
	var (
		dialectName string
		dsn         string
		dryRun      bool
		verbose     bool
		slowMs      int
	)
	cmd := &cobra.Command{
		Use:   "create <model-dir>",
		Short: "Create the model's tables on a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := loadTables(cmd, args[0])
			if err != nil {
				return err
			}
			if dryRun {
				stmts, err := schema.CreateAll(tables, dialect.FeaturesFor(dialectName))
				if err != nil {
					return err
				}
				for _, s := range stmts {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", s.Cmd)
				}
				return nil
			}
			drv, err := sql.Open(dialectName, dsn)
			if err != nil {
				return err
			}
			defer drv.Close()
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			stats := sql.NewStatsDriver(drv,
				sql.WithSlowThreshold(time.Duration(slowMs)*time.Millisecond),
				sql.WithSlowQueryLog(logger),
			)
			var exec dialect.Driver = stats
			if verbose {
				exec = dialect.Debug(stats, logger)
			}
			m, err := schema.NewMigrate(exec, schema.WithFeatures(dialect.FeaturesFor(dialectName)))
			if err != nil {
				return err
			}
			if err := m.Create(cmd.Context(), tables...); err != nil {
				return err
			}
			snap := stats.QueryStats().Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "created %d table(s): %s\n", len(tables), snap.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", dialect.Postgres, "Target dialect")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database connection string")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of executing them")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every statement")
	cmd.Flags().IntVar(&slowMs, "slow-ms", 200, "Slow query log threshold in milliseconds")
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		outDir string
		pkg    string
	)
	cmd := &cobra.Command{
		Use:   "generate <model-dir>",
		Short: "Generate Go structs for the model's entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.LoadDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := gen.New(m, outDir).WithPackage(pkg).Generate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d entit(ies) in %s\n", len(m.Entities), outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "gen", "Output directory")
	cmd.Flags().StringVar(&pkg, "pkg", "", "Output package name, defaults to the directory name")
	return cmd
}

func loadTables(cmd *cobra.Command, dir string) ([]*schema.Table, error) {
	m, err := model.LoadDir(cmd.Context(), dir)
	if err != nil {
		return nil, err
	}
	return schema.Tables(m)
}

func migrationDir(format, path string) (migrate.Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	switch format {
	case "golang-migrate":
		return sqltool.NewGolangMigrateDir(path)
	case "goose":
		return sqltool.NewGooseDir(path)
	case "dbmate":
		return sqltool.NewDBMateDir(path)
	case "flyway":
		return sqltool.NewFlywayDir(path)
	case "liquibase":
		return sqltool.NewLiquibaseDir(path)
	default:
		return nil, fmt.Errorf("unknown migration format %q", format)
	}
}
