package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/celer"
	"github.com/syssam/celer/dialect"
)

// columnType maps a value kind to the dialect's column type.
func columnType(c *Column, feats dialect.Features) string {
	switch feats.Name {
	case dialect.Postgres:
		return pgType(c)
	case dialect.MySQL:
		return mysqlType(c)
	default:
		return sqliteType(c)
	}
}

func pgType(c *Column) string {
	switch c.Type {
	case celer.KindBool:
		return "boolean"
	case celer.KindInt:
		return "bigint"
	case celer.KindFloat:
		return "double precision"
	case celer.KindText:
		if c.Size > 0 {
			return fmt.Sprintf("varchar(%d)", c.Size)
		}
		return "varchar"
	case celer.KindBytes:
		return "bytea"
	case celer.KindTime:
		return "timestamptz"
	case celer.KindUUID:
		return "uuid"
	default:
		return "varchar"
	}
}

func mysqlType(c *Column) string {
	switch c.Type {
	case celer.KindBool:
		return "boolean"
	case celer.KindInt:
		return "bigint"
	case celer.KindFloat:
		return "double"
	case celer.KindText:
		size := c.Size
		if size == 0 {
			size = 255
		}
		if size > 1<<16-1 {
			return "longtext"
		}
		return fmt.Sprintf("varchar(%d)", size)
	case celer.KindBytes:
		return "blob"
	case celer.KindTime:
		return "timestamp"
	case celer.KindUUID:
		return "char(36)"
	default:
		return "varchar(255)"
	}
}

func sqliteType(c *Column) string {
	switch c.Type {
	case celer.KindBool:
		return "bool"
	case celer.KindInt:
		return "integer"
	case celer.KindFloat:
		return "real"
	case celer.KindBytes:
		return "blob"
	case celer.KindTime:
		return "datetime"
	case celer.KindUUID:
		return "uuid"
	default:
		return "text"
	}
}

// columnDDL renders the column definition fragment used inside CREATE
// TABLE and ADD/MODIFY COLUMN statements.
func columnDDL(c *Column, feats dialect.Features) string {
	var b strings.Builder
	b.WriteString(feats.Quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(columnType(c, feats))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultLiteral(c.Default))
	}
	return b.String()
}

// defaultLiteral renders a DEFAULT clause value. Strings are quoted with
// doubled single quotes; everything else uses its native representation.
func defaultLiteral(v any) string {
	switch v := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
