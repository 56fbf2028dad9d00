package introspect

import (
	"strings"

	"github.com/genforge/genforge/internal/domain"
)

// mapKind normalizes a driver-reported column type to a domain.ColumnKind.
// Declared types ("VARCHAR(255)") and information_schema data types
// ("character varying") both land here.
func mapKind(dbType string) domain.ColumnKind {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if t == "tinyint(1)" {
		// MySQL's boolean convention
		return domain.KindBool
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch t {
	case "bool", "boolean":
		return domain.KindBool
	case "bigint", "int8", "bigserial":
		return domain.KindBigInt
	case "int", "integer", "int2", "int4", "smallint", "mediumint", "tinyint",
		"serial", "smallserial":
		return domain.KindInt
	case "real", "float", "float4", "float8", "double", "double precision":
		return domain.KindFloat
	case "numeric", "decimal", "money":
		return domain.KindDecimal
	case "date", "datetime", "timestamp", "timestamptz":
		return domain.KindTime
	case "blob", "tinyblob", "mediumblob", "longblob", "bytea", "binary", "varbinary":
		return domain.KindBytes
	case "uuid", "json", "jsonb", "xml", "enum", "set", "clob":
		return domain.KindText
	}

	switch {
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "time"):
		return domain.KindTime
	case strings.Contains(t, "bigint"), strings.Contains(t, "big int"):
		return domain.KindBigInt
	case strings.Contains(t, "int"):
		return domain.KindInt
	case strings.Contains(t, "char"), strings.Contains(t, "text"):
		return domain.KindText
	case strings.Contains(t, "blob"):
		return domain.KindBytes
	}
	return domain.KindText
}
