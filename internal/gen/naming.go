package gen

import (
	"fmt"
	"strings"

	"github.com/genforge/genforge/internal/domain"
)

// commonInitialisms are upper-cased wholesale when deriving Go identifiers,
// matching the naming the rest of the ecosystem lints for.
var commonInitialisms = map[string]bool{
	"API": true, "DB": true, "HTTP": true, "ID": true, "JSON": true,
	"SQL": true, "UI": true, "URL": true, "UUID": true, "XML": true,
}

// exportedName converts a snake_case database identifier into an exported Go
// identifier: "user_id" → "UserID", "created_at" → "CreatedAt".
func exportedName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(parts) == 0 {
		return "X"
	}
	for i, p := range parts {
		if up := strings.ToUpper(p); commonInitialisms[up] {
			parts[i] = up
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

// singular trims the plural suffix from a table name so "users" models a
// User. Irregular plurals come through untouched.
func singular(s string) string {
	switch {
	case len(s) > 3 && strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case len(s) > 3 && strings.HasSuffix(s, "ses"):
		return s[:len(s)-2]
	case len(s) > 1 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss"):
		return s[:len(s)-1]
	}
	return s
}

// entityName derives the exported model type name for a table.
func entityName(table string) string {
	return exportedName(singular(table))
}

// stagedType maps a column to the Go type the staged pipeline emits.
// Nullable columns become pointers; []byte is nil-able already.
func stagedType(c domain.Column) string {
	var base string
	switch c.Kind {
	case domain.KindInt:
		base = "int"
	case domain.KindBigInt:
		base = "int64"
	case domain.KindFloat:
		base = "float64"
	case domain.KindDecimal:
		// Decimals stay textual so precision survives the round trip.
		base = "string"
	case domain.KindBool:
		base = "bool"
	case domain.KindTime:
		base = "time.Time"
	case domain.KindBytes:
		return "[]byte"
	default:
		base = "string"
	}
	if c.Nullable {
		return "*" + base
	}
	return base
}

// legacyType maps a column to the Go type the legacy pipeline emits.
// Nullable columns use the database/sql wrapper types.
func legacyType(c domain.Column) string {
	if c.Kind == domain.KindBytes {
		return "[]byte"
	}
	if c.Nullable {
		switch c.Kind {
		case domain.KindInt, domain.KindBigInt:
			return "sql.NullInt64"
		case domain.KindFloat:
			return "sql.NullFloat64"
		case domain.KindBool:
			return "sql.NullBool"
		case domain.KindTime:
			return "sql.NullTime"
		default:
			return "sql.NullString"
		}
	}
	switch c.Kind {
	case domain.KindInt:
		return "int"
	case domain.KindBigInt:
		return "int64"
	case domain.KindFloat:
		return "float64"
	case domain.KindBool:
		return "bool"
	case domain.KindTime:
		return "time.Time"
	default:
		return "string"
	}
}

// fieldTag builds the db/json struct tag for a staged model field.
func fieldTag(c domain.Column) string {
	jsonName := c.Name
	if c.Nullable {
		jsonName += ",omitempty"
	}
	return fmt.Sprintf("`db:%q json:%q`", c.Name, jsonName)
}
