package domain

// ─── Schema Model ───────────────────────────────────────────────────────────
// Normalized view of a relational table, produced by the introspection layer
// and consumed by both generation pipelines.

// ColumnKind is the dialect-independent classification of a column type.
// Introspection maps raw database types onto these; templates map them
// onto Go types.
type ColumnKind string

const (
	KindText    ColumnKind = "text"
	KindInt     ColumnKind = "integer"
	KindBigInt  ColumnKind = "bigint"
	KindFloat   ColumnKind = "float"
	KindDecimal ColumnKind = "decimal"
	KindBool    ColumnKind = "boolean"
	KindTime    ColumnKind = "timestamp"
	KindBytes   ColumnKind = "bytes"
)

// Column describes one table column.
type Column struct {
	Name       string     `json:"name"`
	DBType     string     `json:"db_type"` // raw type as reported by the source
	Kind       ColumnKind `json:"kind"`
	Nullable   bool       `json:"nullable"`
	PrimaryKey bool       `json:"primary_key"`
}

// Schema describes one table to generate code for.
type Schema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// PrimaryKey returns the first primary-key column, if the table has one.
func (s Schema) PrimaryKey() (Column, bool) {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}
