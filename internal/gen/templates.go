package gen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/genforge/genforge/internal/domain"
)

// ─── Render Context ─────────────────────────────────────────────────────────

// columnContext is one struct field as the templates see it.
type columnContext struct {
	Field  string // exported Go field name
	DBName string
	GoType string
	Tag    string // full struct tag with backquotes, staged only
}

// fileContext carries everything a template needs, precomputed so the
// template sources stay declarative.
type fileContext struct {
	Package string
	Entity  string // exported model type name
	Table   string
	Columns []columnContext
	Imports []string

	// Store fields, staged pipeline only.
	StoreType string
	HasPK     bool
	PKField   string
	PKType    string
	PKName    string

	GetQuery    string
	ListQuery   string
	InsertQuery string
	DeleteQuery string
	ScanList    string // "&m.ID, &m.Email, ..."
	InsertArgs  string // "m.ID, m.Email, ..."
}

// legacyContext builds the render context for the legacy single-file output.
func legacyContext(req domain.GenerationRequest) fileContext {
	ctx := fileContext{
		Package: req.Package,
		Entity:  entityName(req.Schema.Table),
		Table:   req.Schema.Table,
	}

	imports := map[string]bool{}
	for _, col := range req.Schema.Columns {
		goType := legacyType(col)
		if strings.HasPrefix(goType, "sql.") {
			imports["database/sql"] = true
		}
		if goType == "time.Time" {
			imports["time"] = true
		}
		ctx.Columns = append(ctx.Columns, columnContext{
			Field:  exportedName(col.Name),
			DBName: col.Name,
			GoType: goType,
		})
	}
	ctx.Imports = sortedImports(imports)
	ctx.ScanList = scanList(ctx.Columns)
	return ctx
}

// stagedModelContext builds the render context for the staged model file.
func stagedModelContext(req domain.GenerationRequest) fileContext {
	ctx := fileContext{
		Package: req.Package,
		Entity:  entityName(req.Schema.Table),
		Table:   req.Schema.Table,
	}

	imports := map[string]bool{}
	for _, col := range req.Schema.Columns {
		goType := stagedType(col)
		if strings.Contains(goType, "time.Time") {
			imports["time"] = true
		}
		ctx.Columns = append(ctx.Columns, columnContext{
			Field:  exportedName(col.Name),
			DBName: col.Name,
			GoType: goType,
			Tag:    fieldTag(col),
		})
	}
	ctx.Imports = sortedImports(imports)
	return ctx
}

// stagedStoreContext builds the render context for the staged store file,
// including the fully assembled SQL for each method.
func stagedStoreContext(req domain.GenerationRequest) fileContext {
	ctx := stagedModelContext(req)
	ctx.StoreType = ctx.Entity + "Store"
	ctx.Imports = []string{"context", "database/sql"}

	names := make([]string, len(req.Schema.Columns))
	for i, col := range req.Schema.Columns {
		names[i] = col.Name
	}
	selectList := strings.Join(names, ", ")
	ctx.ScanList = scanList(ctx.Columns)
	ctx.InsertArgs = insertArgs(ctx.Columns)

	if pk, ok := req.Schema.PrimaryKey(); ok {
		ctx.HasPK = true
		ctx.PKName = pk.Name
		ctx.PKField = exportedName(pk.Name)
		ctx.PKType = stagedType(pk)
	}

	ph := placeholders(req.Dialect, len(names))
	ctx.InsertQuery = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ctx.Table, selectList, strings.Join(ph, ", "))

	listSuffix := ""
	if ctx.HasPK {
		listSuffix = " ORDER BY " + ctx.PKName
	}
	ctx.ListQuery = fmt.Sprintf("SELECT %s FROM %s%s LIMIT %s",
		selectList, ctx.Table, listSuffix, placeholder(req.Dialect, 1))

	if ctx.HasPK {
		ctx.GetQuery = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			selectList, ctx.Table, ctx.PKName, placeholder(req.Dialect, 1))
		ctx.DeleteQuery = fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			ctx.Table, ctx.PKName, placeholder(req.Dialect, 1))
	}
	return ctx
}

// placeholder returns the n-th SQL parameter marker for the dialect.
func placeholder(dialect string, n int) string {
	if dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func placeholders(dialect string, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = placeholder(dialect, i+1)
	}
	return out
}

func sortedImports(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for imp := range set {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

func scanList(cols []columnContext) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "&m." + c.Field
	}
	return strings.Join(parts, ", ")
}

func insertArgs(cols []columnContext) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "m." + c.Field
	}
	return strings.Join(parts, ", ")
}

// render executes a template into memory.
func render(tmpl *template.Template, ctx fileContext) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// ─── Template Sources ───────────────────────────────────────────────────────

var legacyTemplate = template.Must(template.New("legacy").Parse(
	`// Code generated by genforge (legacy pipeline). DO NOT EDIT.
// Source table: {{.Table}}

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.Entity}} is the row model for the {{printf "%q" .Table}} table.
type {{.Entity}} struct {
{{- range .Columns}}
	{{.Field}} {{.GoType}}
{{- end}}
}

// TableName returns the source table name.
func ({{.Entity}}) TableName() string { return {{printf "%q" .Table}} }

// Scan{{.Entity}} scans one row in declared column order.
func Scan{{.Entity}}(row interface{ Scan(...any) error }) ({{.Entity}}, error) {
	var m {{.Entity}}
	err := row.Scan({{.ScanList}})
	return m, err
}
`))

var stagedModelTemplate = template.Must(template.New("staged_model").Parse(
	`// Code generated by genforge (staged pipeline). DO NOT EDIT.
// Source table: {{.Table}}

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.Entity}} is the row model for the {{printf "%q" .Table}} table.
type {{.Entity}} struct {
{{- range .Columns}}
	{{.Field}} {{.GoType}} {{.Tag}}
{{- end}}
}

// TableName returns the source table name.
func ({{.Entity}}) TableName() string { return {{printf "%q" .Table}} }
`))

var stagedStoreTemplate = template.Must(template.New("staged_store").Parse(
	`// Code generated by genforge (staged pipeline). DO NOT EDIT.
// Source table: {{.Table}}

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.StoreType}} provides row access for the {{printf "%q" .Table}} table.
type {{.StoreType}} struct {
	db *sql.DB
}

// New{{.StoreType}} wraps an open database handle.
func New{{.StoreType}}(db *sql.DB) *{{.StoreType}} {
	return &{{.StoreType}}{db: db}
}
{{if .HasPK}}
// Get fetches one row by primary key.
func (s *{{.StoreType}}) Get(ctx context.Context, {{.PKName}} {{.PKType}}) ({{.Entity}}, error) {
	row := s.db.QueryRowContext(ctx, {{printf "%q" .GetQuery}}, {{.PKName}})
	var m {{.Entity}}
	err := row.Scan({{.ScanList}})
	return m, err
}
{{end}}
// List returns up to limit rows.
func (s *{{.StoreType}}) List(ctx context.Context, limit int) ([]{{.Entity}}, error) {
	rows, err := s.db.QueryContext(ctx, {{printf "%q" .ListQuery}}, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []{{.Entity}}
	for rows.Next() {
		var m {{.Entity}}
		if err := rows.Scan({{.ScanList}}); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Insert writes one row.
func (s *{{.StoreType}}) Insert(ctx context.Context, m {{.Entity}}) error {
	_, err := s.db.ExecContext(ctx, {{printf "%q" .InsertQuery}}, {{.InsertArgs}})
	return err
}
{{if .HasPK}}
// Delete removes one row by primary key.
func (s *{{.StoreType}}) Delete(ctx context.Context, {{.PKName}} {{.PKType}}) error {
	_, err := s.db.ExecContext(ctx, {{printf "%q" .DeleteQuery}}, {{.PKName}})
	return err
}
{{end}}`))
