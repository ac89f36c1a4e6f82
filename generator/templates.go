package generator

const headerTemplate = `{{define "header" -}}
// Code generated by sqltmpl. DO NOT EDIT.
{{- if .Source}}
// source: {{.Source}}
{{- end}}

package {{.Package}}

import (
	"context"
	"database/sql"
)
{{- end}}`

const dbtxTemplate = `{{define "dbtx"}}
// DBTX is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
{{end}}`

const rowTemplate = `{{define "row"}}
{{- if .Shared}}
// {{.Name}} is a row of the {{.Table}} table.
{{- else}}
// {{.Name}} is a row read from the {{.Table}} table.
{{- end}}
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} {{structTag .Column}}
{{- end}}
}
{{end}}`

const sharedTemplate = `{{template "header" .}}
{{template "dbtx" .}}
{{- range .Rows}}
{{template "row" .}}
{{- end}}
`

const classTemplate = `{{template "header" .}}
{{if .DBTX}}{{template "dbtx" .}}{{end}}
{{- range .Rows}}
{{template "row" .}}
{{- end}}
type {{.ClassName}} struct {
	db DBTX
}

// New{{.ClassName}} returns a {{.ClassName}} running its statements on db.
func New{{.ClassName}}(db DBTX) *{{.ClassName}} {
	return &{{.ClassName}}{db: db}
}

// WithTx returns a {{.ClassName}} running its statements in tx.
func (q *{{.ClassName}}) WithTx(tx *sql.Tx) *{{.ClassName}} {
	return &{{.ClassName}}{db: tx}
}
{{range .Methods}}
const {{.Const}} = {{goString .SQL}}

// {{.GoName}} runs the {{.Statement}} statement {{.Name}}.
{{- if and .Query .Row}}
func (q *{{$.ClassName}}) {{.GoName}}({{joinParamsSignature .Params}}) ([]{{.Row.Name}}, error) {
	rows, err := q.db.QueryContext(ctx, {{.Const}}{{joinArgs .Args}})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []{{.Row.Name}}

	for rows.Next() {
		var i {{.Row.Name}}
		if err := rows.Scan({{scanArgs .Row}}); err != nil {
			return nil, err
		}

		items = append(items, i)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
{{- else if .Query}}
// The caller closes the returned rows.
func (q *{{$.ClassName}}) {{.GoName}}({{joinParamsSignature .Params}}) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, {{.Const}}{{joinArgs .Args}})
}
{{- else}}
func (q *{{$.ClassName}}) {{.GoName}}({{joinParamsSignature .Params}}) (sql.Result, error) {
	return q.db.ExecContext(ctx, {{.Const}}{{joinArgs .Args}})
}
{{- end}}
{{end}}`
