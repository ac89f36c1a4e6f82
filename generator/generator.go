// Package generator renders SQL templates into Go data-access code: one file
// per template declaring a type with one method per statement.
package generator

import (
	"bytes"
	"context"
	"go/token"
	"io"
	"log/slog"
	"path/filepath"
	"text/template"

	"golang.org/x/sync/errgroup"

	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/infer"
	"github.com/kalbasit/sqltmpl/schema"
	"github.com/kalbasit/sqltmpl/sqlerr"
	"github.com/kalbasit/sqltmpl/sqlfile"
)

var templates = template.Must(template.New("sqltmpl").Funcs(template.FuncMap{
	"joinParamsSignature": joinParamsSignature,
	"joinArgs":            joinArgs,
	"scanArgs":            scanArgs,
	"goString":            goString,
	"structTag":           structTag,
}).Parse(headerTemplate + dbtxTemplate + rowTemplate))

var (
	classTmpl  = template.Must(template.Must(templates.Clone()).New("class").Parse(classTemplate))
	sharedTmpl = template.Must(template.Must(templates.Clone()).New("shared").Parse(sharedTemplate))
)

// Generator turns templates into Go source. A Generator is not safe for
// concurrent use; GenerateAll parallelizes internally.
type Generator struct {
	pkg         string
	dialect     Dialect
	validate    bool
	concurrency int
	outputDir   string
	schemaFile  string
	encoding    string
	logger      *slog.Logger
	schema      *schema.Parser
}

// Option configures a Generator.
type Option func(*Generator)

// WithPackage sets the package clause of the generated files.
func WithPackage(name string) Option {
	return func(g *Generator) { g.pkg = name }
}

// WithDialect sets the placeholder syntax. The default is SQLite.
func WithDialect(d Dialect) Option {
	return func(g *Generator) { g.dialect = d }
}

// WithValidation makes every parameter of a statement that refers to known
// tables name one of their columns.
func WithValidation(enabled bool) Option {
	return func(g *Generator) { g.validate = enabled }
}

// WithConcurrency bounds the number of files GenerateAll renders at once.
func WithConcurrency(n int) Option {
	return func(g *Generator) { g.concurrency = n }
}

// WithOutputDir makes GenerateAll write the generated files to dir.
func WithOutputDir(dir string) Option {
	return func(g *Generator) { g.outputDir = dir }
}

// WithSchemaFile loads path instead of the companion schema of each template.
func WithSchemaFile(path string) Option {
	return func(g *Generator) { g.schemaFile = path }
}

// WithEncoding sets the encoding templates and schemas are read with.
func WithEncoding(name string) Option {
	return func(g *Generator) { g.encoding = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithSchema sets the schema parser, and with it the type mapping, used for
// type inference.
func WithSchema(p *schema.Parser) Option {
	return func(g *Generator) { g.schema = p }
}

// New returns a Generator.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		pkg:         DefaultPackage,
		dialect:     SQLite,
		concurrency: 1,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(g)
	}

	d, err := ParseDialect(string(g.dialect))
	if err != nil {
		return nil, err
	}

	g.dialect = d

	if !token.IsIdentifier(g.pkg) {
		return nil, sqlerr.Configuration("", nil, "package name %q is not a valid Go identifier", g.pkg)
	}

	if g.concurrency < 1 {
		g.concurrency = 1
	}

	if g.schema == nil {
		g.schema = schema.New(schema.WithLogger(g.logger), schema.WithEncoding(g.encoding))
	}

	return g, nil
}

// Schema returns the schema parser types are inferred against.
func (g *Generator) Schema() *schema.Parser { return g.schema }

// GenerateClass loads the schema of the template at path and returns the Go
// source of its class. The file declares the DBTX interface and the row
// types it uses, so it compiles on its own.
func (g *Generator) GenerateClass(path string) ([]byte, error) {
	if _, err := g.schema.LoadSchemaForTemplate(path, g.schemaFile); err != nil {
		return nil, err
	}

	data, err := g.prepare(path)
	if err != nil {
		return nil, err
	}

	data.DBTX = true

	return g.render(classTmpl, toSnakeCase(data.ClassName)+".go", data)
}

// GenerateAll generates the classes of paths as one package. Every schema is
// loaded before any file is rendered; files are then parsed and rendered
// concurrently. Table rows and the DBTX interface are declared once in an
// extra DBTXFileName output, returned last. The other outputs follow the
// order of paths.
func (g *Generator) GenerateAll(ctx context.Context, paths []string) ([]Output, error) {
	if err := g.loadSchemas(paths); err != nil {
		return nil, err
	}

	classes := make([]*ClassData, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, path := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			data, err := g.prepare(path)
			if err != nil {
				return err
			}

			classes[i] = data

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	shared, err := shareRows(paths, classes)
	if err != nil {
		return nil, err
	}

	outputs := make([]Output, len(paths), len(paths)+1)

	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, data := range classes {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			name := toSnakeCase(data.ClassName) + ".go"

			src, err := g.render(classTmpl, name, data)
			if err != nil {
				return sqlerr.WithPath(err, paths[i])
			}

			outputs[i] = Output{ClassName: data.ClassName, Template: paths[i], FileName: name, Source: src}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	src, err := g.render(sharedTmpl, DBTXFileName, &ClassData{Package: g.pkg, Rows: shared})
	if err != nil {
		return nil, err
	}

	outputs = append(outputs, Output{FileName: DBTXFileName, Source: src})

	if g.outputDir != "" {
		if err := g.write(outputs); err != nil {
			return nil, err
		}
	}

	return outputs, nil
}

// loadSchemas runs before any concurrent work: the schema parser is only
// read from afterwards.
func (g *Generator) loadSchemas(paths []string) error {
	if g.schemaFile != "" {
		return g.schema.LoadSchemaFile(g.schemaFile)
	}

	for _, path := range paths {
		loaded, err := g.schema.LoadSchemaForTemplate(path, "")
		if err != nil {
			return err
		}

		if loaded != "" {
			g.logger.Debug("loaded schema", "template", path, "schema", loaded)
		}
	}

	return nil
}

func (g *Generator) write(outputs []Output) error {
	for _, o := range outputs {
		path := filepath.Join(g.outputDir, o.FileName)
		if err := fileio.WriteText(path, string(o.Source)); err != nil {
			return err
		}

		g.logger.Info("generated file", "path", path, "class", o.ClassName)
	}

	return nil
}

// prepare parses the template at path and resolves everything its class is
// rendered from. It only reads from the schema parser.
func (g *Generator) prepare(path string) (*ClassData, error) {
	f, err := sqlfile.ParseFile(path, sqlfile.WithEncoding(g.encoding), sqlfile.WithLogger(g.logger))
	if err != nil {
		return nil, err
	}

	inferrer := infer.New(g.schema)
	data := &ClassData{
		Package:   g.pkg,
		Source:    filepath.Base(path),
		ClassName: toGoName(f.ClassName, true),
	}

	// Methods of the generated type that template methods must not shadow.
	goNames := map[string]string{"WithTx": "the generated WithTx method"}
	rows := make(map[string]*StructInfo)

	for _, m := range f.Methods {
		if g.validate {
			if err := inferrer.Validate(m.SQL, m.Parameters); err != nil {
				return nil, sqlerr.WithPath(err, path)
			}
		}

		mi, err := g.method(inferrer, m)
		if err != nil {
			return nil, sqlerr.WithPath(err, path)
		}

		if other, ok := goNames[mi.GoName]; ok {
			return nil, errGoNameClash(path, mi.GoName, other, m.Name)
		}

		goNames[mi.GoName] = m.Name

		if r := mi.Row; r != nil {
			// Another table may singularize to the same name.
			if existing, ok := rows[r.Name]; ok && r.Shared && existing.Table != r.Table {
				demote(r, mi.GoName)
			}

			existing, ok := rows[r.Name]

			switch {
			case !ok:
				rows[r.Name] = r
				data.Rows = append(data.Rows, r)
			case existing.Shared && r.Shared && existing.Table == r.Table:
				mi.Row = existing
			default:
				return nil, errGoNameClash(path, r.Name, existing.Table, r.Table)
			}
		}

		data.Methods = append(data.Methods, mi)
	}

	if _, ok := rows[data.ClassName]; ok {
		return nil, errGoNameClash(path, data.ClassName, f.ClassName, rows[data.ClassName].Table)
	}

	g.logger.Debug("prepared class", "path", path, "class", data.ClassName, "methods", len(data.Methods))

	return data, nil
}

func (g *Generator) method(inferrer *infer.Inferrer, m *sqlfile.Method) (MethodInfo, error) {
	rewritten, args, err := Rewrite(m.SQL, g.dialect)
	if err != nil {
		return MethodInfo{}, err
	}

	mi := MethodInfo{
		Name:      m.Name,
		GoName:    toGoName(m.Name, true),
		Const:     toGoName(m.Name, false) + "SQL",
		SQL:       rewritten,
		Statement: m.Statement.String(),
		Params:    []Param{{Name: "ctx", Type: typeContext}},
		Query:     m.IsFetch() || m.HasReturning,
	}

	goParams := make(map[string]string, len(m.Parameters))
	taken := make(map[string]string, len(m.Parameters))

	for _, p := range m.Parameters {
		name := paramName(p)
		if other, ok := taken[name]; ok {
			return MethodInfo{}, errGoNameClash("", name, other, p)
		}

		taken[name] = p
		goParams[p] = name

		mi.Params = append(mi.Params, Param{Name: name, Type: inferrer.Infer(m.SQL, p)})
	}

	for _, a := range args {
		mi.Args = append(mi.Args, goParams[a])
	}

	if mi.Query {
		mi.Row = g.row(m)
	}

	return mi, nil
}

// row returns the row type of a statement returning the columns of a single
// known table, or nil when its result columns cannot be resolved.
func (g *Generator) row(m *sqlfile.Method) *StructInfo {
	names := infer.TableNames(m.SQL)
	if len(names) != 1 {
		return nil
	}

	table, ok := g.schema.Table(names[0])
	if !ok {
		return nil
	}

	cols, ok := resultColumns(m.SQL, m.Kind)
	if !ok {
		return nil
	}

	s := &StructInfo{Table: table.Name}
	fieldNames := make(map[string]struct{})

	addField := func(c schema.Column, name string) bool {
		field := toGoName(name, true)
		if _, dup := fieldNames[field]; dup {
			return false
		}

		fieldNames[field] = struct{}{}
		s.Fields = append(s.Fields, FieldInfo{
			Name:   field,
			Type:   fieldType(g.schema.TargetType(c.Type), c.Nullable()),
			Column: name,
		})

		return true
	}

	for _, rc := range cols {
		if rc.star {
			for _, c := range table.Columns {
				if !addField(c, c.Name) {
					return nil
				}
			}

			continue
		}

		c, ok := table.Column(rc.column)
		if !ok {
			return nil
		}

		name := c.Name
		if rc.alias != "" {
			name = rc.alias
		}

		if !addField(c, name) {
			return nil
		}
	}

	if len(cols) == 1 && cols[0].star {
		s.Name = toGoName(toSingular(table.Name), true)
		s.Shared = true
	} else {
		s.Name = toGoName(m.Name, true) + "Row"
	}

	return s
}

// shareRows moves the rows covering a whole table out of the classes so they
// are declared once, and prefixes the other row names with their class when
// two classes would declare the same name.
func shareRows(paths []string, classes []*ClassData) ([]*StructInfo, error) {
	var shared []*StructInfo

	sharedByName := make(map[string]*StructInfo)
	classByName := make(map[string]int)
	partial := make(map[string]int)
	tableOf := make(map[string]string)

	for i, c := range classes {
		if j, ok := classByName[c.ClassName]; ok {
			return nil, errClassDefinedTwice(c.ClassName, paths[j], paths[i])
		}

		classByName[c.ClassName] = i

		if toSnakeCase(c.ClassName)+".go" == DBTXFileName {
			return nil, errGoNameClash(paths[i], DBTXFileName, c.ClassName, "the shared DBTX file")
		}

		for _, r := range c.Rows {
			if !r.Shared {
				partial[r.Name]++

				continue
			}

			if table, ok := tableOf[r.Name]; ok && table != r.Table {
				demote(r, c.rowMethod(r))
				partial[r.Name]++

				continue
			}

			tableOf[r.Name] = r.Table
		}
	}

	for _, c := range classes {
		var own []*StructInfo

		for _, r := range c.Rows {
			if !r.Shared {
				if partial[r.Name] > 1 {
					r.Name = c.ClassName + r.Name
				}

				own = append(own, r)

				continue
			}

			if _, ok := sharedByName[r.Name]; !ok {
				sharedByName[r.Name] = r
				shared = append(shared, r)
			}

			for i := range c.Methods {
				if c.Methods[i].Row == r {
					c.Methods[i].Row = sharedByName[r.Name]
				}
			}
		}

		c.Rows = own
	}

	for _, r := range shared {
		if i, ok := classByName[r.Name]; ok {
			return nil, errGoNameClash(paths[i], r.Name, classes[i].ClassName, r.Table)
		}
	}

	return shared, nil
}

// demote turns a row named after its table into a row of the method called
// goName.
func demote(r *StructInfo, goName string) {
	r.Shared = false
	r.Name = goName + "Row"
}

// rowMethod returns the Go name of the first method returning r.
func (c *ClassData) rowMethod(r *StructInfo) string {
	for _, m := range c.Methods {
		if m.Row == r {
			return m.GoName
		}
	}

	return c.ClassName
}

func (g *Generator) render(t *template.Template, filename string, data *ClassData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}

	src, err := formatSource(filename, buf.Bytes())
	if err != nil {
		g.logger.Debug("rendered source", "file", filename, "source", buf.String())

		return nil, err
	}

	return src, nil
}
