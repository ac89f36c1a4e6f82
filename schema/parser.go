// Package schema reads CREATE TABLE statements and maps their column types to
// Go types.
//
// A Parser accumulates the tables of every schema document loaded into it,
// later documents replacing same-named tables. It is meant to be filled once
// and then queried: loading is not safe for concurrent use, while lookups on
// a Parser that is no longer being loaded are.
package schema

import (
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/sqlerr"
	"github.com/kalbasit/sqltmpl/sqltoken"
)

// Column is a column definition.
type Column struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	NotNull    bool   `yaml:"not_null,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
}

// Nullable reports whether the column may hold NULL.
func (c Column) Nullable() bool { return !c.NotNull && !c.PrimaryKey }

// Table is a table definition with its columns in declaration order.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// Column returns the column called name, ignoring case.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}

	return Column{}, false
}

// Option configures a Parser.
type Option func(*Parser)

// WithTypeMapping sets the type mapping instead of the default one.
func WithTypeMapping(m TypeMapping) Option {
	return func(p *Parser) {
		p.mapping = make(TypeMapping, len(m)+1)
		for k, v := range m {
			p.mapping[strings.ToUpper(k)] = v
		}

		if _, ok := p.mapping[DefaultKey]; !ok {
			p.mapping[DefaultKey] = AnyType
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// WithEncoding sets the encoding schema files are read with.
func WithEncoding(name string) Option {
	return func(p *Parser) { p.encoding = name }
}

// Parser holds the accumulated tables and the type mapping of a generation
// run.
type Parser struct {
	mapping  TypeMapping
	tables   map[string]*Table
	logger   *slog.Logger
	encoding string
}

// New returns an empty Parser using the default type mapping.
func New(opts ...Option) *Parser {
	p := &Parser{
		mapping: DefaultTypeMapping(),
		tables:  make(map[string]*Table),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// LoadTypeMapping replaces the type mapping with the one read from path, see
// the package level LoadTypeMapping.
func (p *Parser) LoadTypeMapping(path string) TypeMapping {
	p.mapping = LoadTypeMapping(path, p.logger)

	return p.mapping
}

// Mapping returns the type mapping in use.
func (p *Parser) Mapping() TypeMapping { return p.mapping }

// TargetType returns the Go type for sqlType.
func (p *Parser) TargetType(sqlType string) string { return p.mapping.Lookup(sqlType) }

// ColumnType returns the Go type of a column, looking table and column up
// without regard to case. Unknown tables and columns get the default type.
func (p *Parser) ColumnType(table, column string) string {
	t, ok := p.Table(table)
	if !ok {
		return p.mapping.Default()
	}

	c, ok := t.Column(column)
	if !ok {
		return p.mapping.Default()
	}

	return p.TargetType(c.Type)
}

// Table returns the table called name, ignoring case.
func (p *Parser) Table(name string) (*Table, bool) {
	t, ok := p.tables[strings.ToLower(name)]

	return t, ok
}

// TableNames returns the names of the loaded tables, sorted.
func (p *Parser) TableNames() []string {
	names := make([]string, 0, len(p.tables))
	for _, t := range p.tables {
		names = append(names, t.Name)
	}

	sort.Strings(names)

	return names
}

// Clear forgets every loaded table. The type mapping is kept.
func (p *Parser) Clear() { p.tables = make(map[string]*Table) }

// LoadSchemaText parses text and merges its tables.
func (p *Parser) LoadSchemaText(text string) error {
	tables, err := p.ParseText(text)
	if err != nil {
		return err
	}

	for key, t := range tables {
		p.tables[key] = t
	}

	return nil
}

// LoadSchemaFile reads path and merges its tables.
func (p *Parser) LoadSchemaFile(path string) error {
	text, err := fileio.ReadText(path, p.encoding)
	if err != nil {
		return err
	}

	if err := p.LoadSchemaText(text); err != nil {
		return sqlerr.WithPath(err, path)
	}

	p.logger.Debug("loaded schema", "path", path, "tables", len(p.tables))

	return nil
}

// LoadSchemaForTemplate loads the schema belonging to the template at
// templatePath: override when it is set, otherwise the first existing
// companion file among "<name>.schema" and "<name>.sql.schema" next to the
// template. It returns the path of the loaded file, or "" when there was
// none.
func (p *Parser) LoadSchemaForTemplate(templatePath, override string) (string, error) {
	if override != "" {
		return override, p.LoadSchemaFile(override)
	}

	for _, candidate := range CompanionPaths(templatePath) {
		if fileio.Exists(candidate) {
			return candidate, p.LoadSchemaFile(candidate)
		}
	}

	p.logger.Debug("no schema found for template", "path", templatePath)

	return "", nil
}

// CompanionPaths returns the schema files looked for next to a template.
func CompanionPaths(templatePath string) []string {
	stem := strings.TrimSuffix(templatePath, filepath.Ext(templatePath))

	return []string{stem + ".schema", templatePath + ".schema"}
}

// ParseText returns the tables defined in text keyed by lower-cased name. It
// does not change the Parser. Statements that are not well formed CREATE
// TABLE statements are skipped; a CREATE TABLE whose body has no column
// definition is an ErrSchema.
func (p *Parser) ParseText(text string) (map[string]*Table, error) {
	tables := make(map[string]*Table)

	for _, stmt := range sqltoken.SplitStatements(sqltoken.StripComments(text), true) {
		name, body, ok, reason := matchCreateTable(stmt)
		if !ok {
			if reason != "" {
				p.logger.Debug("skipping statement", "reason", reason, "statement", firstLineOf(stmt))
			}

			continue
		}

		columns := parseColumns(body)
		if len(columns) == 0 {
			return nil, sqlerr.Schema("", "table %q has no valid column definitions", name)
		}

		tables[strings.ToLower(name)] = &Table{Name: name, Columns: columns}
	}

	return tables, nil
}

// matchCreateTable recognizes
//
//	CREATE [TEMP|TEMPORARY] TABLE [IF NOT EXISTS] [qualifier.]name ( body ) ...
//
// and returns the bare table name and the body. reason explains why a
// CREATE statement did not match and is empty for other statements.
//
//nolint:cyclop
func matchCreateTable(stmt string) (string, string, bool, string) {
	toks, err := sqltoken.Tokenize(stmt)
	if err != nil {
		return "", "", false, "unterminated literal"
	}

	toks = sqltoken.Meaningful(toks)

	if len(toks) == 0 || !toks[0].Is("CREATE") {
		return "", "", false, ""
	}

	i := 1
	if i < len(toks) && (toks[i].Is("TEMP") || toks[i].Is("TEMPORARY")) {
		i++
	}

	if i >= len(toks) || !toks[i].Is("TABLE") {
		return "", "", false, ""
	}

	i++

	if i < len(toks) && toks[i].Is("IF") {
		if i+2 >= len(toks) || !toks[i+1].Is("NOT") || !toks[i+2].Is("EXISTS") {
			return "", "", false, "incomplete IF NOT EXISTS"
		}

		i += 3
	}

	if i >= len(toks) || !isName(toks[i]) {
		return "", "", false, "missing table name"
	}

	name := toks[i].Value
	i++

	if i < len(toks) && toks[i].IsPunct(".") {
		if i+1 >= len(toks) || !isName(toks[i+1]) {
			return "", "", false, "missing table name after qualifier"
		}

		name = toks[i+1].Value
		i += 2
	}

	if i >= len(toks) || !toks[i].IsPunct("(") {
		return "", "", false, "missing column list"
	}

	open := toks[i]
	depth := 0

	for _, t := range toks[i:] {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
			if depth == 0 {
				body := stmt[open.End:t.Pos]
				if strings.TrimSpace(body) == "" {
					return "", "", false, "empty column list"
				}

				return name, body, true, ""
			}
		}
	}

	return "", "", false, "unbalanced parentheses"
}

func isName(t sqltoken.Token) bool {
	return t.Kind == sqltoken.Word || t.Kind == sqltoken.QuotedIdent
}

// parseColumns reads the column definitions of a table body, skipping table
// constraints and entries without a type.
func parseColumns(body string) []Column {
	var columns []Column

	for _, def := range splitTopLevel(body) {
		toks, _ := sqltoken.Tokenize(def)
		toks = sqltoken.Meaningful(toks)

		if len(toks) < 2 || isConstraint(toks) || !isName(toks[0]) || toks[1].Kind != sqltoken.Word {
			continue
		}

		c := Column{Name: toks[0].Value, Type: NormalizeType(toks[1].Value)}

		for j := 2; j+1 < len(toks); j++ {
			switch {
			case toks[j].Is("NOT") && toks[j+1].Is("NULL"):
				c.NotNull = true
			case toks[j].Is("PRIMARY") && toks[j+1].Is("KEY"):
				c.PrimaryKey = true
			}
		}

		columns = append(columns, c)
	}

	return columns
}

func isConstraint(toks []sqltoken.Token) bool {
	first := toks[0]

	switch {
	case first.Is("CONSTRAINT"), first.Is("UNIQUE"), first.Is("CHECK"):
		return true
	case first.Is("PRIMARY"), first.Is("FOREIGN"):
		return toks[1].Is("KEY")
	case first.Is("KEY"), first.Is("INDEX"), first.Is("FULLTEXT"), first.Is("SPATIAL"):
		// KEY idx (col) and INDEX (col), but not a column called key with a
		// sized type such as VARCHAR(10)
		if toks[1].IsPunct("(") || toks[1].Is("KEY") || toks[1].Is("INDEX") {
			return true
		}

		return len(toks) > 3 && toks[2].IsPunct("(") && isName(toks[3])
	}

	return false
}

// splitTopLevel splits body at commas outside parentheses and literals.
func splitTopLevel(body string) []string {
	toks, _ := sqltoken.Tokenize(body)

	var (
		parts []string
		depth int
		start int
	)

	for _, t := range toks {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case t.IsPunct(",") && depth == 0:
			parts = append(parts, body[start:t.Pos])
			start = t.End
		}
	}

	return append(parts, body[start:])
}

func firstLineOf(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")

	return line
}
