// Package infer resolves the Go type of the named parameters of a statement.
//
// A parameter is resolved against the schema tables the statement refers to,
// first by a column of the same name, then by the column it is compared with
// in a WHERE or SET clause, and last by its name alone.
package infer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kalbasit/sqltmpl/schema"
	"github.com/kalbasit/sqltmpl/sqlerr"
	"github.com/kalbasit/sqltmpl/sqltoken"
)

// Source tells how a type was resolved.
type Source string

const (
	SourceColumn    Source = "column"
	SourceContext   Source = "context"
	SourceHeuristic Source = "heuristic"
	// SourceNone is used when the statement refers to no table at all.
	SourceNone Source = "none"
)

// Result is a resolved parameter type.
type Result struct {
	Type   string `yaml:"type"`
	Source Source `yaml:"source"`
	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column,omitempty"`
}

// Inferrer resolves parameter types against the tables of a schema.Parser.
// It only reads from the parser.
type Inferrer struct {
	schema *schema.Parser
}

// New returns an Inferrer reading tables from p.
func New(p *schema.Parser) *Inferrer {
	return &Inferrer{schema: p}
}

// Infer returns the Go type of the parameter param of sql.
func (i *Inferrer) Infer(sql, param string) string {
	return i.Resolve(sql, param).Type
}

// Resolve is Infer with the details of the resolution. When sql refers to no
// table the type is "any", whatever the parameter name.
func (i *Inferrer) Resolve(sql, param string) Result {
	names := TableNames(sql)
	if len(names) == 0 {
		return Result{Type: schema.AnyType, Source: SourceNone}
	}

	tables := i.knownTables(names)

	for _, t := range tables {
		if c, ok := t.Column(param); ok {
			return Result{Type: i.schema.TargetType(c.Type), Source: SourceColumn, Table: t.Name, Column: c.Name}
		}
	}

	if len(tables) > 0 {
		stripped := sqltoken.StripComments(sql)

		for _, t := range tables {
			for _, c := range t.Columns {
				if comparedWith(stripped, c.Name, param) {
					return Result{Type: i.schema.TargetType(c.Type), Source: SourceContext, Table: t.Name, Column: c.Name}
				}
			}
		}
	}

	return Result{Type: NameHeuristic(param), Source: SourceHeuristic}
}

func (i *Inferrer) knownTables(names []string) []*schema.Table {
	tables := make([]*schema.Table, 0, len(names))

	for _, name := range names {
		if t, ok := i.schema.Table(name); ok {
			tables = append(tables, t)
		}
	}

	return tables
}

// comparedWith reports whether sql compares column with :param in a WHERE or
// SET clause, or in a condition or assignment chained to one with AND, OR or
// a comma. The column may be qualified by a table name or alias.
func comparedWith(sql, column, param string) bool {
	pattern := `(?i)(?:(?:\bWHERE|\bSET|\bAND|\bOR)\s+|,\s*)\(?\s*` +
		`(?:[\w"` + "`" + `\[\]]+\.)?` +
		`["` + "`" + `\[]?` + regexp.QuoteMeta(column) + `["` + "`" + `\]]?` +
		`\s*(?:<=|>=|=|<|>|\bLIKE\b|\bIN\b)\s*\(?\s*:` + regexp.QuoteMeta(param) + `\b`

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}

	return re.MatchString(sql)
}

// keyword groups of NameHeuristic, in order of precedence.
var heuristics = []struct {
	goType string
	match  func(string) bool
}{
	{schema.TypeInt64, func(p string) bool { return p == "id" || strings.Contains(p, "_id") }},
	{schema.TypeInt64, containsAny("quantity", "count", "amount", "number", "threshold")},
	{schema.TypeFloat64, containsAny("price", "cost", "rate")},
	{schema.TypeString, containsAny("name", "title", "label")},
	{schema.TypeString, containsAny("description", "text", "content")},
	{schema.TypeString, containsAny("term", "search", "query")},
	{schema.TypeBool, func(p string) bool {
		return strings.Contains(p, "active") || strings.Contains(p, "enabled") ||
			strings.HasPrefix(p, "is_") || strings.HasPrefix(p, "has_")
	}},
}

func containsAny(words ...string) func(string) bool {
	return func(p string) bool {
		for _, w := range words {
			if strings.Contains(p, w) {
				return true
			}
		}

		return false
	}
}

// NameHeuristic guesses the Go type of a parameter from its name alone, "any"
// when nothing matches. The first matching rule wins, so total_amount is an
// integer through "amount" before "price" and "cost" are considered.
func NameHeuristic(param string) string {
	p := strings.ToLower(param)

	for _, h := range heuristics {
		if h.match(p) {
			return h.goType
		}
	}

	return schema.AnyType
}

// Validate checks that every parameter of sql is named after a column of a
// table sql refers to. Statements that refer to no table are not checked.
func (i *Inferrer) Validate(sql string, params []string) error {
	names := TableNames(sql)
	if len(names) == 0 || len(params) == 0 {
		return nil
	}

	tables := i.knownTables(names)

	var unknown []string

	for _, p := range params {
		found := false

		for _, t := range tables {
			if _, ok := t.Column(p); ok {
				found = true

				break
			}
		}

		if !found {
			unknown = append(unknown, p)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	var columns []string

	for _, t := range tables {
		for _, c := range t.Columns {
			columns = append(columns, c.Name)
		}
	}

	available := "none"
	if len(columns) > 0 {
		available = strings.Join(columns, ", ")
	}

	e := sqlerr.Validation("", "parameter(s) %s do not match any column of table(s) %s",
		quoteAll(unknown), strings.Join(names, ", "))
	e.Details = "Available columns: " + available

	return e
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}

	return strings.Join(quoted, ", ")
}
