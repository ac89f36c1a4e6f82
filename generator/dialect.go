package generator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kalbasit/sqltmpl/sqltoken"
)

var dialectAliases = map[string]Dialect{
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pgx":        Postgres,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
}

// Dialects returns the supported dialects.
func Dialects() []Dialect { return []Dialect{SQLite, MySQL, Postgres, SQLServer} }

func dialectNames() []string {
	names := make([]string, 0, len(Dialects()))
	for _, d := range Dialects() {
		names = append(names, string(d))
	}

	return names
}

// ParseDialect returns the dialect called name, ignoring case. A few common
// driver names are accepted as aliases.
func ParseDialect(name string) (Dialect, error) {
	if d, ok := dialectAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}

	return "", errUnknownDialect(name)
}

// numbered dialects refer to a parameter by position, so a name used twice
// is bound once.
func (d Dialect) numbered() bool { return d.IsPostgres() || d.IsSQLServer() }

// Placeholder returns the n-th (1-based) placeholder of d.
func (d Dialect) Placeholder(n int) string {
	switch {
	case d.IsPostgres():
		return "$" + strconv.Itoa(n)
	case d.IsSQLServer():
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// Rewrite replaces the named parameters of sql with the placeholders of d
// and returns the parameter names in the order the driver binds them. Text
// inside literals, quoted identifiers and comments is left alone.
func Rewrite(sql string, d Dialect) (string, []string, error) {
	d, err := ParseDialect(string(d))
	if err != nil {
		return "", nil, err
	}

	spans, ok := paramSpans(sql)
	if !ok {
		spans = paramSpansRegexp(sql)
	}

	var (
		sb       strings.Builder
		args     []string
		position = make(map[string]int)
		last     int
	)

	for _, s := range spans {
		sb.WriteString(sql[last:s.start])
		last = s.end

		if d.numbered() {
			n, seen := position[s.name]
			if !seen {
				args = append(args, s.name)
				n = len(args)
				position[s.name] = n
			}

			sb.WriteString(d.Placeholder(n))

			continue
		}

		args = append(args, s.name)
		sb.WriteString(d.Placeholder(len(args)))
	}

	sb.WriteString(sql[last:])

	return sb.String(), args, nil
}

type paramSpan struct {
	name       string
	start, end int
}

func paramSpans(sql string) ([]paramSpan, bool) {
	toks, err := sqltoken.Tokenize(sql)
	if err != nil {
		return nil, false
	}

	var spans []paramSpan

	for _, t := range toks {
		if t.Kind == sqltoken.Param {
			spans = append(spans, paramSpan{name: t.Value, start: t.Pos, end: t.End})
		}
	}

	return spans, true
}

var paramSpanRe = regexp.MustCompile(`(?:^|[^:\w])(:([A-Za-z_]\w*))`)

// paramSpansRegexp is used for statements the lexer rejects, the same way
// their parameters were read.
func paramSpansRegexp(sql string) []paramSpan {
	var spans []paramSpan

	for _, m := range paramSpanRe.FindAllStringSubmatchIndex(sql, -1) {
		spans = append(spans, paramSpan{name: sql[m[4]:m[5]], start: m[2], end: m[3]})
	}

	return spans
}
