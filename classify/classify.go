// Package classify decides whether a SQL statement returns rows (FETCH) or is
// run for its effect (EXECUTE), and names the kind of the statement.
package classify

import (
	"strings"

	"github.com/kalbasit/sqltmpl/sqltoken"
)

// Statement is the FETCH/EXECUTE classification of a SQL statement.
type Statement int

const (
	// Execute statements are run for effect and return a result handle.
	Execute Statement = iota
	// Fetch statements return rows.
	Fetch
)

func (s Statement) String() string {
	if s == Fetch {
		return "FETCH"
	}

	return "EXECUTE"
}

// MarshalText renders the statement as FETCH or EXECUTE.
func (s Statement) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Kind is the statement kind derived from the leading keyword.
type Kind int

// Statement kinds, named after the leading keyword.
const (
	Other Kind = iota
	Select
	Insert
	Update
	Delete
	CTE
	Values
	Show
	Explain
	Describe
)

var kindNames = [...]string{
	Other:    "other",
	Select:   "select",
	Insert:   "insert",
	Update:   "update",
	Delete:   "delete",
	CTE:      "cte",
	Values:   "values",
	Show:     "show",
	Explain:  "explain",
	Describe: "describe",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Other]
	}

	return kindNames[k]
}

// MarshalText renders the kind in lower case.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

var keywordKinds = map[string]Kind{
	"SELECT":   Select,
	"INSERT":   Insert,
	"UPDATE":   Update,
	"DELETE":   Delete,
	"WITH":     CTE,
	"VALUES":   Values,
	"SHOW":     Show,
	"EXPLAIN":  Explain,
	"DESC":     Describe,
	"DESCRIBE": Describe,
}

// read-only leading keywords.
var fetchKeywords = map[string]struct{}{
	"SELECT":   {},
	"VALUES":   {},
	"SHOW":     {},
	"EXPLAIN":  {},
	"DESC":     {},
	"DESCRIBE": {},
	"PRAGMA":   {},
	"TABLE":    {},
}

// Classify returns Fetch when sql returns rows and Execute otherwise. A
// statement introduced by WITH is classified by the statement following its
// common table expressions. Empty and unrecognized statements are Execute.
func Classify(sql string) Statement {
	if _, ok := fetchKeywords[StatementKeyword(sql)]; ok {
		return Fetch
	}

	return Execute
}

// KindOf returns the kind of sql from its first keyword.
func KindOf(sql string) Kind {
	if k, ok := keywordKinds[FirstKeyword(sql)]; ok {
		return k
	}

	return Other
}

// FirstKeyword returns the upper-cased first word of sql ignoring comments
// and opening parentheses, or "" when there is none.
func FirstKeyword(sql string) string {
	return firstWord(tokens(sql))
}

// StatementKeyword is FirstKeyword with the common table expressions of a
// WITH statement skipped, so it names the statement that actually runs.
func StatementKeyword(sql string) string {
	return statementKeyword(tokens(sql))
}

// HasReturning reports whether sql has a RETURNING clause.
func HasReturning(sql string) bool {
	toks, err := sqltoken.Tokenize(sql)
	if err != nil {
		return strings.Contains(strings.ToUpper(sqltoken.StripComments(sql)), "RETURNING")
	}

	for _, t := range toks {
		if t.Is("RETURNING") {
			return true
		}
	}

	return false
}

// tokens returns the meaningful tokens of sql. An unterminated literal or
// comment only affects the tail of the statement, so what was read is kept.
func tokens(sql string) []sqltoken.Token {
	toks, _ := sqltoken.Tokenize(sql)

	return sqltoken.Meaningful(toks)
}

func skipParens(toks []sqltoken.Token) []sqltoken.Token {
	for len(toks) > 0 && toks[0].IsPunct("(") {
		toks = toks[1:]
	}

	return toks
}

func firstWord(toks []sqltoken.Token) string {
	toks = skipParens(toks)
	if len(toks) == 0 || toks[0].Kind != sqltoken.Word {
		return ""
	}

	return toks[0].Upper()
}

func statementKeyword(toks []sqltoken.Token) string {
	toks = skipParens(toks)

	for len(toks) > 0 && toks[0].Is("WITH") {
		toks = skipParens(skipCTEs(toks[1:]))
	}

	return firstWord(toks)
}

// skipCTEs consumes `[RECURSIVE] name [(cols)] AS [NOT] [MATERIALIZED] (...)`
// definitions separated by commas and returns what follows them. On a
// malformed list nil is returned.
func skipCTEs(toks []sqltoken.Token) []sqltoken.Token {
	if len(toks) > 0 && toks[0].Is("RECURSIVE") {
		toks = toks[1:]
	}

	for {
		if len(toks) == 0 || (toks[0].Kind != sqltoken.Word && toks[0].Kind != sqltoken.QuotedIdent) {
			return nil
		}

		toks = toks[1:]

		if len(toks) > 0 && toks[0].IsPunct("(") {
			toks = skipGroup(toks)
		}

		if len(toks) == 0 || !toks[0].Is("AS") {
			return nil
		}

		toks = toks[1:]

		if len(toks) > 0 && toks[0].Is("NOT") {
			toks = toks[1:]
		}

		if len(toks) > 0 && toks[0].Is("MATERIALIZED") {
			toks = toks[1:]
		}

		if len(toks) == 0 || !toks[0].IsPunct("(") {
			return nil
		}

		toks = skipGroup(toks)

		if len(toks) == 0 || !toks[0].IsPunct(",") {
			return toks
		}

		toks = toks[1:]
	}
}

// skipGroup returns the tokens after the parenthesized group toks starts
// with. An unbalanced group consumes everything.
func skipGroup(toks []sqltoken.Token) []sqltoken.Token {
	depth := 0

	for i, t := range toks {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
			if depth == 0 {
				return toks[i+1:]
			}
		}
	}

	return nil
}
