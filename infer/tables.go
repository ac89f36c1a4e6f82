package infer

import (
	"strings"

	"github.com/kalbasit/sqltmpl/sqltoken"
)

// words that end a table reference list or cannot be an alias.
var clauseKeywords = map[string]struct{}{
	"WHERE": {}, "JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "CROSS": {},
	"NATURAL": {}, "OUTER": {}, "ON": {}, "USING": {}, "GROUP": {}, "ORDER": {}, "LIMIT": {},
	"HAVING": {}, "UNION": {}, "EXCEPT": {}, "INTERSECT": {}, "SET": {}, "VALUES": {},
	"SELECT": {}, "RETURNING": {}, "OFFSET": {}, "WINDOW": {}, "FETCH": {}, "FOR": {},
	"DEFAULT": {}, "AS": {}, "LATERAL": {},
}

// keywords after which a parenthesis opens a subquery or a list rather than a
// function call.
var groupKeywords = map[string]struct{}{
	"IN": {}, "EXISTS": {}, "FROM": {}, "JOIN": {}, "AS": {}, "ANY": {}, "ALL": {}, "SOME": {},
	"VALUES": {}, "INTO": {}, "USING": {}, "LATERAL": {}, "NOT": {}, "MATERIALIZED": {},
	"WHERE": {}, "AND": {}, "OR": {}, "ON": {}, "SELECT": {}, "UNION": {}, "RETURNING": {},
}

// TableNames returns the lower-cased names of the tables sql reads or writes
// through FROM, JOIN, INSERT INTO, UPDATE and DELETE FROM, in order of first
// reference. Schema qualifiers and quotes are removed and the names of common
// table expressions are left out. It never fails: text it cannot make sense
// of yields fewer names.
func TableNames(sql string) []string {
	toks, _ := sqltoken.Tokenize(sql)
	toks = sqltoken.Meaningful(toks)

	ctes := cteNames(toks)

	var (
		names []string
		seen  = make(map[string]struct{})
		// one entry per open parenthesis, true for function calls
		calls []bool
	)

	add := func(name string) {
		name = strings.ToLower(name)
		if _, ok := ctes[name]; ok {
			return
		}

		if _, ok := seen[name]; ok {
			return
		}

		seen[name] = struct{}{}
		names = append(names, name)
	}

	inCall := func() bool {
		for _, c := range calls {
			if c {
				return true
			}
		}

		return false
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]

		switch {
		case t.IsPunct("("):
			calls = append(calls, i > 0 && isFunctionName(toks[i-1]))

			continue
		case t.IsPunct(")"):
			if len(calls) > 0 {
				calls = calls[:len(calls)-1]
			}

			continue
		case inCall():
			// EXTRACT(YEAR FROM x), SUBSTRING(s FROM 2)
			continue
		}

		var list bool

		switch {
		case t.Is("FROM"):
			list = true
		case t.Is("JOIN"), t.Is("INTO"):
		case t.Is("UPDATE"):
			// ON CONFLICT ... DO UPDATE, ON DUPLICATE KEY UPDATE
			if i > 0 && (toks[i-1].Is("DO") || toks[i-1].Is("KEY")) {
				continue
			}
		default:
			continue
		}

		for {
			name, next, ok := tableRef(toks, i+1)
			if !ok {
				break
			}

			add(name)

			i = skipAlias(toks, next) - 1

			if !list || i+1 >= len(toks) || !toks[i+1].IsPunct(",") {
				break
			}

			i++
		}
	}

	return names
}

// tableRef reads `[ONLY] [qualifier.]name` at toks[i] and returns the bare
// name and the index after it.
func tableRef(toks []sqltoken.Token, i int) (string, int, bool) {
	if i < len(toks) && toks[i].Is("ONLY") {
		i++
	}

	if i >= len(toks) || !isIdent(toks[i]) {
		return "", i, false
	}

	name := toks[i].Value
	i++

	for i+1 < len(toks) && toks[i].IsPunct(".") && isIdent(toks[i+1]) {
		name = toks[i+1].Value
		i += 2
	}

	return name, i, true
}

func skipAlias(toks []sqltoken.Token, i int) int {
	if i < len(toks) && toks[i].Is("AS") {
		i++
	}

	if i < len(toks) && isIdent(toks[i]) {
		i++
	}

	return i
}

// isIdent reports whether t can name a table or an alias.
func isIdent(t sqltoken.Token) bool {
	if t.Kind == sqltoken.QuotedIdent {
		return true
	}

	if t.Kind != sqltoken.Word {
		return false
	}

	_, keyword := clauseKeywords[t.Upper()]

	return !keyword
}

func isFunctionName(t sqltoken.Token) bool {
	if t.Kind != sqltoken.Word {
		return false
	}

	_, keyword := groupKeywords[t.Upper()]

	return !keyword
}

// cteNames returns the lower-cased names defined by the WITH clauses of toks.
func cteNames(toks []sqltoken.Token) map[string]struct{} {
	names := make(map[string]struct{})

	for i, t := range toks {
		if !t.Is("WITH") {
			continue
		}

		j := i + 1
		if j < len(toks) && toks[j].Is("RECURSIVE") {
			j++
		}

		for j < len(toks) && isIdent(toks[j]) {
			name := toks[j].Value
			j++

			if j < len(toks) && toks[j].IsPunct("(") {
				j = skipGroup(toks, j)
			}

			if j >= len(toks) || !toks[j].Is("AS") {
				break
			}

			names[strings.ToLower(name)] = struct{}{}

			for j < len(toks) && !toks[j].IsPunct("(") {
				j++ // NOT MATERIALIZED
			}

			j = skipGroup(toks, j)

			if j >= len(toks) || !toks[j].IsPunct(",") {
				break
			}

			j++
		}
	}

	return names
}

// skipGroup returns the index after the parenthesized group starting at
// toks[i].
func skipGroup(toks []sqltoken.Token, i int) int {
	depth := 0

	for ; i < len(toks); i++ {
		switch {
		case toks[i].IsPunct("("):
			depth++
		case toks[i].IsPunct(")"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}

	return i
}
