package generator

import (
	"github.com/kalbasit/sqltmpl/classify"
	"github.com/kalbasit/sqltmpl/sqltoken"
)

// resultColumn is an item of a select or RETURNING list that names a column.
type resultColumn struct {
	column string
	alias  string
	star   bool
}

// resultColumns returns the items of the select list of a SELECT, or of the
// RETURNING list of other statements. ok is false when an item is anything
// but a plain, possibly qualified, column reference or a star.
func resultColumns(sql string, kind classify.Kind) ([]resultColumn, bool) {
	toks, err := sqltoken.Tokenize(sql)
	if err != nil {
		return nil, false
	}

	toks = sqltoken.Meaningful(toks)

	var list []sqltoken.Token

	switch kind {
	case classify.Select:
		list = selectList(toks)
	case classify.Insert, classify.Update, classify.Delete:
		list = returningList(toks)
	default:
		return nil, false
	}

	if len(list) == 0 {
		return nil, false
	}

	var cols []resultColumn

	for _, item := range splitItems(list) {
		c, ok := parseItem(item)
		if !ok {
			return nil, false
		}

		cols = append(cols, c)
	}

	return cols, true
}

// selectList returns the tokens between the first SELECT and the FROM at the
// same depth, without DISTINCT or ALL.
func selectList(toks []sqltoken.Token) []sqltoken.Token {
	start := -1
	depth := 0

	for i, t := range toks {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth != 0:
		case start < 0 && t.Is("SELECT"):
			start = i + 1
			if start < len(toks) && (toks[start].Is("DISTINCT") || toks[start].Is("ALL")) {
				start++
			}
		case start >= 0 && t.Is("FROM"):
			return toks[start:i]
		}
	}

	return nil
}

func returningList(toks []sqltoken.Token) []sqltoken.Token {
	depth := 0

	for i, t := range toks {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.Is("RETURNING"):
			end := len(toks)
			if end > 0 && toks[end-1].IsPunct(";") {
				end--
			}

			return toks[i+1 : end]
		}
	}

	return nil
}

func splitItems(toks []sqltoken.Token) [][]sqltoken.Token {
	var (
		items [][]sqltoken.Token
		depth int
		start int
	)

	for i, t := range toks {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.IsPunct(","):
			items = append(items, toks[start:i])
			start = i + 1
		}
	}

	return append(items, toks[start:])
}

// parseItem accepts `*`, `t.*`, `col`, `t.col` and the latter two followed by
// an alias.
func parseItem(item []sqltoken.Token) (resultColumn, bool) {
	if len(item) == 0 {
		return resultColumn{}, false
	}

	isStar := func(t sqltoken.Token) bool { return t.Kind == sqltoken.Operator && t.Value == "*" }

	switch {
	case len(item) == 1 && isStar(item[0]):
		return resultColumn{star: true}, true
	case len(item) == 3 && isName(item[0]) && item[1].IsPunct(".") && isStar(item[2]):
		return resultColumn{star: true}, true
	}

	if !isName(item[0]) {
		return resultColumn{}, false
	}

	c := resultColumn{column: item[0].Value}
	rest := item[1:]

	if len(rest) >= 2 && rest[0].IsPunct(".") && isName(rest[1]) {
		c.column = rest[1].Value
		rest = rest[2:]
	}

	if len(rest) > 0 && rest[0].Is("AS") {
		rest = rest[1:]
	}

	switch {
	case len(rest) == 0:
		return c, true
	case len(rest) == 1 && isName(rest[0]):
		c.alias = rest[0].Value

		return c, true
	default:
		return resultColumn{}, false
	}
}

func isName(t sqltoken.Token) bool {
	return t.Kind == sqltoken.Word || t.Kind == sqltoken.QuotedIdent
}
