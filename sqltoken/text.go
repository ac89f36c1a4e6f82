package sqltoken

import (
	"regexp"
	"strings"
)

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// Meaningful returns tokens without comments.
func Meaningful(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))

	for _, t := range tokens {
		if t.Kind != Comment {
			out = append(out, t)
		}
	}

	return out
}

// StripComments removes line and block comments that are not inside a
// literal. Block comments are replaced by a single space so that the tokens
// around them stay separated. When sql cannot be tokenized, comments are
// removed with regular expressions instead, which may also hit comment
// markers inside literals.
func StripComments(sql string) string {
	tokens, err := Tokenize(sql)
	if err != nil {
		return stripCommentsRegexp(sql)
	}

	var sb strings.Builder

	last := 0

	for _, t := range tokens {
		if t.Kind != Comment {
			continue
		}

		sb.WriteString(sql[last:t.Pos])

		if strings.HasPrefix(t.Value, "/*") {
			sb.WriteByte(' ')
		}

		last = t.End
	}

	sb.WriteString(sql[last:])

	return sb.String()
}

func stripCommentsRegexp(sql string) string {
	sql = blockCommentRe.ReplaceAllString(sql, " ")

	return lineCommentRe.ReplaceAllString(sql, "")
}

// SplitStatements splits sql into statements on semicolons found outside
// literals and comments. Statements made only of comments are dropped. When
// stripSemicolon is false every terminated statement keeps its semicolon.
func SplitStatements(sql string, stripSemicolon bool) []string {
	// an unterminated token swallows the rest of the input, the statements
	// before it still split correctly.
	tokens, _ := Tokenize(sql)

	var (
		stmts      []string
		start      int
		meaningful bool
		appendOne  = func(end int, terminated bool) {
			text := strings.TrimSpace(sql[start:end])
			if !meaningful || text == "" {
				return
			}

			if terminated && !stripSemicolon {
				text += ";"
			}

			stmts = append(stmts, text)
		}
	)

	for _, t := range tokens {
		if t.IsPunct(";") {
			appendOne(t.Pos, true)

			start = t.End
			meaningful = false

			continue
		}

		if t.Kind != Comment {
			meaningful = true
		}
	}

	appendOne(len(sql), false)

	return stmts
}

// Params returns the distinct named parameters of sql in first-occurrence
// order. The boolean result is false when sql could not be tokenized and the
// caller should fall back to ParamsRegexp.
func Params(sql string) ([]string, bool) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return nil, false
	}

	var names []string

	seen := make(map[string]struct{})

	for _, t := range tokens {
		if t.Kind != Param {
			continue
		}

		if _, ok := seen[t.Value]; ok {
			continue
		}

		seen[t.Value] = struct{}{}
		names = append(names, t.Value)
	}

	return names, true
}

var paramRe = regexp.MustCompile(`(?:^|[^:\w]):([A-Za-z_]\w*)`)

// ParamsRegexp extracts named parameters with a regular expression after a
// best-effort comment strip. It does not know about string literals.
func ParamsRegexp(sql string) []string {
	var names []string

	seen := make(map[string]struct{})

	for _, m := range paramRe.FindAllStringSubmatch(stripCommentsRegexp(sql), -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}

		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}

	return names
}
