// Package sqltoken is a small, dialect-agnostic SQL lexer. It knows enough
// about SQL to tell comments, string literals, quoted identifiers and named
// parameters apart from the rest of a statement, which is all the template
// parser, the classifier and the schema parser need.
package sqltoken

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnterminated is returned when a string literal, quoted identifier,
// dollar-quoted body or block comment runs to the end of the input.
var ErrUnterminated = errors.New("unterminated token")

// Kind identifies the class of a Token.
type Kind int

const (
	Word        Kind = iota // identifiers and keywords
	QuotedIdent             // "x", `x` or [x]
	String                  // 'x', E'x', N'x', $$x$$
	Number
	Param    // :name
	Cast     // ::
	Punct    // ( ) , ; . [ ]
	Operator // = <> <= || ...
	Comment  // -- x and /* x */
)

var kindNames = [...]string{
	Word:        "Word",
	QuotedIdent: "QuotedIdent",
	String:      "String",
	Number:      "Number",
	Param:       "Param",
	Cast:        "Cast",
	Punct:       "Punct",
	Operator:    "Operator",
	Comment:     "Comment",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// Token is a lexical unit of a SQL statement.
type Token struct {
	Kind Kind
	// Value is the token text. QuotedIdent holds the unquoted name and Param
	// holds the bare parameter name.
	Value string
	// Pos and End are byte offsets of the token in the input.
	Pos int
	End int
}

// Is reports whether t is a Word equal to keyword, ignoring case.
func (t Token) Is(keyword string) bool {
	return t.Kind == Word && strings.EqualFold(t.Value, keyword)
}

// IsPunct reports whether t is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == Punct && t.Value == p
}

// Upper returns the token value upper-cased.
func (t Token) Upper() string { return strings.ToUpper(t.Value) }

// multi-character operators, longest first.
var operators = []string{"->>", "#>>", "<=>", "<=", ">=", "<>", "!=", "||", "->", "#>", "=>", ":=", "<<", ">>", "@>", "<@"}

// Tokenize splits sql into tokens. On ErrUnterminated the tokens read so far
// are returned together with the unterminated token, which spans to the end
// of the input.
func Tokenize(sql string) ([]Token, error) {
	l := &lexer{src: sql}

	for {
		tok, ok, err := l.next()
		if ok {
			l.tokens = append(l.tokens, tok)
		}

		if err != nil {
			return l.tokens, fmt.Errorf("%w at offset %d", err, tok.Pos)
		}

		if !ok {
			return l.tokens, nil
		}
	}
}

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}

	return l.src[l.pos+off]
}

func (l *lexer) rune() (rune, int) {
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

//nolint:cyclop,funlen // one case per token class reads better than a dispatch table
func (l *lexer) next() (Token, bool, error) {
	l.skipSpace()

	if l.pos >= len(l.src) {
		return Token{}, false, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '-' && l.peek(1) == '-':
		return l.lineComment(start), true, nil
	case c == '/' && l.peek(1) == '*':
		return l.blockComment(start)
	case c == '\'':
		return l.quoted(start, String, '\'', '\'')
	case c == '"':
		return l.quoted(start, QuotedIdent, '"', '"')
	case c == '`':
		return l.quoted(start, QuotedIdent, '`', '`')
	case c == '[':
		if n := l.peek(1); n == ']' || isDigit(n) {
			l.pos++

			return l.token(Punct, start), true, nil
		}

		return l.quoted(start, QuotedIdent, '[', ']')
	case c == ':':
		return l.colon(start), true, nil
	case c == '$':
		return l.dollar(start)
	case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
		return l.number(start), true, nil
	case c == '(' || c == ')' || c == ',' || c == ';' || c == '.' || c == ']':
		l.pos++

		return l.token(Punct, start), true, nil
	}

	if r, _ := l.rune(); isIdentStart(r) {
		word := l.word(start)

		// E'..', N'..', X'..', B'..' literals
		if len(word.Value) == 1 && l.peek(0) == '\'' && strings.ContainsAny(word.Value, "EeNnXxBb") {
			tok, ok, err := l.quoted(l.pos, String, '\'', '\'')
			tok.Pos = start
			tok.Value = word.Value + tok.Value

			return tok, ok, err
		}

		return word, true, nil
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)

			return l.token(Operator, start), true, nil
		}
	}

	_, size := l.rune()
	l.pos += size

	return l.token(Operator, start), true, nil
}

func (l *lexer) token(kind Kind, start int) Token {
	return Token{Kind: kind, Value: l.src[start:l.pos], Pos: start, End: l.pos}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, size := l.rune()
		if !unicode.IsSpace(r) {
			return
		}

		l.pos += size
	}
}

func (l *lexer) lineComment(start int) Token {
	end := strings.IndexByte(l.src[l.pos:], '\n')
	if end < 0 {
		l.pos = len(l.src)
	} else {
		l.pos += end
	}

	return l.token(Comment, start)
}

func (l *lexer) blockComment(start int) (Token, bool, error) {
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		l.pos = len(l.src)

		return l.token(Comment, start), true, ErrUnterminated
	}

	l.pos += 2 + end + 2

	return l.token(Comment, start), true, nil
}

// quoted reads a token delimited by open and closing, where a doubled closing
// delimiter escapes itself.
func (l *lexer) quoted(start int, kind Kind, open, closing byte) (Token, bool, error) {
	var sb strings.Builder

	l.pos++ // open

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == closing {
			if closing == open && l.peek(1) == closing {
				sb.WriteByte(c)

				l.pos += 2

				continue
			}

			l.pos++

			value := sb.String()
			if kind == String {
				value = l.src[start:l.pos]
			}

			return Token{Kind: kind, Value: value, Pos: start, End: l.pos}, true, nil
		}

		sb.WriteByte(c)
		l.pos++
	}

	return Token{Kind: kind, Value: l.src[start:], Pos: start, End: l.pos}, true, ErrUnterminated
}

// colon reads "::", ":=", a named parameter or a bare ":". The parameter
// name must follow the colon immediately, so "arr[1 : hi]" holds none.
func (l *lexer) colon(start int) Token {
	switch l.peek(1) {
	case ':':
		l.pos += 2

		return l.token(Cast, start)
	case '=':
		l.pos += 2

		return l.token(Operator, start)
	}

	l.pos++

	if r, _ := l.rune(); l.pos < len(l.src) && isIdentStart(r) {
		name := l.word(l.pos)

		return Token{Kind: Param, Value: name.Value, Pos: start, End: l.pos}
	}

	return l.token(Operator, start)
}

// dollar reads a positional placeholder ($1) or a dollar-quoted body
// ($$..$$, $tag$..$tag$).
func (l *lexer) dollar(start int) (Token, bool, error) {
	if isDigit(l.peek(1)) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}

		return l.token(Operator, start), true, nil
	}

	end := strings.IndexByte(l.src[l.pos+1:], '$')
	if end < 0 || !isTag(l.src[l.pos+1:l.pos+1+end]) {
		l.pos++

		return l.token(Operator, start), true, nil
	}

	tag := l.src[l.pos : l.pos+1+end+1]
	l.pos += len(tag)

	body := strings.Index(l.src[l.pos:], tag)
	if body < 0 {
		l.pos = len(l.src)

		return l.token(String, start), true, ErrUnterminated
	}

	l.pos += body + len(tag)

	return l.token(String, start), true, nil
}

func (l *lexer) number(start int) Token {
	for l.pos < len(l.src) {
		c := l.src[l.pos]

		switch {
		case isDigit(c) || c == '.':
			l.pos++
		case (c == 'e' || c == 'E') && (isDigit(l.peek(1)) || ((l.peek(1) == '-' || l.peek(1) == '+') && isDigit(l.peek(2)))):
			l.pos += 2
		default:
			return l.token(Number, start)
		}
	}

	return l.token(Number, start)
}

func (l *lexer) word(start int) Token {
	l.pos = start

	for l.pos < len(l.src) {
		r, size := l.rune()
		if !isIdentPart(r) {
			break
		}

		l.pos += size
	}

	return l.token(Word, start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) || r == '$' }

func isTag(s string) bool {
	for i, r := range s {
		if !isIdentStart(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}

	return true
}
