package generator

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/tools/imports"
	"mvdan.cc/gofumpt/format"
)

func toSnakeCase(s string) string {
	res := make([]rune, 0, len(s))

	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// Check if previous was also uppercase (e.g. ID)
			prev := rune(s[i-1])
			if prev < 'A' || prev > 'Z' {
				res = append(res, '_')
			}
		}

		res = append(res, unicode.ToLower(r))
	}

	return string(res)
}

func toSingular(s string) string { return inflection.Singular(s) }

// initialisms are written in a single case in Go names.
var initialisms = map[string]struct{}{
	"ACL": {}, "API": {}, "ASCII": {}, "CPU": {}, "CSS": {}, "DNS": {}, "EOF": {}, "GUID": {},
	"HTML": {}, "HTTP": {}, "HTTPS": {}, "ID": {}, "IP": {}, "JSON": {}, "LHS": {}, "QPS": {},
	"RAM": {}, "RHS": {}, "RPC": {}, "SKU": {}, "SLA": {}, "SMTP": {}, "SQL": {}, "SSH": {},
	"TCP": {}, "TLS": {}, "TTL": {}, "UDP": {}, "UI": {}, "UID": {}, "URI": {}, "URL": {},
	"UTF8": {}, "UUID": {}, "VM": {}, "XML": {},
}

// toGoName converts a snake_case or camelCase SQL name to a Go identifier:
// get_user becomes GetUser, or getUser when unexported, and user_id becomes
// UserID or userID.
func toGoName(s string, exported bool) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var sb strings.Builder

	for i, w := range words {
		upper := strings.ToUpper(w)
		_, initialism := initialisms[upper]

		switch {
		case i == 0 && !exported:
			if initialism {
				sb.WriteString(strings.ToLower(w))
			} else {
				sb.WriteString(lowerFirst(w))
			}
		case initialism:
			sb.WriteString(upper)
		default:
			sb.WriteString(upperFirst(w))
		}
	}

	name := sb.String()
	if name == "" {
		return "_"
	}

	if r := []rune(name)[0]; unicode.IsDigit(r) {
		name = "x" + name
	}

	return name
}

func upperFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}

func lowerFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])

	return string(r)
}

// localNames are used by the generated method bodies.
var localNames = map[string]struct{}{
	"q": {}, "ctx": {}, "rows": {}, "err": {}, "items": {}, "i": {},
	"sql": {}, "context": {}, "time": {}, "json": {},
}

// paramName returns the Go name of a parameter, renamed when it would shadow
// a Go keyword, a local of the method body or an imported package.
func paramName(s string) string {
	name := toGoName(s, false)

	if _, ok := localNames[name]; ok || token.IsKeyword(name) {
		return name + "Arg"
	}

	return name
}

func joinParamsSignature(params []Param) string {
	p := make([]string, 0, len(params))
	for _, param := range params {
		p = append(p, fmt.Sprintf("%s %s", param.Name, param.Type))
	}

	return strings.Join(p, ", ")
}

// joinArgs renders the arguments following the query in a QueryContext or
// ExecContext call.
func joinArgs(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return ", " + strings.Join(args, ", ")
}

func scanArgs(s *StructInfo) string {
	p := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		p = append(p, "&i."+f.Name)
	}

	return strings.Join(p, ", ")
}

// goString returns s as a Go string literal, raw when possible.
func goString(s string) string {
	if strings.Contains(s, "`") || strings.ContainsRune(s, '\r') {
		return strconv.Quote(s)
	}

	return "`" + s + "`"
}

func structTag(column string) string {
	tag := "db:" + strconv.Quote(column)
	if strings.Contains(tag, "`") {
		return ""
	}

	return "`" + tag + "`"
}

// fieldType returns the Go type of a column, wrapped in a sql.Null type when
// the column is nullable and the type has one.
func fieldType(goType string, nullable bool) string {
	if !nullable {
		return goType
	}

	if t := getNullTypeFromPrimitive(goType); t != "" {
		return t
	}

	return goType
}

func getNullTypeFromPrimitive(t string) string {
	switch t {
	case typeString:
		return sqlNullString
	case typeInt64:
		return sqlNullInt64
	case typeInt32:
		return sqlNullInt32
	case typeInt16:
		return sqlNullInt16
	case typeBool:
		return sqlNullBool
	case typeFloat64:
		return sqlNullFloat64
	case typeTime:
		return sqlNullTime
	case typeByte:
		return sqlNullByte
	default:
		return ""
	}
}

// formatSource fixes the imports of a rendered file and formats it with
// gofumpt. filename is only used to resolve imports and in errors.
func formatSource(filename string, content []byte) ([]byte, error) {
	withImports, err := imports.Process(filename, content, nil)
	if err != nil {
		return nil, errFormatSource(filename, err)
	}

	formatted, err := format.Source(withImports, format.Options{
		LangVersion: "",
		ExtraRules:  true,
	})
	if err != nil {
		return nil, errFormatSource(filename, err)
	}

	return formatted, nil
}
