// Package sqlfile parses SQL template files. A template starts with a
// "# ClassName" line followed by methods, each introduced by a "#method_name"
// header line and made of one SQL statement:
//
//	# Users
//	#get_user
//	SELECT * FROM users WHERE id = :user_id;
//
//	#delete_user
//	DELETE FROM users WHERE id = :user_id;
package sqlfile

import (
	"go/token"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kalbasit/sqltmpl/classify"
	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/sqlerr"
	"github.com/kalbasit/sqltmpl/sqltoken"
)

// File is a parsed template.
type File struct {
	ClassName string    `yaml:"class_name"`
	Path      string    `yaml:"path,omitempty"`
	Methods   []*Method `yaml:"methods"`
}

// Method returns the method called name.
func (f *File) Method(name string) (*Method, bool) {
	for _, m := range f.Methods {
		if m.Name == name {
			return m, true
		}
	}

	return nil, false
}

// Names returns the method names in template order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Methods))
	for _, m := range f.Methods {
		names = append(names, m.Name)
	}

	return names
}

// Method describes one statement of a template.
type Method struct {
	Name string `yaml:"name"`
	// SQL is the trimmed statement with one trailing semicolon removed.
	SQL          string             `yaml:"sql"`
	Kind         classify.Kind      `yaml:"kind"`
	Statement    classify.Statement `yaml:"statement"`
	Parameters   []string           `yaml:"parameters,flow"`
	HasReturning bool               `yaml:"has_returning"`
}

// IsFetch reports whether the method returns rows.
func (m *Method) IsFetch() bool { return m.Statement == classify.Fetch }

// NewMethod analyzes sql and returns its descriptor. The parameters are read
// with the SQL tokenizer, which ignores literals, comments and casts; when the
// statement cannot be tokenized they are read with a regular expression
// instead.
func NewMethod(name, sql string) *Method {
	params, ok := sqltoken.Params(sql)
	if !ok {
		params = sqltoken.ParamsRegexp(sql)
	}

	return &Method{
		Name:         name,
		SQL:          sql,
		Kind:         classify.KindOf(sql),
		Statement:    classify.Classify(sql),
		Parameters:   params,
		HasReturning: classify.HasReturning(sql),
	}
}

// Option configures ParseFile.
type Option func(*options)

type options struct {
	encoding string
	logger   *slog.Logger
}

// WithEncoding sets the encoding template files are read with.
func WithEncoding(name string) Option {
	return func(o *options) { o.encoding = name }
}

// WithLogger sets the logger used to report parsing details.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

var methodHeaderRe = regexp.MustCompile(`(?m)^#[ \t]*(\w+)[ \t]*$`)

// ParseFile reads and parses the template at path.
func ParseFile(path string, opts ...Option) (*File, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	text, err := fileio.ReadText(path, o.encoding)
	if err != nil {
		return nil, err
	}

	f, err := Parse(text, path)
	if err != nil {
		return nil, err
	}

	for _, m := range f.Methods {
		if _, ok := sqltoken.Params(m.SQL); !ok {
			o.logger.Warn("statement could not be tokenized, parameters read with a regular expression",
				"path", path, "method", m.Name)
		}
	}

	o.logger.Debug("parsed template", "path", path, "class", f.ClassName, "methods", len(f.Methods))

	return f, nil
}

// Parse parses template text. path is only used in error messages.
func Parse(text, path string) (*File, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	classLine, rest, ok := firstLine(text)
	if !ok || !strings.HasPrefix(classLine, "#") {
		e := sqlerr.Validation(path, "first line must be a class comment starting with #")
		e.Details = strings.TrimSpace(classLine)

		return nil, e
	}

	className := strings.TrimSpace(classLine[1:])
	if err := checkIdentifier(path, "class name", className); err != nil {
		return nil, err
	}

	f := &File{ClassName: className, Path: path}

	index := make(map[string]int)

	for _, section := range splitMethods(rest) {
		if err := checkIdentifier(path, "method name", section.name); err != nil {
			return nil, err
		}

		sql := trimStatement(section.body)
		if sql == "" {
			continue
		}

		m := NewMethod(section.name, sql)

		for _, p := range m.Parameters {
			if err := checkIdentifier(path, "parameter name", p); err != nil {
				err.Details = "method " + m.Name

				return nil, err
			}
		}

		if i, ok := index[m.Name]; ok {
			f.Methods[i] = m

			continue
		}

		index[m.Name] = len(f.Methods)
		f.Methods = append(f.Methods, m)
	}

	return f, nil
}

// firstLine returns the first non-blank line of text and what follows it.
func firstLine(text string) (string, string, bool) {
	for text != "" {
		line, rest, _ := strings.Cut(text, "\n")
		if strings.TrimSpace(line) != "" {
			return strings.TrimRight(line, " \t"), rest, true
		}

		text = rest
	}

	return "", "", false
}

type section struct {
	name string
	body string
}

// splitMethods cuts text at method headers. Text before the first header is
// ignored.
func splitMethods(text string) []section {
	matches := methodHeaderRe.FindAllStringSubmatchIndex(text, -1)

	sections := make([]section, 0, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sections = append(sections, section{name: text[m[2]:m[3]], body: text[m[1]:end]})
	}

	return sections
}

func trimStatement(body string) string {
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, ";")

	return strings.TrimRightFunc(body, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
}

func checkIdentifier(path, what, name string) *sqlerr.Error {
	switch {
	case name == "":
		return sqlerr.Validation(path, "%s cannot be empty", what)
	case token.IsKeyword(name):
		return sqlerr.Validation(path, "%s %q cannot be a reserved keyword", what, name)
	case !token.IsIdentifier(name):
		return sqlerr.Validation(path, "%s %q must be a valid Go identifier", what, name)
	}

	return nil
}
