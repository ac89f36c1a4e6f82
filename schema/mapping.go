package schema

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/sqlerr"
)

const (
	// DefaultKey is the mapping entry used for unknown SQL types.
	DefaultKey = "DEFAULT"

	// AnyType is the Go type used when nothing more precise is known.
	AnyType = "any"
)

// Go types produced by the default mapping.
const (
	TypeInt64   = "int64"
	TypeFloat64 = "float64"
	TypeString  = "string"
	TypeBool    = "bool"
	TypeTime    = "time.Time"
	TypeBytes   = "[]byte"
	TypeJSON    = "json.RawMessage"
)

// TypeMapping maps upper-case SQL type names to Go type expressions. A
// mapping returned by this package always has a DefaultKey entry.
type TypeMapping map[string]string

// DefaultTypeMapping returns the built-in mapping. It covers the common type
// names of SQLite, PostgreSQL, MySQL, SQL Server and Oracle.
func DefaultTypeMapping() TypeMapping {
	m := TypeMapping{DefaultKey: AnyType, "SQL_VARIANT": AnyType}

	groups := map[string][]string{
		TypeInt64: {
			"INTEGER", "INT", "INT2", "INT4", "INT8", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
			"SERIAL", "SMALLSERIAL", "BIGSERIAL",
		},
		TypeString: {
			"TEXT", "VARCHAR", "CHAR", "CHARACTER", "NCHAR", "NVARCHAR", "NTEXT", "TINYTEXT", "MEDIUMTEXT",
			"LONGTEXT", "CITEXT", "ENUM", "XML", "UUID", "UNIQUEIDENTIFIER", "ROWVERSION", "VARCHAR2",
			"NVARCHAR2", "CLOB", "NCLOB", "LONG", "ROWID", "INTERVAL",
		},
		TypeFloat64: {
			"DECIMAL", "NUMERIC", "REAL", "FLOAT", "DOUBLE", "MONEY", "SMALLMONEY", "NUMBER",
		},
		TypeBool: {"BOOLEAN", "BOOL", "BIT"},
		TypeTime: {
			"TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET",
			"DATE", "TIME", "TIMETZ",
		},
		TypeBytes: {"BLOB", "BYTEA", "BINARY", "VARBINARY", "IMAGE", "RAW"},
		TypeJSON:  {"JSON", "JSONB"},
	}

	for goType, sqlTypes := range groups {
		for _, t := range sqlTypes {
			m[t] = goType
		}
	}

	return m
}

var sizeQualifierRe = regexp.MustCompile(`\s*\([^)]*\)|\s*\[\s*\d*\s*\]`)

// NormalizeType upper-cases sqlType and strips size and precision qualifiers
// and array suffixes: "varchar(255)" becomes "VARCHAR".
func NormalizeType(sqlType string) string {
	return strings.ToUpper(strings.TrimSpace(sizeQualifierRe.ReplaceAllString(sqlType, "")))
}

// Lookup returns the Go type for sqlType, falling back to the DefaultKey
// entry.
func (m TypeMapping) Lookup(sqlType string) string {
	clean := NormalizeType(sqlType)

	if goType, ok := m.lookup(clean); ok {
		return goType
	}

	// DOUBLE PRECISION, CHARACTER VARYING
	if first, _, ok := strings.Cut(clean, " "); ok {
		if goType, ok := m.lookup(first); ok {
			return goType
		}
	}

	return m.Default()
}

func (m TypeMapping) lookup(clean string) (string, bool) {
	if goType, ok := m[clean]; ok {
		return goType, true
	}

	for k, goType := range m {
		if strings.EqualFold(k, clean) {
			return goType, true
		}
	}

	return "", false
}

// Default returns the type used for unknown SQL types.
func (m TypeMapping) Default() string {
	if d, ok := m[DefaultKey]; ok {
		return d
	}

	return AnyType
}

// Keys returns the SQL type names sorted, with DefaultKey last.
func (m TypeMapping) Keys() []string {
	keys := make([]string, 0, len(m))

	for k := range m {
		if k != DefaultKey {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	if _, ok := m[DefaultKey]; ok {
		keys = append(keys, DefaultKey)
	}

	return keys
}

// LoadTypeMapping reads a YAML document of "SQL_TYPE: go_type" pairs. Type
// mapping is best effort: when the file is missing, unreadable, not valid
// YAML or not a mapping, the default mapping is returned and the failure is
// logged. Entries whose value is not a string are dropped and a missing
// DEFAULT entry is set to "any".
func LoadTypeMapping(path string, logger *slog.Logger) TypeMapping {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m, err := loadTypeMapping(path)
	if err != nil {
		logger.Warn("using the default type mapping", "path", path, "error", err)

		return DefaultTypeMapping()
	}

	logger.Debug("loaded type mapping", "path", path, "types", len(m))

	return m
}

func loadTypeMapping(path string) (TypeMapping, error) {
	text, err := fileio.ReadText(path, "")
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, sqlerr.Configuration(path, err, "invalid YAML")
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, sqlerr.Configuration(path, nil, "type mapping must be a YAML mapping")
	}

	root := doc.Content[0]
	m := make(TypeMapping, len(root.Content)/2) //nolint:mnd

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!str" {
			continue
		}

		m[strings.ToUpper(strings.TrimSpace(key.Value))] = strings.TrimSpace(value.Value)
	}

	if _, ok := m[DefaultKey]; !ok {
		m[DefaultKey] = AnyType
	}

	return m, nil
}

// MarshalYAML renders the mapping with sorted keys and DEFAULT last.
func (m TypeMapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	for _, k := range m.Keys() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m[k]},
		)
	}

	return node, nil
}

const typesFileHeader = `# SQL type to Go type mapping.
#
# Keys are SQL type names matched case-insensitively after size and precision
# qualifiers are removed, so VARCHAR covers VARCHAR(255). Values are Go type
# expressions. DEFAULT is used for types that are not listed.`

// EncodeTypeMapping writes m to w as a commented YAML document that
// LoadTypeMapping reads back.
func EncodeTypeMapping(w io.Writer, m TypeMapping) error {
	content, err := m.MarshalYAML()
	if err != nil {
		return err
	}

	node, _ := content.(*yaml.Node)
	node.HeadComment = typesFileHeader

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2) //nolint:mnd

	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("encoding type mapping: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding type mapping: %w", err)
	}

	return nil
}

// WriteTypesFile writes m to path with EncodeTypeMapping.
func WriteTypesFile(path string, m TypeMapping) error {
	var buf bytes.Buffer

	if err := EncodeTypeMapping(&buf, m); err != nil {
		return err
	}

	return fileio.WriteText(path, buf.String())
}
