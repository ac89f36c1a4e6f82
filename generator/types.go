package generator

// Dialect selects the placeholder syntax of the generated statements.
type Dialect string

const (
	SQLite    Dialect = "sqlite"
	MySQL     Dialect = "mysql"
	Postgres  Dialect = "postgres"
	SQLServer Dialect = "sqlserver"
)

// IsPostgres reports whether d numbers its placeholders $1, $2...
func (d Dialect) IsPostgres() bool { return d == Postgres }

// IsSQLServer reports whether d numbers its placeholders @p1, @p2...
func (d Dialect) IsSQLServer() bool { return d == SQLServer }

// ClassData is what a class file is rendered from.
type ClassData struct {
	Package   string
	Source    string
	ClassName string
	// DBTX is false when the interface is declared in a shared file.
	DBTX    bool
	Rows    []*StructInfo
	Methods []MethodInfo
}

// MethodInfo holds the rendering data of one template method.
type MethodInfo struct {
	Name      string // template name, e.g. get_user
	GoName    string // e.g. GetUser
	Const     string // name of the SQL constant
	SQL       string // statement with dialect placeholders
	Statement string // FETCH or EXECUTE
	Params    []Param
	Args      []string // Go parameter names in placeholder order
	Query     bool     // runs through QueryContext
	Row       *StructInfo
}

type Param struct {
	Name string
	Type string
}

// StructInfo is a generated row type.
type StructInfo struct {
	Name   string
	Table  string
	Fields []FieldInfo
	// Shared rows cover every column of their table and may be declared once
	// for a whole package.
	Shared bool
}

type FieldInfo struct {
	Name   string
	Type   string
	Column string
}

// Output is a generated file.
type Output struct {
	// ClassName is empty for DBTXFileName.
	ClassName string
	Template  string
	FileName  string
	Source    []byte
}
