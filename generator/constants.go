package generator

const (
	typeAny     = "any"
	typeBool    = "bool"
	typeString  = "string"
	typeInt16   = "int16"
	typeInt32   = "int32"
	typeInt64   = "int64"
	typeFloat64 = "float64"
	typeByte    = "byte"
	typeTime    = "time.Time"

	typeContext = "context.Context"
	typeResult  = "sql.Result"
	typeRows    = "*sql.Rows"

	sqlNullString  = "sql.NullString"
	sqlNullInt64   = "sql.NullInt64"
	sqlNullInt32   = "sql.NullInt32"
	sqlNullInt16   = "sql.NullInt16"
	sqlNullBool    = "sql.NullBool"
	sqlNullFloat64 = "sql.NullFloat64"
	sqlNullTime    = "sql.NullTime"
	sqlNullByte    = "sql.NullByte"

	// DBTXFileName is the file GenerateAll declares the shared DBTX interface
	// and table rows in.
	DBTXFileName = "dbtx.go"

	// DefaultPackage is the package clause of generated files.
	DefaultPackage = "queries"
)
