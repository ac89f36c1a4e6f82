package generator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalbasit/sqltmpl/generator"
	"github.com/kalbasit/sqltmpl/sqlerr"
)

const usersSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    email VARCHAR(255),
    created_at TIMESTAMP
);
`

const testTemplate = `# TestClass
# get_user
SELECT * FROM users WHERE id = :user_id;

# get_user_names
SELECT id, name AS display_name FROM users WHERE name LIKE :pattern;

# count_users
SELECT COUNT(*) FROM users;

# create_user
INSERT INTO users (name, email) VALUES (:name, :email) RETURNING id;

# delete_user
DELETE FROM users WHERE id = :id;
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestToSnakeCase(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"TestClass":      "test_class",
		"UserRepository": "user_repository",
		"userRepo":       "user_repo",
		"UserID":         "user_id",
		"ID":             "id",
	}

	for in, want := range tests {
		assert.Equal(t, want, generator.ToSnakeCase(in), in)
	}
}

func TestToGoName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		exported bool
		want     string
	}{
		{"get_user", true, "GetUser"},
		{"get_user", false, "getUser"},
		{"getUser", true, "GetUser"},
		{"user_id", true, "UserID"},
		{"user_id", false, "userID"},
		{"id", true, "ID"},
		{"id", false, "id"},
		{"ID", false, "id"},
		{"api_url", false, "apiURL"},
		{"created_at", true, "CreatedAt"},
		{"quoted col", true, "QuotedCol"},
		{"2fa", false, "x2fa"},
		{"__", true, "_"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, generator.ToGoName(tt.in, tt.exported), tt.in)
	}
}

func TestParamName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"user_id": "userID",
		"name":    "name",
		"type":    "typeArg",
		"range":   "rangeArg",
		"ctx":     "ctxArg",
		"rows":    "rowsArg",
		"i":       "iArg",
		"time":    "timeArg",
	}

	for in, want := range tests {
		assert.Equal(t, want, generator.ParamName(in), in)
	}
}

func TestToSingular(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user", generator.ToSingular("users"))
	assert.Equal(t, "category", generator.ToSingular("categories"))
	assert.Equal(t, "person", generator.ToSingular("people"))
}

func TestFieldType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "int64", generator.FieldType("int64", false))
	assert.Equal(t, "sql.NullInt64", generator.FieldType("int64", true))
	assert.Equal(t, "sql.NullString", generator.FieldType("string", true))
	assert.Equal(t, "sql.NullTime", generator.FieldType("time.Time", true))
	assert.Equal(t, "[]byte", generator.FieldType("[]byte", true))
	assert.Equal(t, "any", generator.FieldType("any", true))
}

func TestGoString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "`SELECT 1`", generator.GoString("SELECT 1"))
	assert.Equal(t, "\"SELECT `a` FROM t\"", generator.GoString("SELECT `a` FROM t"))
}

func TestJoinParamsSignature(t *testing.T) {
	t.Parallel()

	got := generator.JoinParamsSignature([]generator.Param{
		{Name: "ctx", Type: "context.Context"},
		{Name: "userID", Type: "int64"},
	})
	assert.Equal(t, "ctx context.Context, userID int64", got)
	assert.Empty(t, generator.JoinParamsSignature(nil))
}

func TestFormatSource(t *testing.T) {
	t.Parallel()

	src, err := generator.FormatSource("x.go", []byte("package x\nfunc f() time.Duration {\nreturn 0\n}\n"))
	require.NoError(t, err)
	assert.Contains(t, string(src), `import "time"`)

	_, err = generator.FormatSource("x.go", []byte("package x\nfunc {"))
	require.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	tests := map[string]generator.Dialect{
		"sqlite":     generator.SQLite,
		"SQLite3":    generator.SQLite,
		"mysql":      generator.MySQL,
		"PostgreSQL": generator.Postgres,
		"postgres":   generator.Postgres,
		"mssql":      generator.SQLServer,
		"sqlserver":  generator.SQLServer,
	}

	for name, want := range tests {
		got, err := generator.ParseDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := generator.ParseDialect("oracle")
	require.ErrorIs(t, err, sqlerr.ErrConfiguration)
	assert.Contains(t, err.Error(), "sqlite, mysql, postgres, sqlserver")
}

func TestDialectPlaceholder(t *testing.T) {
	t.Parallel()

	assert.True(t, generator.Postgres.IsPostgres())
	assert.False(t, generator.Postgres.IsSQLServer())
	assert.True(t, generator.SQLServer.IsSQLServer())
	assert.False(t, generator.MySQL.IsPostgres())

	assert.Equal(t, "$3", generator.Postgres.Placeholder(3))
	assert.Equal(t, "@p3", generator.SQLServer.Placeholder(3))
	assert.Equal(t, "?", generator.MySQL.Placeholder(3))
	assert.Equal(t, "?", generator.SQLite.Placeholder(3))
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	const repeated = "SELECT * FROM t WHERE a = :a AND b = :b OR a = :a"

	tests := []struct {
		name    string
		sql     string
		dialect generator.Dialect
		want    string
		args    []string
	}{
		{"sqlite", repeated, generator.SQLite, "SELECT * FROM t WHERE a = ? AND b = ? OR a = ?", []string{"a", "b", "a"}},
		{"mysql", "INSERT INTO t (a) VALUES (:a)", generator.MySQL, "INSERT INTO t (a) VALUES (?)", []string{"a"}},
		{"postgres reuses positions", repeated, generator.Postgres, "SELECT * FROM t WHERE a = $1 AND b = $2 OR a = $1", []string{"a", "b"}},
		{"postgres id twice", "SELECT * FROM t WHERE id = :id OR parent = :id", generator.Postgres, "SELECT * FROM t WHERE id = $1 OR parent = $1", []string{"id"}},
		{"sqlserver", repeated, generator.SQLServer, "SELECT * FROM t WHERE a = @p1 AND b = @p2 OR a = @p1", []string{"a", "b"}},
		{"cast", "SELECT :a::int", generator.Postgres, "SELECT $1::int", []string{"a"}},
		{"array slice", "SELECT arr[1 : hi] FROM t WHERE a = :a", generator.Postgres, "SELECT arr[1 : hi] FROM t WHERE a = $1", []string{"a"}},
		{
			"literals and comments",
			`SELECT ':x', "x:y" FROM t WHERE c = :c -- :d`, generator.SQLite,
			`SELECT ':x', "x:y" FROM t WHERE c = ? -- :d`, []string{"c"},
		},
		{"no parameters", "SELECT 1", generator.Postgres, "SELECT 1", nil},
		{"unterminated literal", "SELECT * FROM t WHERE a = :a AND b = 'x", generator.SQLite, "SELECT * FROM t WHERE a = ? AND b = 'x", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, args, err := generator.Rewrite(tt.sql, tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.args, args)
		})
	}

	_, _, err := generator.Rewrite("SELECT 1", "oracle")
	require.ErrorIs(t, err, sqlerr.ErrConfiguration)
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := generator.New(generator.WithDialect("oracle"))
	require.ErrorIs(t, err, sqlerr.ErrConfiguration)

	_, err = generator.New(generator.WithPackage("not-a-package"))
	require.ErrorIs(t, err, sqlerr.ErrConfiguration)

	g, err := generator.New(generator.WithDialect("PostgreSQL"), generator.WithConcurrency(0))
	require.NoError(t, err)
	assert.NotNil(t, g.Schema())
}

func TestGenerateClass(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "test.sql", testTemplate)
	writeFile(t, dir, "test.schema", usersSchema)

	g, err := generator.New()
	require.NoError(t, err)

	src, err := g.GenerateClass(path)
	require.NoError(t, err)

	out := string(src)

	assert.Contains(t, out, "// Code generated by sqltmpl. DO NOT EDIT.")
	assert.Contains(t, out, "// source: test.sql")
	assert.Contains(t, out, "package queries")
	assert.Contains(t, out, `"database/sql"`)
	assert.Contains(t, out, "type DBTX interface")
	assert.Contains(t, out, "type TestClass struct")
	assert.Contains(t, out, "func NewTestClass(db DBTX) *TestClass {")
	assert.Contains(t, out, "func (q *TestClass) WithTx(tx *sql.Tx) *TestClass {")

	// FETCH over a whole table
	assert.Contains(t, out, "const getUserSQL = `SELECT * FROM users WHERE id = ?`")
	assert.Contains(t, out, "func (q *TestClass) GetUser(ctx context.Context, userID int64) ([]User, error) {")
	assert.Contains(t, out, "q.db.QueryContext(ctx, getUserSQL, userID)")
	assert.Regexp(t, "type User struct \\{\\s+"+
		"ID\\s+int64\\s+`db:\"id\"`\\s+"+
		"Name\\s+string\\s+`db:\"name\"`\\s+"+
		"Email\\s+sql.NullString\\s+`db:\"email\"`\\s+"+
		"CreatedAt\\s+sql.NullTime\\s+`db:\"created_at\"`\\s+\\}", out)
	assert.Contains(t, out, "rows.Scan(&i.ID, &i.Name, &i.Email, &i.CreatedAt)")

	// FETCH over some columns
	assert.Contains(t, out, "func (q *TestClass) GetUserNames(ctx context.Context, pattern string) ([]GetUserNamesRow, error) {")
	assert.Regexp(t, "type GetUserNamesRow struct \\{\\s+"+
		"ID\\s+int64\\s+`db:\"id\"`\\s+"+
		"DisplayName\\s+string\\s+`db:\"display_name\"`\\s+\\}", out)

	// FETCH that does not map to a table
	assert.Contains(t, out, "func (q *TestClass) CountUsers(ctx context.Context) (*sql.Rows, error) {")

	// EXECUTE with RETURNING
	assert.Contains(t, out, "([]CreateUserRow, error) {")
	assert.Contains(t, out, "q.db.QueryContext(ctx, createUserSQL, name, email)")

	// EXECUTE
	assert.Contains(t, out, "func (q *TestClass) DeleteUser(ctx context.Context, id int64) (sql.Result, error) {")
	assert.Contains(t, out, "return q.db.ExecContext(ctx, deleteUserSQL, id)")
}

func TestGenerateClassPostgres(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "users.sql", "# Users\n# find\nSELECT * FROM users WHERE id = :id OR (:id IS NULL AND name = :name);\n")
	schemaFile := writeFile(t, dir, "shop.schema", usersSchema)

	g, err := generator.New(
		generator.WithDialect(generator.Postgres),
		generator.WithPackage("db"),
		generator.WithSchemaFile(schemaFile),
	)
	require.NoError(t, err)

	src, err := g.GenerateClass(path)
	require.NoError(t, err)

	out := string(src)

	assert.Contains(t, out, "package db")
	assert.Contains(t, out, "WHERE id = $1 OR ($1 IS NULL AND name = $2)")
	assert.Contains(t, out, "func (q *Users) Find(ctx context.Context, id int64, name string) ([]User, error) {")
	assert.Contains(t, out, "q.db.QueryContext(ctx, findSQL, id, name)")
}

func TestGenerateClassWithoutSchema(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "misc.sql", "# Misc\n# touch\nUPDATE things SET updated = :is_active WHERE price > :min_price;\n")

	g, err := generator.New()
	require.NoError(t, err)

	src, err := g.GenerateClass(path)
	require.NoError(t, err)

	assert.Contains(t, string(src),
		"func (q *Misc) Touch(ctx context.Context, isActive bool, minPrice float64) (sql.Result, error) {")
}

func TestGenerateClassErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "shop.schema", usersSchema)

	tests := []struct {
		name     string
		template string
		validate bool
		kind     error
		contains string
	}{
		{
			name:     "unknown parameter",
			template: "# V\n# get\nSELECT * FROM users WHERE id = :user_id;\n",
			validate: true,
			kind:     sqlerr.ErrSQLValidation,
			contains: "Available columns: id, name, email, created_at",
		},
		{
			name:     "method names clash",
			template: "# C\n# get_user\nSELECT 1;\n# getUser\nSELECT 2;\n",
			kind:     sqlerr.ErrSQLValidation,
			contains: "GetUser",
		},
		{
			name:     "method shadows WithTx",
			template: "# C\n# with_tx\nSELECT 1;\n",
			kind:     sqlerr.ErrSQLValidation,
			contains: "the generated WithTx method, with_tx all become WithTx",
		},
		{
			name:     "parameter names clash",
			template: "# C\n# m\nSELECT :user_id, :userID;\n",
			kind:     sqlerr.ErrSQLValidation,
			contains: "userID",
		},
		{
			name:     "no class comment",
			template: "SELECT 1;\n",
			kind:     sqlerr.ErrSQLValidation,
			contains: "class comment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, t.TempDir(), "shop.sql", tt.template)

			g, err := generator.New(
				generator.WithValidation(tt.validate),
				generator.WithSchemaFile(filepath.Join(dir, "shop.schema")),
			)
			require.NoError(t, err)

			_, err = g.GenerateClass(path)
			require.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, err.Error(), path)
		})
	}

	g, err := generator.New()
	require.NoError(t, err)

	_, err = g.GenerateClass(filepath.Join(dir, "missing.sql"))
	require.ErrorIs(t, err, sqlerr.ErrFile)

	bad := writeFile(t, dir, "bad.sql", "# Bad\n# m\nSELECT 1;\n")
	writeFile(t, dir, "bad.schema", "CREATE TABLE t ( x );")

	_, err = g.GenerateClass(bad)
	require.ErrorIs(t, err, sqlerr.ErrSchema)
}

func TestGenerateClassTablesWithSameSingular(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "accounts.sql", `# Accounts
# a
SELECT * FROM user;
# b
SELECT * FROM users;
# c
SELECT * FROM user WHERE id = :id;
`)
	writeFile(t, dir, "accounts.schema", `
CREATE TABLE user (id INTEGER PRIMARY KEY);
CREATE TABLE users (email TEXT NOT NULL, age INTEGER NOT NULL);
`)

	g, err := generator.New()
	require.NoError(t, err)

	src, err := g.GenerateClass(path)
	require.NoError(t, err)

	out := string(src)

	assert.Contains(t, out, "func (q *Accounts) A(ctx context.Context) ([]User, error) {")
	assert.Contains(t, out, "func (q *Accounts) C(ctx context.Context, id int64) ([]User, error) {")
	assert.Regexp(t, "type User struct \\{\\s+ID\\s+int64\\s+`db:\"id\"`\\s+\\}", out)
	assert.Contains(t, out, "func (q *Accounts) B(ctx context.Context) ([]BRow, error) {")
	assert.Regexp(t, "type BRow struct \\{\\s+Email\\s+string\\s+`db:\"email\"`\\s+Age\\s+int64\\s+`db:\"age\"`\\s+\\}", out)
	assert.Contains(t, out, "rows.Scan(&i.Email, &i.Age)")
}

func TestGenerateAllTablesWithSameSingular(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	schemaFile := writeFile(t, dir, "shop.schema", `
CREATE TABLE user (id INTEGER PRIMARY KEY);
CREATE TABLE users (email TEXT NOT NULL);
`)
	first := writeFile(t, dir, "first.sql", "# First\n# list\nSELECT * FROM user;\n")
	second := writeFile(t, dir, "second.sql", "# Second\n# list\nSELECT * FROM users;\n")

	g, err := generator.New(generator.WithSchemaFile(schemaFile))
	require.NoError(t, err)

	outputs, err := g.GenerateAll(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assert.Regexp(t, "type User struct \\{\\s+ID\\s+int64", string(outputs[2].Source))
	assert.Contains(t, string(outputs[0].Source), "func (q *First) List(ctx context.Context) ([]User, error) {")
	assert.Contains(t, string(outputs[1].Source), "func (q *Second) List(ctx context.Context) ([]ListRow, error) {")
	assert.Regexp(t, "type ListRow struct \\{\\s+Email\\s+string", string(outputs[1].Source))
}

func TestGenerateAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "gen")

	users := writeFile(t, dir, "users.sql", `# UserQueries
# get_user
SELECT * FROM users WHERE id = :id;
# list_names
SELECT name FROM users;
`)
	writeFile(t, dir, "users.schema", usersSchema)

	orders := writeFile(t, dir, "orders.sql", `# OrderQueries
# list_users
SELECT * FROM users;
# list_names
SELECT name FROM users;
# total
SELECT total FROM orders WHERE user_id = :user_id;
`)
	writeFile(t, dir, "orders.schema", "CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, total DECIMAL(10,2));")

	g, err := generator.New(generator.WithConcurrency(4), generator.WithOutputDir(out))
	require.NoError(t, err)

	outputs, err := g.GenerateAll(context.Background(), []string{users, orders})
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assert.Equal(t, "UserQueries", outputs[0].ClassName)
	assert.Equal(t, "user_queries.go", outputs[0].FileName)
	assert.Equal(t, users, outputs[0].Template)
	assert.Equal(t, "OrderQueries", outputs[1].ClassName)
	assert.Equal(t, "order_queries.go", outputs[1].FileName)
	assert.Empty(t, outputs[2].ClassName)
	assert.Equal(t, generator.DBTXFileName, outputs[2].FileName)

	shared := string(outputs[2].Source)
	assert.Contains(t, shared, "type DBTX interface")
	assert.Contains(t, shared, "type User struct")

	userSrc := string(outputs[0].Source)
	assert.NotContains(t, userSrc, "type DBTX interface")
	assert.NotContains(t, userSrc, "type User struct")
	assert.Contains(t, userSrc, "func (q *UserQueries) GetUser(ctx context.Context, id int64) ([]User, error) {")
	assert.Contains(t, userSrc, "type UserQueriesListNamesRow struct")

	orderSrc := string(outputs[1].Source)
	assert.Contains(t, orderSrc, "func (q *OrderQueries) ListUsers(ctx context.Context) ([]User, error) {")
	assert.Contains(t, orderSrc, "type OrderQueriesListNamesRow struct")
	assert.Regexp(t, "type TotalRow struct \\{\\s+Total\\s+sql.NullFloat64", orderSrc)
	assert.Contains(t, orderSrc, "func (q *OrderQueries) Total(ctx context.Context, userID int64) ([]TotalRow, error) {")

	for _, o := range outputs {
		written, err := os.ReadFile(filepath.Join(out, o.FileName))
		require.NoError(t, err)
		assert.Equal(t, o.Source, written)
	}
}

func TestGenerateAllErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "a.sql", "# Same\n# m\nSELECT 1;\n")
	second := writeFile(t, dir, "b.sql", "# Same\n# n\nSELECT 2;\n")

	g, err := generator.New(generator.WithConcurrency(2))
	require.NoError(t, err)

	_, err = g.GenerateAll(context.Background(), []string{first, second})
	require.ErrorIs(t, err, sqlerr.ErrSQLValidation)
	assert.Contains(t, err.Error(), "Same")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.GenerateAll(ctx, []string{first})
	require.ErrorIs(t, err, context.Canceled)

	_, err = g.GenerateAll(context.Background(), []string{filepath.Join(dir, "missing.sql")})
	require.ErrorIs(t, err, sqlerr.ErrFile)
}
