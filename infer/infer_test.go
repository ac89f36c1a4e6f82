package infer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalbasit/sqltmpl/infer"
	"github.com/kalbasit/sqltmpl/schema"
	"github.com/kalbasit/sqltmpl/sqlerr"
)

const shopSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    email VARCHAR(255),
    created_at TIMESTAMP
);

CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    user_id INTEGER NOT NULL,
    total DECIMAL(10, 2),
    shipped BOOLEAN
);
`

func newInferrer(t *testing.T) *infer.Inferrer {
	t.Helper()

	p := schema.New()
	require.NoError(t, p.LoadSchemaText(shopSchema))

	return infer.New(p)
}

func TestInfer(t *testing.T) {
	t.Parallel()

	i := newInferrer(t)

	tests := []struct {
		name   string
		sql    string
		param  string
		want   string
		source infer.Source
	}{
		{"exact column", "SELECT * FROM users WHERE id = :id", "id", "int64", infer.SourceColumn},
		{"exact column ignores case", "SELECT * FROM users WHERE email = :EMAIL", "EMAIL", "string", infer.SourceColumn},
		{"exact column in second table", "SELECT * FROM users u JOIN orders o ON o.user_id = u.id WHERE o.total > :total", "total", "float64", infer.SourceColumn},
		{"where context", "SELECT * FROM users WHERE created_at >= :since", "since", "time.Time", infer.SourceContext},
		{"where context with alias", "SELECT * FROM orders o WHERE o.shipped = :flag", "flag", "bool", infer.SourceContext},
		{"set context", "UPDATE orders SET total = :new_total WHERE id = :id", "new_total", "float64", infer.SourceContext},
		{"chained condition", "SELECT * FROM users WHERE id > 0 AND email LIKE :pattern", "pattern", "string", infer.SourceContext},
		{"chained assignment", "UPDATE orders SET total = 0,shipped = :done", "done", "bool", infer.SourceContext},
		{"in list", "SELECT * FROM orders WHERE total IN (:totals)", "totals", "float64", infer.SourceContext},
		{"heuristic after missing column", "SELECT * FROM users WHERE user_id = :user_id", "user_id", "int64", infer.SourceHeuristic},
		{"heuristic for unknown table", "SELECT * FROM products WHERE price < :max_price", "max_price", "float64", infer.SourceHeuristic},
		{"heuristic no match", "SELECT * FROM users WHERE 1 = :whatever", "whatever", "any", infer.SourceHeuristic},
		{"no table", "SELECT :user_id", "user_id", "any", infer.SourceNone},
		{"insert", "INSERT INTO orders (user_id, total) VALUES (:user_id, :total)", "user_id", "int64", infer.SourceColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := i.Resolve(tt.sql, tt.param)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.source, got.Source)
			assert.Equal(t, tt.want, i.Infer(tt.sql, tt.param))
		})
	}
}

func TestInferSpecScenario(t *testing.T) {
	t.Parallel()

	p := schema.New()
	require.NoError(t, p.LoadSchemaText("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"))

	got := infer.New(p).Resolve("SELECT * FROM users WHERE user_id = :user_id", "user_id")
	assert.Equal(t, "int64", got.Type)
	assert.Equal(t, infer.SourceHeuristic, got.Source)
}

func TestNameHeuristic(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"id":             "int64",
		"user_id":        "int64",
		"ID":             "int64",
		"quantity":       "int64",
		"row_count":      "int64",
		"total_amount":   "int64",
		"phone_number":   "int64",
		"threshold":      "int64",
		"unit_price":     "float64",
		"shipping_cost":  "float64",
		"tax_rate":       "float64",
		"first_name":     "string",
		"title":          "string",
		"label":          "string",
		"description":    "string",
		"body_text":      "string",
		"content":        "string",
		"search_term":    "string",
		"query":          "string",
		"active":         "bool",
		"is_enabled":     "bool",
		"is_admin":       "bool",
		"has_children":   "bool",
		"since":          "any",
		"identity":       "any",
		"this_is_hidden": "any",
	}

	for param, want := range tests {
		assert.Equal(t, want, infer.NameHeuristic(param), param)
	}
}

func TestTableNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM users", []string{"users"}},
		{"select * from Users u join ORDERS o on o.user_id = u.id", []string{"users", "orders"}},
		{"SELECT * FROM users, orders o WHERE o.user_id = users.id", []string{"users", "orders"}},
		{"INSERT INTO users (name) VALUES (:name)", []string{"users"}},
		{"UPDATE users SET name = :name WHERE id = :id", []string{"users"}},
		{"DELETE FROM users WHERE id = :id", []string{"users"}},
		{`SELECT * FROM "public"."users"`, []string{"users"}},
		{"SELECT * FROM [dbo].[users]", []string{"users"}},
		{"SELECT * FROM `shop`.`users`", []string{"users"}},
		{"SELECT * FROM ONLY users", []string{"users"}},
		{"SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)", []string{"users", "orders"}},
		{"SELECT * FROM (SELECT id FROM users) sub", []string{"users"}},
		{"SELECT EXTRACT(YEAR FROM created_at) FROM users", []string{"users"}},
		{"WITH recent AS (SELECT * FROM orders) SELECT * FROM recent JOIN users ON users.id = recent.user_id", []string{"orders", "users"}},
		{"WITH cte AS (SELECT 1) INSERT INTO t SELECT * FROM cte", []string{"t"}},
		{"INSERT INTO users (id) VALUES (:id) ON CONFLICT (id) DO UPDATE SET id = :id", []string{"users"}},
		{"SELECT * FROM users -- JOIN orders", []string{"users"}},
		{"SELECT 'FROM orders' FROM users", []string{"users"}},
		{"SELECT 1", nil},
		{"", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, infer.TableNames(tt.sql), tt.sql)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	i := newInferrer(t)

	require.NoError(t, i.Validate("SELECT * FROM users WHERE id = :id AND name = :name", []string{"id", "name"}))
	require.NoError(t, i.Validate("SELECT * FROM users u JOIN orders o ON o.user_id = u.id WHERE o.total > :total",
		[]string{"total"}))
	require.NoError(t, i.Validate("SELECT 1", []string{"anything"}))
	require.NoError(t, i.Validate("SELECT * FROM users", nil))

	err := i.Validate("SELECT * FROM users WHERE id = :user_id AND status = :status", []string{"user_id", "status"})
	require.ErrorIs(t, err, sqlerr.ErrSQLValidation)
	assert.Contains(t, err.Error(), `"user_id", "status"`)
	assert.Contains(t, err.Error(), "users")
	assert.Contains(t, err.Error(), "Available columns: id, name, email, created_at")

	err = i.Validate("SELECT * FROM products WHERE id = :id", []string{"id"})
	require.ErrorIs(t, err, sqlerr.ErrSQLValidation)
	assert.Contains(t, err.Error(), "products")
	assert.Contains(t, err.Error(), "Available columns: none")
}
