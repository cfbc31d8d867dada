package toolserver

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const salesSchema = `CREATE TABLE sales_data (
	id INTEGER PRIMARY KEY,
	product_name TEXT NOT NULL,
	amount INTEGER NOT NULL,
	date TEXT NOT NULL
)`

type saleRow struct {
	id      int
	product string
	amount  int
	date    string
}

var salesFixture = []saleRow{
	{1, "Laptop", 1200, "2023-01-15"},
	{2, "Mouse", 25, "2023-01-16"},
	{3, "Monitor", 300, "2023-02-01"},
	{4, "Laptop", 1200, "2023-02-10"},
}

// destructivePattern matches statements that modify the sales data.
var destructivePattern = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER)\b`)

// SalesDB is an in-memory SQLite database seeded with the sales fixture.
type SalesDB struct {
	db *sql.DB
}

// OpenSalesDB creates and seeds the database.
func OpenSalesDB() (*SalesDB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(salesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sales_data: %w", err)
	}
	for _, r := range salesFixture {
		if _, err := db.Exec("INSERT INTO sales_data VALUES (?, ?, ?, ?)", r.id, r.product, r.amount, r.date); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed sales_data: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to make sales database read-only: %w", err)
	}

	return &SalesDB{db: db}, nil
}

// Close releases the database.
func (s *SalesDB) Close() error {
	return s.db.Close()
}

// Query runs a read-only statement and renders the result as text:
//
//	Columns: product_name, amount
//	Laptop, 1200
//
// An empty result set renders as "No results found.".
func (s *SalesDB) Query(ctx context.Context, query string) (string, error) {
	if destructivePattern.MatchString(query) {
		return "", fmt.Errorf("destructive operations are not allowed")
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(columns, ", "))

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatCell(v)
		}
		sb.WriteString(strings.Join(cells, ", "))
		sb.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if count == 0 {
		return "No results found.", nil
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// QueryTool exposes SalesDB as the query_sales_db MCP tool.
type QueryTool struct {
	db     *SalesDB
	logger logrus.FieldLogger
}

// NewQueryTool creates a QueryTool.
func NewQueryTool(db *SalesDB, logger logrus.FieldLogger) *QueryTool {
	return &QueryTool{db: db, logger: logger.WithField("tool", ToolQuerySalesDB)}
}

// Definition returns the MCP tool definition.
func (t *QueryTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolQuerySalesDB,
		mcp.WithDescription(
			"Execute a read-only SQL query against the internal sales database. "+
				"Schema: sales_data (id, product_name, amount, date). "+
				"Example: SELECT sum(amount) FROM sales_data WHERE date > '2023-01-01'",
		),
		mcp.WithString("sql_query", mcp.Required(), mcp.Description("SQLite SELECT statement")),
	)
}

// Handle processes the tool call.
func (t *QueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("sql_query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.logger.WithField("sql", query).Info("Executing query")

	out, err := t.db.Query(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("SQL Error: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}
