package toolserver

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestArithmeticTool(t *testing.T) {
	add := NewArithmeticTool(ToolAdd, "Add", func(a, b float64) float64 { return a + b })
	multiply := NewArithmeticTool(ToolMultiply, "Multiply", func(a, b float64) float64 { return a * b })

	res, err := add.Handle(context.Background(), callRequest(ToolAdd, map[string]any{"a": 2.0, "b": 3.0}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "5", resultText(t, res))

	res, err = multiply.Handle(context.Background(), callRequest(ToolMultiply, map[string]any{"a": 2.5, "b": 4.0}))
	require.NoError(t, err)
	assert.Equal(t, "10", resultText(t, res))

	res, err = add.Handle(context.Background(), callRequest(ToolAdd, map[string]any{"a": 1.0}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSalesDB_Query(t *testing.T) {
	db, err := OpenSalesDB()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	out, err := db.Query(ctx, "SELECT sum(amount) AS total FROM sales_data")
	require.NoError(t, err)
	assert.Equal(t, "Columns: total\n2725", out)

	out, err = db.Query(ctx, "SELECT product_name, amount FROM sales_data WHERE date >= '2023-02-01' ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, "Columns: product_name, amount\nMonitor, 300\nLaptop, 1200", out)

	out, err = db.Query(ctx, "SELECT * FROM sales_data WHERE product_name = 'Keyboard'")
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestSalesDB_RejectsDestructiveStatements(t *testing.T) {
	db, err := OpenSalesDB()
	require.NoError(t, err)
	defer db.Close()

	for _, q := range []string{
		"DROP TABLE sales_data",
		"delete from sales_data",
		"UPDATE sales_data SET amount = 0",
		"INSERT INTO sales_data VALUES (5, 'Pen', 1, '2023-03-01')",
		"ALTER TABLE sales_data ADD COLUMN x",
	} {
		_, err := db.Query(context.Background(), q)
		assert.Error(t, err, q)
	}

	out, err := db.Query(context.Background(), "SELECT count(*) AS n FROM sales_data")
	require.NoError(t, err)
	assert.Equal(t, "Columns: n\n4", out)
}

func TestQueryTool_SQLErrorIsToolError(t *testing.T) {
	db, err := OpenSalesDB()
	require.NoError(t, err)
	defer db.Close()

	tool := NewQueryTool(db, logrus.StandardLogger())
	res, err := tool.Handle(context.Background(), callRequest(ToolQuerySalesDB, map[string]any{"sql_query": "SELECT nope FROM missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(resultText(t, res), "SQL Error:"))
}

func TestLimitedWriter(t *testing.T) {
	var sb strings.Builder
	lw := &limitedWriter{w: &sb, limit: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = lw.Write([]byte("ijk"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "abcde", sb.String())
}

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultPython); err != nil {
		t.Skip("python3 not available")
	}
}

func TestPythonTool_Run(t *testing.T) {
	requirePython(t)

	tool := NewPythonTool("", 0, logrus.StandardLogger())

	out, err := tool.Run(context.Background(), "print(sum([1200, 25, 300, 1200]))")
	require.NoError(t, err)
	assert.Equal(t, "2725\n", out)

	_, err = tool.Run(context.Background(), "raise ValueError('bad input')")
	require.Error(t, err)
	assert.Equal(t, "Execution Logic Error: ValueError: bad input", err.Error())
}

func TestPythonTool_Timeout(t *testing.T) {
	requirePython(t)

	tool := NewPythonTool("", 200*time.Millisecond, logrus.StandardLogger())
	_, err := tool.Run(context.Background(), "import time\ntime.sleep(5)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPythonTool_MissingInterpreter(t *testing.T) {
	tool := NewPythonTool("definitely-not-a-python-binary", 0, logrus.StandardLogger())
	res, err := tool.Handle(context.Background(), callRequest(ToolExecutePython, map[string]any{"code": "print(1)"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_InProcess(t *testing.T) {
	s, cleanup, err := New(Options{})
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	c, err := client.NewInProcessClient(s)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Start(ctx))

	var initReq mcp.InitializeRequest
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "toolserver-test", Version: "test"}
	initRes, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, Name, initRes.ServerInfo.Name)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolAdd, ToolMultiply, ToolQuerySalesDB, ToolExecutePython}, names)

	res, err := c.CallTool(ctx, callRequest(ToolAdd, map[string]any{"a": 2, "b": 3}))
	require.NoError(t, err)
	assert.Equal(t, "5", resultText(t, res))

	res, err = c.CallTool(ctx, callRequest(ToolQuerySalesDB, map[string]any{"sql_query": "SELECT count(*) AS n FROM sales_data"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Columns: n\n4", resultText(t, res))
}
