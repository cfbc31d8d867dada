package agent

import (
	"fmt"
	"strings"

	"github.com/dyluth/warren/internal/directive"
)

// Built-in role names.
const (
	AnalystName   = "SQLAnalyst"
	ScientistName = "DataScientist"
)

// Tools bound to the built-in roles.
const (
	AnalystTool   = "query_sales_db"
	ScientistTool = "execute_python"
)

var analystPrompt = `You are an expert SQL Analyst.
Your goal is to translate natural language questions into SQL queries for the 'sales_data' table.
The schema is: sales_data (id, product_name, amount, date).

If you generate a SQL query, return it in a JSON block like this:
` + directive.Render(map[string]any{
	"tool":       AnalystTool,
	"parameters": map[string]any{"sql_query": "SELECT * FROM sales_data"},
}) + `
If you cannot answer, explain why.
`

var scientistPrompt = `You are a Python Data Scientist.
Your goal is to write Python code to analyze data that was previously queried.
The conversation history contains earlier query results; copy the values you need into your code.

If you generate code, return it in a JSON block like this:
` + directive.Render(map[string]any{
	"tool":       ScientistTool,
	"parameters": map[string]any{"code": "print('hello')"},
}) + `
Print every value you want to report.
`

// genericPrompt is used for configured roles without a prompt of their own.
func genericPrompt(name string, tools []string) string {
	if len(tools) == 0 {
		return fmt.Sprintf("You are %s.\n", name)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.\n", name)
	fmt.Fprintf(&sb, "You can use these tools: %s.\n\n", strings.Join(tools, ", "))
	sb.WriteString("To use a tool, return a JSON block like this:\n")
	sb.WriteString(directive.Render(map[string]any{
		"tool":       tools[0],
		"parameters": map[string]any{"name": "value"},
	}))
	sb.WriteString("\n")
	return sb.String()
}

// orchestratorPrompt enumerates the subordinates the orchestrator may delegate to.
func orchestratorPrompt(subordinates []Agent) string {
	var sb strings.Builder
	sb.WriteString("You are the Manager of a Data Team.\n")

	if len(subordinates) == 0 {
		sb.WriteString("You have no workers. Answer the user directly.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "You have %d workers:\n", len(subordinates))
	for i, sub := range subordinates {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, sub.Name(), describe(sub))
	}

	sb.WriteString("\nYour job is to break down the user request and delegate each part to the right worker.\n\n")
	sb.WriteString("Reply with JSON to delegate:\n")
	sb.WriteString(directive.Render(map[string]any{
		"delegate_to": subordinates[0].Name(),
		"message":     "Query total sales...",
	}))
	sb.WriteString("\nOr reply with text to answer the user directly.\n")
	return sb.String()
}

func describe(a Agent) string {
	if d, ok := a.(interface{ Description() string }); ok && d.Description() != "" {
		return d.Description()
	}
	return "General assistant."
}
