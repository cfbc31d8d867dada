// Package directive extracts the structured instruction an agent embeds in
// its free-text completion.
//
// A directive is a JSON object inside a fenced block:
//
//	```json
//	{"tool": "query_sales_db", "parameters": {"sql_query": "SELECT 1"}}
//	```
//
// Extract never panics and never returns a Go error: every outcome is a tagged
// Result the caller switches on.
package directive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Type tags the outcome of an extraction.
type Type int

const (
	// NoDirective means the completion carries no structured block; it is a plain answer.
	NoDirective Type = iota

	// ParseError means a structured block was present but could not be used.
	ParseError

	// ToolCall asks the agent to invoke a tool.
	ToolCall

	// Delegation asks the orchestrator to forward a message to another agent.
	Delegation
)

// String returns the tag name, used in logs.
func (t Type) String() string {
	switch t {
	case NoDirective:
		return "no_directive"
	case ParseError:
		return "parse_error"
	case ToolCall:
		return "tool_call"
	case Delegation:
		return "delegation"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Result is the tagged outcome of Extract. Only the fields matching Type are set.
type Result struct {
	Type Type

	// ToolCall fields
	Tool       string
	Parameters map[string]any

	// Delegation fields
	Target  string
	Message string

	// ParseError reason
	Err error
}

// Sentinel reasons wrapped by ParseError results.
var (
	ErrUnterminatedBlock = errors.New("unterminated fenced block")
	ErrMalformedJSON     = errors.New("malformed JSON")
	ErrUnrecognizedShape = errors.New("unrecognized directive shape")
	ErrMissingField      = errors.New("missing or invalid field")
)

// Extract scans text for the first structured fenced block and classifies it.
func Extract(text string) Result {
	body, found, err := firstStructuredBlock(text)
	if err != nil {
		return Result{Type: ParseError, Err: err}
	}
	if !found {
		return Result{Type: NoDirective}
	}
	return classify(body)
}

// classify decodes a block body and matches it against the two directive shapes.
func classify(body string) Result {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	if record == nil {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: block is not a JSON object", ErrMalformedJSON)}
	}
	if dec.More() {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: trailing data after JSON object", ErrMalformedJSON)}
	}

	_, hasTool := record["tool"]
	_, hasParams := record["parameters"]
	_, hasTarget := record["delegate_to"]
	_, hasMessage := record["message"]

	isTool := hasTool || hasParams
	isDelegation := hasTarget || hasMessage

	switch {
	case isTool && isDelegation:
		return Result{Type: ParseError, Err: fmt.Errorf("%w: block mixes tool and delegation keys", ErrUnrecognizedShape)}
	case isTool:
		return toolCall(record)
	case isDelegation:
		return delegation(record)
	default:
		return Result{Type: ParseError, Err: fmt.Errorf("%w: keys %s", ErrUnrecognizedShape, keyList(record))}
	}
}

func toolCall(record map[string]any) Result {
	name, ok := record["tool"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: \"tool\" must be a non-empty string", ErrMissingField)}
	}

	rawParams, ok := record["parameters"].(map[string]any)
	if !ok {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: \"parameters\" must be an object", ErrMissingField)}
	}

	params := make(map[string]any, len(rawParams))
	for k, v := range rawParams {
		pv, err := primitive(v)
		if err != nil {
			return Result{Type: ParseError, Err: fmt.Errorf("%w: parameter %q %v", ErrMissingField, k, err)}
		}
		params[k] = pv
	}

	return Result{Type: ToolCall, Tool: strings.TrimSpace(name), Parameters: params}
}

func delegation(record map[string]any) Result {
	target, ok := record["delegate_to"].(string)
	if !ok || strings.TrimSpace(target) == "" {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: \"delegate_to\" must be a non-empty string", ErrMissingField)}
	}

	message, ok := record["message"].(string)
	if !ok {
		return Result{Type: ParseError, Err: fmt.Errorf("%w: \"message\" must be a string", ErrMissingField)}
	}

	return Result{Type: Delegation, Target: strings.TrimSpace(target), Message: message}
}

// primitive converts a decoded JSON value into a flat argument value.
// Numbers become int64 when integral, float64 otherwise.
func primitive(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool:
		return val, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("has invalid number %s", val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("must be a primitive value, got %T", v)
	}
}

func keyList(record map[string]any) string {
	if len(record) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, ", ") + "]"
}

// Render formats a directive as the fenced block agents are prompted to emit.
// Used to build prompt examples and scripted completions.
func Render(record any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return ""
	}
	return "```json\n" + buf.String() + "```"
}
