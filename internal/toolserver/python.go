package toolserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPython is the interpreter used when none is configured.
	DefaultPython = "python3"

	// DefaultPythonTimeout bounds a single execution.
	DefaultPythonTimeout = 60 * time.Second

	// maxOutputSize caps captured stdout and stderr (1MB each).
	maxOutputSize = 1 * 1024 * 1024
)

// PythonTool runs code in a child interpreter process.
// It is not a sandbox: the code runs with the server's privileges.
type PythonTool struct {
	interpreter string
	timeout     time.Duration
	logger      logrus.FieldLogger
}

// NewPythonTool creates a PythonTool. Zero values select the defaults.
func NewPythonTool(interpreter string, timeout time.Duration, logger logrus.FieldLogger) *PythonTool {
	if interpreter == "" {
		interpreter = DefaultPython
	}
	if timeout <= 0 {
		timeout = DefaultPythonTimeout
	}
	return &PythonTool{
		interpreter: interpreter,
		timeout:     timeout,
		logger:      logger.WithField("tool", ToolExecutePython),
	}
}

// Definition returns the MCP tool definition.
func (t *PythonTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolExecutePython,
		mcp.WithDescription("Execute Python code and return what it prints to stdout."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Python source code")),
	)
}

// Handle processes the tool call.
func (t *PythonTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stdout, err := t.Run(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Execution Success.\nOutput:\n" + stdout), nil
}

// Run executes code with the interpreter reading the program from stdin.
// A non-zero exit is reported as an error carrying the interpreter's stderr.
func (t *PythonTool) Run(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.interpreter, "-")
	cmd.Stdin = strings.NewReader(code)

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd.Stdout = &limitedWriter{w: stdoutBuf, limit: maxOutputSize}
	cmd.Stderr = &limitedWriter{w: stderrBuf, limit: maxOutputSize}

	t.logger.WithField("bytes", len(code)).Debug("Executing code")
	start := time.Now()

	err := cmd.Run()

	t.logger.WithField("duration", time.Since(start)).Debug("Execution finished")

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("Execution Logic Error: timed out after %s", t.timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("Execution Logic Error: %s", lastLine(stderrBuf.String(), exitErr.Error()))
		}
		return "", fmt.Errorf("failed to start %s: %w", t.interpreter, err)
	}

	if stdoutBuf.Len() >= maxOutputSize {
		return stdoutBuf.String() + "\n[output truncated at 1MB]", nil
	}
	return stdoutBuf.String(), nil
}

// lastLine returns the last non-empty line of s (the exception line of a
// Python traceback), or fallback when s is blank.
func lastLine(s, fallback string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return fallback
}

// limitedWriter wraps a writer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err
}
