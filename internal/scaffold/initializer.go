// Package scaffold writes a starter warren.yml and completion script.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/warren/internal/completion"
	"github.com/dyluth/warren/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// ScriptFile is the sample completion script written next to the config.
const ScriptFile = "warren-script.yml"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

func projectFiles(dir string) []FileInfo {
	return []FileInfo{
		{Path: filepath.Join(dir, config.DefaultPath), Template: "templates/warren.yml.tmpl", Permissions: 0o644},
		{Path: filepath.Join(dir, ScriptFile), Template: "templates/script.yml.tmpl", Permissions: 0o644},
	}
}

// CheckExisting returns an error naming the starter files already present in dir.
func CheckExisting(dir string) error {
	var existing []string
	for _, f := range projectFiles(dir) {
		if _, err := os.Stat(f.Path); err == nil {
			existing = append(existing, filepath.Base(f.Path))
		}
	}

	if len(existing) == 0 {
		return nil
	}
	return fmt.Errorf("project already initialized (found %s); use 'warren init --force' to overwrite",
		strings.Join(existing, ", "))
}

// Initialize writes the starter files into dir and returns their paths.
// Existing files are only replaced when force is set.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var created []string
	for _, f := range projectFiles(dir) {
		content, err := templatesFS.ReadFile(f.Template)
		if err != nil {
			return created, fmt.Errorf("failed to read template %s: %w", f.Template, err)
		}
		if err := os.WriteFile(f.Path, content, f.Permissions); err != nil {
			return created, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		created = append(created, f.Path)
	}

	if err := validateCreatedFiles(dir); err != nil {
		return created, err
	}

	return created, nil
}

// validateCreatedFiles checks that the written config and script load cleanly.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}
	if _, err := completion.LoadScript(filepath.Join(dir, ScriptFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ScriptFile, err)
	}
	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(w io.Writer, created []string) {
	fmt.Fprintln(w, "\n✅ Successfully initialized Warren project!")
	fmt.Fprintln(w, "\nCreated:")
	for _, path := range created {
		fmt.Fprintf(w, "  ✓ %s\n", path)
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintf(w, "  1. Export %s, or switch llm.provider to 'script' to run offline\n", config.EnvGeminiAPIKey)
	fmt.Fprintln(w, "  2. Run 'warren mission \"What were total sales?\"'")
	fmt.Fprintln(w, "  3. Inspect the session with 'warren log'")
}
