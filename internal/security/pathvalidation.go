// Package security validates user-supplied export paths so tools
// never write outside their configured export directory.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateExportPath checks that a user-supplied export path stays
// within exportDir. It prevents path traversal by resolving . and ..
// components before comparing against the export root.
func ValidateExportPath(path, exportDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty export path")
	}
	if exportDir == "" {
		return "", fmt.Errorf("export directory not configured")
	}

	absDir, err := filepath.Abs(filepath.Clean(exportDir))
	if err != nil {
		return "", fmt.Errorf("cannot resolve export directory: %w", err)
	}

	joined := path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(absDir, joined)
	}
	absPath, err := filepath.Abs(filepath.Clean(joined))
	if err != nil {
		return "", fmt.Errorf("cannot resolve export path: %w", err)
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return "", fmt.Errorf("path is outside export directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", path, exportDir)
	}

	return absPath, nil
}
