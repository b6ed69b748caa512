package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// expandPath expands ~ and environment variables in a path.
func expandPath(path string) string {
	s, err := homedir.Expand(path)
	if err != nil {
		s = path
	}
	return os.ExpandEnv(s)
}

// stdinIsPipe reports whether data is being piped into the process.
func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// ensureDir creates a directory if needed and returns its absolute path.
func ensureDir(path string) (string, error) {
	path = expandPath(path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil //nolint:nilerr
	}
	return abs, nil
}

// commaList splits a comma-separated flag value.
func commaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
