// Package validation provides input validation for file paths and for the
// lexical rules of Metamath labels and math symbols.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on untrusted input.
const (
	// MaxFileSize is the maximum database source size read (1 GiB).
	MaxFileSize = 1 << 30
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// MaxTokenLength bounds a single label or math symbol.
	MaxTokenLength = 1024
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrInvalidLabel     = errors.New("invalid label")
	ErrInvalidSymbol    = errors.New("invalid math symbol")
)

// SanitizePath validates a path named inside a database (a file inclusion)
// and ensures it does not escape baseDir. It returns the cleaned relative path.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	cleanPath := filepath.Clean(userPath)
	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	fullPath := filepath.Join(baseDir, cleanPath)
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", ErrPathTraversal
	}
	return cleanPath, nil
}

// ValidatePath checks a path given on the command line.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// isLabelChar reports whether c may appear in a statement label: letters,
// digits, '-', '_' and '.'.
func isLabelChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.':
		return true
	}
	return false
}

// ValidLabel checks a statement label.
func ValidLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLabel)
	}
	if len(label) > MaxTokenLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidLabel, MaxTokenLength)
	}
	for i := 0; i < len(label); i++ {
		if !isLabelChar(label[i]) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidLabel, label, label[i])
		}
	}
	return nil
}

// ValidMathSymbol checks a math symbol: printable non-space ASCII without '$'.
func ValidMathSymbol(sym string) error {
	if sym == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if len(sym) > MaxTokenLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidSymbol, MaxTokenLength)
	}
	for i := 0; i < len(sym); i++ {
		c := sym[i]
		if c < '!' || c > '~' || c == '$' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidSymbol, sym, c)
		}
	}
	return nil
}
