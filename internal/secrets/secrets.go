// Package secrets resolves credential settings from environment references
// or mounted secret files (Docker and Kubernetes secrets).
//
// Secret values are never logged or included in errors.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/errors"
)

// maxFileSize bounds secret file reads; secrets are tokens and passwords.
const maxFileSize = 64 * 1024

// Resolver reads secret files through fs and environment variables through getenv.
type Resolver struct {
	fs     afero.Fs
	getenv func(string) string
	warn   func(format string, args ...any)
}

// NewResolver returns a resolver over the OS filesystem and environment.
func NewResolver() *Resolver {
	return &Resolver{
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
		warn: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...)
		},
	}
}

// Expand substitutes ${VAR} and ${VAR:-default} references in s. A reference
// without a default to an unset variable is an error.
func (r *Resolver) Expand(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := r.getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile returns the content of a secret file without its trailing newline.
// Files readable by group or others produce a warning.
func (r *Resolver) ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := r.fs.Stat(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(fmt.Errorf("not a regular file"), clean)
	}
	if info.Size() > maxFileSize {
		return "", fileError(fmt.Errorf("file exceeds %d bytes", maxFileSize), clean)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		r.warn("secret file %s is accessible by group or others (%04o)", clean, perm)
	}

	data, err := afero.ReadFile(r.fs, clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(fmt.Errorf("file is empty"), clean)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded.
func (r *Resolver) Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return r.ReadFile(filePath)
	}
	return r.Expand(value)
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Context("path", path).
		Build()
}
