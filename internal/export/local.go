package export

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/errors"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// LocalTarget copies reports into a directory.
type LocalTarget struct {
	fs   afero.Fs
	path string
}

// NewLocalTarget creates a local target rooted at path.
func NewLocalTarget(fs afero.Fs, path string) (*LocalTarget, error) {
	if path == "" {
		return nil, errors.Newf("local export: path is required").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &LocalTarget{fs: fs, path: filepath.Clean(path)}, nil
}

func (t *LocalTarget) Name() string { return "local:" + t.path }

// Store writes to a temporary file and renames it into place.
func (t *LocalTarget) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.fs.MkdirAll(t.path, dirPermissions); err != nil {
		return err
	}

	dst := filepath.Join(t.path, name)
	tmp, err := afero.TempFile(t.fs, t.path, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = t.fs.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := t.fs.Chmod(tmpName, filePermissions); err != nil {
		return err
	}
	if err := t.fs.Rename(tmpName, dst); err != nil {
		return err
	}
	committed = true
	return nil
}
