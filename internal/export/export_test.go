package export

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
)

func TestLocalTargetStore(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/summary-2025-W10.csv", []byte("weekKey,email\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "archive/summary-2025-W10.csv", []byte("stale"), 0o644))

	target, err := NewLocalTarget(fs, "archive/")
	require.NoError(t, err)

	exp := NewWithTargets(fs, logger.NewDiscardLogger(), target)
	failures := exp.Export(context.Background(), []string{"out/summary-2025-W10.csv"})
	assert.Empty(t, failures)

	data, err := afero.ReadFile(fs, "archive/summary-2025-W10.csv")
	require.NoError(t, err)
	assert.Equal(t, "weekKey,email\n", string(data))

	entries, err := afero.ReadDir(fs, "archive")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestExportMissingSourceIsReported(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	target, err := NewLocalTarget(fs, "archive")
	require.NoError(t, err)

	failures := NewWithTargets(fs, logger.NewDiscardLogger(), target).
		Export(context.Background(), []string{"out/missing.csv"})
	require.Len(t, failures, 1)
	assert.Equal(t, "out/missing.csv", failures[0].File)
	assert.True(t, errors.IsCategory(failures[0].Err, errors.CategoryFileIO))
}

type flakyTarget struct {
	failures int
	err      error
	calls    int
	got      string
}

func (f *flakyTarget) Name() string { return "flaky" }

func (f *flakyTarget) Store(_ context.Context, _ string, r io.Reader) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	data, err := io.ReadAll(r)
	f.got = string(data)
	return err
}

func TestExportRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/a.csv", []byte("x"), 0o644))

	target := &flakyTarget{failures: 2, err: fmt.Errorf("read: connection reset by peer")}
	exp := NewWithTargets(fs, logger.NewDiscardLogger(), target)
	exp.retry = retryConfig{maxRetries: 3, backoff: time.Millisecond}

	assert.Empty(t, exp.Export(context.Background(), []string{"out/a.csv"}))
	assert.Equal(t, 3, target.calls)
	assert.Equal(t, "x", target.got, "each attempt reopens the source")
}

func TestExportDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/a.csv", []byte("x"), 0o644))

	target := &flakyTarget{failures: 5, err: fmt.Errorf("permission denied")}
	exp := NewWithTargets(fs, logger.NewDiscardLogger(), target)
	exp.retry = retryConfig{maxRetries: 3, backoff: time.Millisecond}

	failures := exp.Export(context.Background(), []string{"out/a.csv"})
	require.Len(t, failures, 1)
	assert.Equal(t, 1, target.calls)
	assert.True(t, errors.IsCategory(failures[0].Err, errors.CategoryExport))
}

func TestNewTarget(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	log := logger.NewDiscardLogger()

	tests := []struct {
		name    string
		cfg     conf.ExportTarget
		want    string
		wantErr bool
	}{
		{"local", conf.ExportTarget{Type: "local", Path: "archive"}, "local:archive", false},
		{"local without path", conf.ExportTarget{Type: "local"}, "", true},
		{"sftp", conf.ExportTarget{Type: "sftp", Host: "files.example.com", Password: "pw"}, "sftp:files.example.com", false},
		{"sftp without auth", conf.ExportTarget{Type: "sftp", Host: "files.example.com"}, "", true},
		{"ftp", conf.ExportTarget{Type: "FTP", Host: "ftp.example.com"}, "ftp:ftp.example.com", false},
		{"ftp without host", conf.ExportTarget{Type: "ftp"}, "", true},
		{"unknown", conf.ExportTarget{Type: "s3"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target, err := NewTarget(tt.cfg, fs, log)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, target.Name())
		})
	}
}

func TestSFTPDefaults(t *testing.T) {
	t.Parallel()
	target, err := NewSFTPTarget(conf.ExportTarget{Host: "h", KeyFile: "/k"}, logger.NewDiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, "h:22", target.addr())
	assert.Equal(t, DefaultTimeout, target.cfg.Timeout)
	assert.Equal(t, ".", target.base)
}
