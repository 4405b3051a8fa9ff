package export

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strconv"
	"strings"

	"github.com/jlaffaye/ftp"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/logger"
)

// FTPTarget uploads reports to an FTP server.
type FTPTarget struct {
	cfg  conf.ExportTarget
	base string
	log  logger.Logger
}

// NewFTPTarget validates cfg and fills in defaults.
func NewFTPTarget(cfg conf.ExportTarget, log logger.Logger) (*FTPTarget, error) {
	if cfg.Host == "" {
		return nil, configError("ftp: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultFTPPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Global().Module("export")
	}
	return &FTPTarget{
		cfg:  cfg,
		base: strings.TrimRight(cfg.Path, "/"),
		log:  log.Module("ftp"),
	}, nil
}

func (t *FTPTarget) Name() string { return "ftp:" + t.cfg.Host }

func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(t.cfg.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp: connection failed: %w", err)
	}
	if t.cfg.Username != "" {
		if err := conn.Login(t.cfg.Username, t.cfg.Password); err != nil {
			_ = conn.Quit()
			return nil, fmt.Errorf("ftp: login failed: %w", err)
		}
	}
	return conn, nil
}

// Store uploads to a temporary name and renames it over the destination.
func (t *FTPTarget) Store(ctx context.Context, name string, r io.Reader) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			t.log.Debug("ftp quit failed", logger.Error(err))
		}
	}()

	if t.base != "" {
		if err := t.makeDirs(conn, t.base); err != nil {
			return err
		}
	}

	dst := path.Join(t.base, name)
	tmp := path.Join(t.base, "tmp-"+name)
	if err := conn.Stor(tmp, r); err != nil {
		_ = conn.Delete(tmp)
		return fmt.Errorf("ftp: upload failed: %w", err)
	}
	// Some servers refuse to rename over an existing file.
	_ = conn.Delete(dst)
	if err := conn.Rename(tmp, dst); err != nil {
		_ = conn.Delete(tmp)
		return fmt.Errorf("ftp: failed to rename temporary file: %w", err)
	}

	t.log.Debug("file uploaded", logger.String("path", dst))
	return nil
}

// makeDirs creates each missing component of dir. A MakeDir failure is only
// an error when the directory cannot be entered afterwards.
func (t *FTPTarget) makeDirs(conn *ftp.ServerConn, dir string) error {
	start, err := conn.CurrentDir()
	if err != nil {
		return fmt.Errorf("ftp: failed to get working directory: %w", err)
	}

	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		mkErr := conn.MakeDir(current)
		if mkErr == nil {
			continue
		}
		if cdErr := conn.ChangeDir(current); cdErr != nil {
			return fmt.Errorf("ftp: failed to create directory %s: %w", current, mkErr)
		}
		if err := conn.ChangeDir(start); err != nil {
			return fmt.Errorf("ftp: failed to return to %s: %w", start, err)
		}
	}
	return nil
}
