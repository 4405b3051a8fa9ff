package export

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/sftp"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPTarget uploads reports over SSH.
type SFTPTarget struct {
	cfg  conf.ExportTarget
	base string
	log  logger.Logger
}

// NewSFTPTarget validates cfg and fills in defaults.
func NewSFTPTarget(cfg conf.ExportTarget, log logger.Logger) (*SFTPTarget, error) {
	if cfg.Host == "" {
		return nil, configError("sftp: host is required")
	}
	if cfg.KeyFile == "" && cfg.Password == "" {
		return nil, configError("sftp: keyfile or password is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	base := strings.TrimRight(cfg.Path, "/")
	if base == "" {
		base = "."
	}
	if log == nil {
		log = logger.Global().Module("export")
	}
	return &SFTPTarget{cfg: cfg, base: base, log: log.Module("sftp")}, nil
}

func (t *SFTPTarget) Name() string { return "sftp:" + t.cfg.Host }

func (t *SFTPTarget) addr() string {
	return net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
}

func (t *SFTPTarget) clientConfig() (*ssh.ClientConfig, error) {
	config := &ssh.ClientConfig{
		User:    t.cfg.Username,
		Timeout: t.cfg.Timeout,
	}

	switch {
	case t.cfg.KeyFile != "":
		key, err := os.ReadFile(t.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to parse private key: %w", err)
		}
		config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		config.Auth = []ssh.AuthMethod{ssh.Password(t.cfg.Password)}
	}

	callback, err := hostKeyCallback()
	if err != nil {
		return nil, err
	}
	config.HostKeyCallback = callback
	return config, nil
}

// hostKeyCallback verifies against ~/.ssh/known_hosts.
func hostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("sftp: cannot locate known_hosts: %w", err)
	}
	callback, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("sftp: failed to load known_hosts: %w", err)
	}
	return callback, nil
}

// connect dials in a goroutine so a cancelled context is not held up by a
// slow handshake.
func (t *SFTPTarget) connect(ctx context.Context) (*sftp.Client, error) {
	config, err := t.clientConfig()
	if err != nil {
		return nil, err
	}

	type connResult struct {
		client *sftp.Client
		err    error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		sshConn, err := ssh.Dial("tcp", t.addr(), config)
		if err != nil {
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to connect: %w", err)}
			return
		}
		client, err := sftp.NewClient(sshConn)
		if err != nil {
			_ = sshConn.Close()
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to create client: %w", err)}
			return
		}
		resultChan <- connResult{client, nil}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultChan; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resultChan:
		return r.client, r.err
	}
}

// Store uploads to a temporary name and renames it over the destination.
func (t *SFTPTarget) Store(ctx context.Context, name string, r io.Reader) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.MkdirAll(t.base); err != nil {
		return fmt.Errorf("sftp: failed to create directory %s: %w", t.base, err)
	}

	dst := path.Join(t.base, name)
	tmp := path.Join(t.base, "."+name+".tmp")
	f, err := client.Create(tmp)
	if err != nil {
		return fmt.Errorf("sftp: failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: failed to close file: %w", err)
	}
	if err := client.PosixRename(tmp, dst); err != nil {
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: failed to rename file: %w", err)
	}

	t.log.Debug("file uploaded", logger.String("path", dst))
	return nil
}

func configError(msg string) error {
	return errors.Newf("%s", msg).
		Component("export").
		Category(errors.CategoryConfiguration).
		Build()
}
