// internal/ftp/client.go
package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/solatis/querykit/internal/log"
)

/*
 * FTP file transfer.
 *
 * Client is the narrow file-drop interface the export pipeline uploads
 * through. The jlaffaye/ftp implementation opens one session per call:
 * dial, login, change to the configured directory, run the operation, quit.
 * Exports are rare and small, so there is no connection reuse.
 *
 * Names are plain file names inside Settings.Dir; names with a directory
 * component are rejected.
 */

// ErrInvalidName is returned for file names that are empty or contain a path.
var ErrInvalidName = errors.New("invalid remote file name")

// DefaultTimeout bounds dialing and each command when Settings.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Settings addresses one FTP drop directory.
type Settings struct {
	Addr     string        `mapstructure:"addr"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"-"`
	Dir      string        `mapstructure:"dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Validate checks that Settings can be used to connect.
func (s Settings) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("ftp: addr is required")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("ftp: timeout must be non-negative")
	}
	return nil
}

// Entry is one remote file.
type Entry struct {
	Name string
	Size uint64
	Time time.Time
}

// Client transfers files to and from a remote directory.
type Client interface {
	Upload(ctx context.Context, name string, r io.Reader) error
	Download(ctx context.Context, name string, w io.Writer) error
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, name string) error
}

// FTPClient implements Client over jlaffaye/ftp.
type FTPClient struct {
	settings Settings
	logger   log.Logger
}

// New creates a client for settings.
func New(settings Settings, logger log.Logger) (*FTPClient, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Timeout == 0 {
		settings.Timeout = DefaultTimeout
	}
	return &FTPClient{settings: settings, logger: log.OrNop(logger)}, nil
}

// session runs fn on a logged-in connection positioned in Settings.Dir.
func (c *FTPClient) session(ctx context.Context, op string, fn func(*ftp.ServerConn) error) error {
	conn, err := ftp.Dial(c.settings.Addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.settings.Timeout))
	if err != nil {
		return fmt.Errorf("ftp %s: dial %s: %w", op, c.settings.Addr, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			c.logger.Debug("ftp quit failed", "addr", c.settings.Addr, "error", err)
		}
	}()

	if c.settings.User != "" {
		if err := conn.Login(c.settings.User, c.settings.Password); err != nil {
			return fmt.Errorf("ftp %s: login: %w", op, err)
		}
	}
	if c.settings.Dir != "" {
		if err := conn.ChangeDir(c.settings.Dir); err != nil {
			return fmt.Errorf("ftp %s: change dir %s: %w", op, c.settings.Dir, err)
		}
	}
	if err := fn(conn); err != nil {
		return fmt.Errorf("ftp %s: %w", op, err)
	}
	return nil
}

func (c *FTPClient) Upload(ctx context.Context, name string, r io.Reader) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := c.session(ctx, "upload", func(conn *ftp.ServerConn) error {
		return conn.Stor(name, r)
	})
	if err == nil {
		c.logger.Info("uploaded file", "addr", c.settings.Addr, "dir", c.settings.Dir, "name", name)
	}
	return err
}

func (c *FTPClient) Download(ctx context.Context, name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	return c.session(ctx, "download", func(conn *ftp.ServerConn) error {
		resp, err := conn.Retr(name)
		if err != nil {
			return err
		}
		defer resp.Close()
		_, err = io.Copy(w, resp)
		return err
	})
}

func (c *FTPClient) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := c.session(ctx, "list", func(conn *ftp.ServerConn) error {
		entries, err := conn.List("")
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Type != ftp.EntryTypeFile {
				continue
			}
			out = append(out, Entry{Name: e.Name, Size: e.Size, Time: e.Time})
		}
		return nil
	})
	return out, err
}

func (c *FTPClient) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return c.session(ctx, "delete", func(conn *ftp.ServerConn) error {
		return conn.Delete(name)
	})
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || path.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
