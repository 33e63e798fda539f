package remotefs

import (
	"context"
	"io"
	"time"

	"tidesync/internal/config"
)

// Entry describes one remote directory entry.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	Dir     bool
}

// FS is the capability the transfer engine needs from a remote tree.
type FS interface {
	// List returns the entries of a remote directory.
	List(ctx context.Context, path string) ([]Entry, error)
	// Stat returns metadata for a single remote path.
	Stat(ctx context.Context, path string) (Entry, error)
	// OpenRead opens a remote file for sequential reading.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
	// Close releases the underlying connection.
	Close() error
}

// Dialer opens an FS session for the given credentials.
type Dialer interface {
	Dial(ctx context.Context, cfg config.SftpConfig) (FS, error)
}
