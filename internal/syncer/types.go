package syncer

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a path does not exist.
var ErrNotFound = errors.New("not found")

// LocalFileInfo describes one file in the local tree. Paths are
// slash-separated and relative to the sync root.
type LocalFileInfo struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// LocalStore is the local file tree collaborator. Implementations are rooted
// at the sync root; all paths are relative.
type LocalStore interface {
	ListFiles() ([]LocalFileInfo, error)
	ReadBytes(path string) ([]byte, error)
	Write(path string, data []byte) error
	Delete(path string) error
	Stat(path string) (LocalFileInfo, error)
	EnsureDirectories(path string) error
	Exists(path string) bool
}

// RemoteFileInfo describes one object in the remote tree, relative to the
// remote sync root.
type RemoteFileInfo struct {
	Path         string
	IsFolder     bool
	Size         int64
	LastModified time.Time
}

// RemoteStore is the remote content store collaborator. Implementations are
// rooted at the remote sync root; all paths are relative. Retry/backoff for
// transient failures is the implementation's concern, not the engine's.
type RemoteStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	// GetOrNull returns (nil, nil) when the path does not exist.
	GetOrNull(ctx context.Context, path string) ([]byte, error)
	// Delete is idempotent: deleting an absent path succeeds.
	Delete(ctx context.Context, path string) error
	Mkdir(ctx context.Context, path string) error
	ListRecursive(ctx context.Context, path string) ([]RemoteFileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// LedgerStore persists the sync ledger between cycles. Save must be atomic
// from the caller's perspective: a crash mid-save leaves the previous ledger
// visible, never a partial one.
type LedgerStore interface {
	Load() (*Ledger, error)
	Save(ledger *Ledger) error
	Close() error
}
