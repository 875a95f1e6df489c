// Package workspace owns the on-disk layout of a synced tree: the root the
// user edits, plus the .drift state directory holding the ledger, logs, and
// the process lock.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	// StateDirName is excluded from all scans.
	StateDirName = ".drift"

	logsDir    = "logs"
	lockFile   = "drift.lock"
	ledgerFile = "ledger.db"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

type Workspace struct {
	Root       string
	StateDir   string
	LogsDir    string
	LedgerPath string

	flock *flock.Flock
}

func New(rootDir string) (*Workspace, error) {
	root, err := resolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", rootDir, err)
	}

	stateDir := filepath.Join(root, StateDirName)
	return &Workspace{
		Root:       root,
		StateDir:   stateDir,
		LogsDir:    filepath.Join(stateDir, logsDir),
		LedgerPath: filepath.Join(stateDir, ledgerFile),
		flock:      flock.New(filepath.Join(stateDir, lockFile)),
	}, nil
}

// Setup creates the workspace directories. Idempotent.
func (w *Workspace) Setup() error {
	for _, dir := range []string{w.Root, w.StateDir, w.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Lock takes an OS-level file lock so two daemons cannot run cycles against
// the same tree from one host. This is unrelated to the remote sync lock.
func (w *Workspace) Lock() error {
	if err := os.MkdirAll(w.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", w.StateDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return err
	}
	return os.Remove(w.flock.Path())
}

// AbsPath maps a sync-relative path to an absolute path under the root.
func (w *Workspace) AbsPath(relPath string) string {
	return filepath.Join(w.Root, filepath.FromSlash(relPath))
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(absPath), nil
}
