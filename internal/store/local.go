// Package store provides the concrete LocalStore and RemoteStore
// collaborators: the OS filesystem for the local tree and an S3-compatible
// bucket for the remote tree.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/filedrift/drift/internal/syncer"
)

// Local is an OS-filesystem LocalStore rooted at a directory. All paths are
// slash-separated and relative to the root.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: filepath.Clean(root)}
}

func (l *Local) abs(relPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(relPath))
}

// ListFiles walks the tree and returns every regular file. Symlinks are
// skipped; unreadable entries are skipped rather than failing the walk.
func (l *Local) ListFiles() ([]syncer.LocalFileInfo, error) {
	var files []syncer.LocalFileInfo

	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, syncer.LocalFileInfo{
			Path:    filepath.ToSlash(rel),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.root, err)
	}

	return files, nil
}

func (l *Local) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(l.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, syncer.ErrNotFound)
	}
	return data, err
}

func (l *Local) Write(path string, data []byte) error {
	if err := l.EnsureDirectories(path); err != nil {
		return err
	}
	return os.WriteFile(l.abs(path), data, 0o644)
}

func (l *Local) Delete(path string) error {
	err := os.Remove(l.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) Stat(path string) (syncer.LocalFileInfo, error) {
	info, err := os.Stat(l.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return syncer.LocalFileInfo{}, fmt.Errorf("%s: %w", path, syncer.ErrNotFound)
	}
	if err != nil {
		return syncer.LocalFileInfo{}, err
	}
	return syncer.LocalFileInfo{
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

func (l *Local) EnsureDirectories(path string) error {
	return os.MkdirAll(filepath.Dir(l.abs(path)), 0o755)
}

func (l *Local) Exists(path string) bool {
	_, err := os.Stat(l.abs(path))
	return err == nil
}
