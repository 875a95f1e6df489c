package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filedrift/drift/internal/fingerprint"
)

func sumString(s string) string { return fingerprint.Sum([]byte(s)) }

// memLocal is an in-memory LocalStore with instrumented reads, so tests can
// assert the scanner did not touch file content.
type memLocal struct {
	mu    sync.Mutex
	files map[string]*memFile
	reads map[string]int
}

type memFile struct {
	data    []byte
	modTime time.Time
}

func newMemLocal() *memLocal {
	return &memLocal{
		files: make(map[string]*memFile),
		reads: make(map[string]int),
	}
}

func (m *memLocal) put(path, content string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &memFile{data: []byte(content), modTime: modTime}
}

func (m *memLocal) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

func (m *memLocal) content(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return "", false
	}
	return string(f.data), true
}

func (m *memLocal) readCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[path]
}

func (m *memLocal) resetReads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = make(map[string]int)
}

func (m *memLocal) ListFiles() ([]LocalFileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]LocalFileInfo, 0, len(m.files))
	for path, f := range m.files {
		files = append(files, LocalFileInfo{Path: path, ModTime: f.modTime, Size: int64(len(f.data))})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *memLocal) ReadBytes(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[path]++
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return append([]byte(nil), f.data...), nil
}

func (m *memLocal) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &memFile{data: append([]byte(nil), data...), modTime: time.Now()}
	return nil
}

func (m *memLocal) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *memLocal) Stat(path string) (LocalFileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return LocalFileInfo{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return LocalFileInfo{Path: path, ModTime: f.modTime, Size: int64(len(f.data))}, nil
}

func (m *memLocal) EnsureDirectories(path string) error { return nil }

func (m *memLocal) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// memRemote is an in-memory RemoteStore with per-path failure injection.
type memRemote struct {
	mu      sync.Mutex
	objects map[string]*memObject
	puts    map[string]int

	failGet    map[string]error
	failPut    map[string]error
	failDelete map[string]error
	listErr    error
}

type memObject struct {
	data         []byte
	lastModified time.Time
}

func newMemRemote() *memRemote {
	return &memRemote{
		objects:    make(map[string]*memObject),
		puts:       make(map[string]int),
		failGet:    make(map[string]error),
		failPut:    make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (m *memRemote) object(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[path]
	if !ok {
		return "", false
	}
	return string(o.data), true
}

func (m *memRemote) putCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[path]
}

func (m *memRemote) Put(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failPut[path]; err != nil {
		return err
	}
	m.puts[path]++
	m.objects[path] = &memObject{data: append([]byte(nil), data...), lastModified: time.Now()}
	return nil
}

func (m *memRemote) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failGet[path]; err != nil {
		return nil, err
	}
	o, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return append([]byte(nil), o.data...), nil
}

func (m *memRemote) GetOrNull(ctx context.Context, path string) ([]byte, error) {
	data, err := m.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *memRemote) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDelete[path]; err != nil {
		return err
	}
	delete(m.objects, path)
	return nil
}

func (m *memRemote) Mkdir(ctx context.Context, path string) error { return nil }

func (m *memRemote) ListRecursive(ctx context.Context, path string) ([]RemoteFileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var files []RemoteFileInfo
	for p, o := range m.objects {
		if path != "" && !strings.HasPrefix(p, path+"/") {
			continue
		}
		files = append(files, RemoteFileInfo{Path: p, Size: int64(len(o.data)), LastModified: o.lastModified})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *memRemote) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

// memLedgerStore keeps the ledger in memory between cycles.
type memLedgerStore struct {
	mu      sync.Mutex
	ledger  *Ledger
	saves   int
	loadErr error
	saveErr error
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{}
}

func (m *memLedgerStore) Load() (*Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.ledger == nil {
		return NewLedger("test-device"), nil
	}
	return cloneLedger(m.ledger), nil
}

func (m *memLedgerStore) Save(ledger *Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.ledger = cloneLedger(ledger)
	m.saves++
	return nil
}

func (m *memLedgerStore) Close() error { return nil }

func (m *memLedgerStore) items() map[string]*ItemState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledger == nil {
		return nil
	}
	return cloneLedger(m.ledger).Items
}

func cloneLedger(l *Ledger) *Ledger {
	clone := &Ledger{
		Version:      l.Version,
		DeviceID:     l.DeviceID,
		LastSyncTime: l.LastSyncTime,
		Items:        make(map[string]*ItemState, len(l.Items)),
	}
	for path, item := range l.Items {
		copied := *item
		clone.Items[path] = &copied
	}
	return clone
}

// remoteEdit simulates another client changing a remote file: it rewrites
// the object and patches the remote manifest the way that client would.
func remoteEdit(t *testing.T, remote *memRemote, path, content string) {
	t.Helper()
	require.NoError(t, remote.Put(context.Background(), path, []byte(content)))
	patchManifest(t, remote, func(m *Manifest) {
		m.Files[path] = sumString(content)
	})
}

// remoteRemove simulates another client deleting a remote file.
func remoteRemove(t *testing.T, remote *memRemote, path string) {
	t.Helper()
	require.NoError(t, remote.Delete(context.Background(), path))
	patchManifest(t, remote, func(m *Manifest) {
		delete(m.Files, path)
	})
}

func patchManifest(t *testing.T, remote *memRemote, patch func(m *Manifest)) {
	t.Helper()
	m := LoadManifest(context.Background(), remote)
	patch(m)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, remote.Put(context.Background(), remoteManifestKey, data))
}
