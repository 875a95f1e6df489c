package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/filedrift/drift/internal/fingerprint"
)

// digestCacheSize bounds the cross-cycle digest cache. At ~200 bytes per
// entry this stays under a few MiB for even very large trees.
const digestCacheSize = 16384

// LocalEntry is one file in the cycle-scoped local snapshot.
type LocalEntry struct {
	Path    string
	ModTime time.Time
	Size    int64
	Hash    string
}

// RemoteEntry is one object in the cycle-scoped remote snapshot. Digests for
// remote files come from the manifest, not the listing.
type RemoteEntry struct {
	Path         string
	Size         int64
	LastModified time.Time
}

type cachedDigest struct {
	modTime time.Time
	size    int64
	hash    string
}

// Scanner produces the per-cycle snapshots of the local and remote trees.
type Scanner struct {
	local           LocalStore
	remote          RemoteStore
	ignore          *IgnoreList
	maxFileSize     int64
	syncAttachments bool

	// digests caches path → digest keyed by mtime+size, so files untouched
	// since a previous cycle are not rehashed even before they reach the
	// ledger. The ledger remains the authoritative skip source.
	digests *lru.Cache[string, cachedDigest]
}

func NewScanner(local LocalStore, remote RemoteStore, ignore *IgnoreList, maxFileSize int64, syncAttachments bool) *Scanner {
	digests, _ := lru.New[string, cachedDigest](digestCacheSize)
	return &Scanner{
		local:           local,
		remote:          remote,
		ignore:          ignore,
		maxFileSize:     maxFileSize,
		syncAttachments: syncAttachments,
		digests:         digests,
	}
}

// ScanLocal enumerates the local tree and returns path → entry with content
// digests. If a path's mtime and size exactly match the ledger, the ledger's
// digest is reused without reading the file. That is an optimization, not a
// correctness requirement: an mtime+size collision with different content is
// an accepted risk. Per-file read errors are returned in errs and do not
// abort the scan.
func (s *Scanner) ScanLocal(ctx context.Context, ledger *Ledger) (map[string]*LocalEntry, []error, error) {
	files, err := s.local.ListFiles()
	if err != nil {
		return nil, nil, fmt.Errorf("list local files: %w", err)
	}

	snapshot := make(map[string]*LocalEntry, len(files))
	var errs []error

	for _, info := range files {
		if err := ctx.Err(); err != nil {
			return nil, errs, err
		}

		if s.ignore.ShouldIgnore(info.Path) {
			continue
		}
		if info.Size > s.maxFileSize {
			slog.Debug("skipping oversized file", "path", info.Path, "size", info.Size)
			continue
		}
		if !s.syncAttachments && !isTextLike(info.Path) {
			continue
		}

		hash, err := s.digest(info, ledger)
		if err != nil {
			errs = append(errs, fmt.Errorf("hash %s: %w", info.Path, err))
			continue
		}

		snapshot[info.Path] = &LocalEntry{
			Path:    info.Path,
			ModTime: info.ModTime,
			Size:    info.Size,
			Hash:    hash,
		}
	}

	return snapshot, errs, nil
}

func (s *Scanner) digest(info LocalFileInfo, ledger *Ledger) (string, error) {
	if item, ok := ledger.Items[info.Path]; ok &&
		item.Size == info.Size && item.LocalMtime.Equal(info.ModTime) {
		return item.ContentHash, nil
	}

	if cached, ok := s.digests.Get(info.Path); ok &&
		cached.size == info.Size && cached.modTime.Equal(info.ModTime) {
		return cached.hash, nil
	}

	data, err := s.local.ReadBytes(info.Path)
	if err != nil {
		return "", err
	}

	hash := fingerprint.Sum(data)
	s.digests.Add(info.Path, cachedDigest{modTime: info.ModTime, size: info.Size, hash: hash})
	return hash, nil
}

// ScanRemote lists the remote tree and returns path → entry, excluding
// folders and the engine's control paths.
func (s *Scanner) ScanRemote(ctx context.Context) (map[string]*RemoteEntry, error) {
	listing, err := s.remote.ListRecursive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list remote files: %w", err)
	}

	snapshot := make(map[string]*RemoteEntry, len(listing))
	for _, info := range listing {
		if info.IsFolder || isControlPath(info.Path) {
			continue
		}
		snapshot[info.Path] = &RemoteEntry{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		}
	}
	return snapshot, nil
}

// textExtensions are the file types synced when attachment sync is off.
var textExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".txt": {}, ".org": {}, ".tex": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".csv": {},
	".html": {}, ".css": {}, ".js": {}, ".canvas": {},
}

func isTextLike(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := textExtensions[ext]
	return ok
}
