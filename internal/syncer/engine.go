package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/filedrift/drift/internal/fingerprint"
)

var (
	ErrSyncAlreadyRunning = errors.New("sync already running")
	ErrExclusiveLockHeld  = errors.New("remote target locked by an exclusive lock")
)

// Options configures an Engine. Zero values fall back to sane defaults in New.
type Options struct {
	ClientType       string
	ConflictStrategy Strategy
	MaxFileSize      int64
	SyncAttachments  bool
	Excludes         []string
	Reporter         Reporter
}

// Engine runs sync cycles. One cycle at a time: starting a second while one
// is active returns a busy result immediately instead of queuing.
type Engine struct {
	local       LocalStore
	remote      RemoteStore
	ledgerStore LedgerStore
	scanner     *Scanner
	opts        Options
	reporter    Reporter
	now         func() time.Time

	mu sync.Mutex
}

func New(local LocalStore, remote RemoteStore, ledgerStore LedgerStore, opts Options) *Engine {
	if opts.ClientType == "" {
		opts.ClientType = "drift-go"
	}
	if opts.ConflictStrategy == "" {
		opts.ConflictStrategy = StrategyCopy
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 100 * 1024 * 1024
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NopReporter
	}

	ignore := NewIgnoreList(opts.Excludes)
	return &Engine{
		local:       local,
		remote:      remote,
		ledgerStore: ledgerStore,
		scanner:     NewScanner(local, remote, ignore, opts.MaxFileSize, opts.SyncAttachments),
		opts:        opts,
		reporter:    reporter,
		now:         time.Now,
	}
}

const cycleSteps = 9

// Sync runs one full cycle: lock, snapshot, the four reconcile phases, then
// state persistence. It always returns a structured result; fatal conditions
// set Err and leave Success false, with work completed before the fatal
// point still counted.
func (e *Engine) Sync(ctx context.Context) *Result {
	res := &Result{}

	if !e.mu.TryLock() {
		res.Err = ErrSyncAlreadyRunning
		return res
	}
	defer e.mu.Unlock()

	start := e.now()
	defer func() {
		res.Took = e.now().Sub(start)
		res.Success = res.Err == nil && len(res.Errors) == 0
	}()

	e.reporter.Report("loading ledger", 1, cycleSteps)
	ledger, err := e.ledgerStore.Load()
	if err != nil {
		res.Err = fmt.Errorf("load ledger: %w", err)
		return res
	}

	e.reporter.Report("acquiring sync lock", 2, cycleSteps)
	lock := NewLockCoordinator(e.remote, ledger.DeviceID, e.opts.ClientType)
	if !lock.Acquire(ctx) {
		res.Err = ErrExclusiveLockHeld
		return res
	}
	stopRefresh := lock.StartRefresh(ctx)
	// refresh must be joined before release, or a late tick rewrites the
	// lock after it was deleted
	defer lock.Release(context.WithoutCancel(ctx))
	defer stopRefresh()

	e.reporter.Report("scanning remote", 3, cycleSteps)
	manifest := LoadManifest(ctx, e.remote)
	remoteSnap, err := e.scanner.ScanRemote(ctx)
	if err != nil {
		res.Err = fmt.Errorf("remote store unreachable: %w", err)
		return res
	}

	e.reporter.Report("scanning local", 4, cycleSteps)
	localSnap, scanErrs, err := e.scanner.ScanLocal(ctx, ledger)
	if err != nil {
		res.Err = err
		return res
	}
	for _, serr := range scanErrs {
		res.addError(serr)
	}

	c := &cycle{
		engine:       e,
		ledger:       ledger,
		manifest:     manifest,
		remoteHashes: mergeRemoteHashes(ledger, manifest),
		localSnap:    localSnap,
		remoteSnap:   remoteSnap,
		resolved:     make(map[string]struct{}),
		res:          res,
	}

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"detecting renames", c.detectRenames},
		{"uploading local changes", c.uploadChanges},
		{"propagating local deletions", c.deleteRemoteOrphans},
		{"applying remote changes", c.applyDelta},
	}
	for i, phase := range phases {
		e.reporter.Report(phase.name, 5+i, cycleSteps)
		if err := phase.run(ctx); err != nil {
			// cancellation: unwind through the failure path, but keep the
			// ledger mutations of completed sub-steps as valid partial progress
			res.Err = err
			break
		}
	}

	e.reporter.Report("persisting state", cycleSteps, cycleSteps)
	ledger.LastSyncTime = e.now()
	if err := e.ledgerStore.Save(ledger); err != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("save ledger: %w", err))
		return res
	}
	if err := manifest.Save(context.WithoutCancel(ctx), e.remote); err != nil {
		res.addError(fmt.Errorf("save remote manifest: %w", err))
	}

	if res.Changed() {
		slog.Info("sync cycle",
			"took", res.Took,
			"uploads", res.Uploaded,
			"downloads", res.Downloaded,
			"deletedRemote", res.DeletedRemote,
			"deletedLocal", res.DeletedLocal,
			"renames", res.Renamed,
			"conflicts", res.Conflicts,
			"errors", len(res.Errors),
		)
	}
	return res
}

// cycle is the per-cycle context: snapshots, ledger, manifest, and the set
// of paths already resolved by an earlier phase. It is owned by a single
// control flow; nothing mutates it concurrently.
type cycle struct {
	engine       *Engine
	ledger       *Ledger
	manifest     *Manifest
	remoteHashes map[string]string
	localSnap    map[string]*LocalEntry
	remoteSnap   map[string]*RemoteEntry
	resolved     map[string]struct{}
	res          *Result
}

// mergeRemoteHashes builds the unified "last known remote digest" map: the
// ledger's agreement digests overlaid by the manifest. Keeping one merged
// map avoids divergence between the two lookups mid-cycle.
func mergeRemoteHashes(ledger *Ledger, manifest *Manifest) map[string]string {
	merged := make(map[string]string, len(ledger.Items)+len(manifest.Files))
	for path, item := range ledger.Items {
		merged[path] = item.ContentHash
	}
	maps.Copy(merged, manifest.Files)
	return merged
}

func (c *cycle) isResolved(path string) bool {
	_, ok := c.resolved[path]
	return ok
}

func (c *cycle) markResolved(path string) {
	c.resolved[path] = struct{}{}
}

// setSynced records a new agreement point for path across the ledger, the
// manifest, and the merged digest map.
func (c *cycle) setSynced(path, hash string, size int64, localMtime, remoteMtime time.Time) {
	c.ledger.Items[path] = &ItemState{
		LocalMtime:  localMtime,
		RemoteMtime: remoteMtime,
		ContentHash: hash,
		Size:        size,
		SyncedAt:    c.engine.now(),
	}
	c.manifest.Files[path] = hash
	c.remoteHashes[path] = hash
}

// dropPath forgets a path across the ledger, the manifest, and the merged
// digest map.
func (c *cycle) dropPath(path string) {
	delete(c.ledger.Items, path)
	delete(c.manifest.Files, path)
	delete(c.remoteHashes, path)
}

// uploadLocal pushes a local file to the remote and records the agreement.
func (c *cycle) uploadLocal(ctx context.Context, path string, entry *LocalEntry) error {
	data, err := c.engine.local.ReadBytes(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := c.engine.remote.Put(ctx, path, data); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	c.res.BytesUp += int64(len(data))
	c.setSynced(path, entry.Hash, entry.Size, entry.ModTime, c.engine.now())
	return nil
}

// downloadRemote pulls a remote file into the local tree and records the
// agreement. The digest is computed from the downloaded bytes, so a stale
// manifest entry cannot poison the ledger.
func (c *cycle) downloadRemote(ctx context.Context, path string, remote *RemoteEntry) error {
	data, err := c.engine.remote.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("download %s: %w", path, err)
	}
	if err := c.engine.local.Write(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	c.res.BytesDown += int64(len(data))

	localMtime := c.engine.now()
	if info, err := c.engine.local.Stat(path); err == nil {
		localMtime = info.ModTime
	}
	remoteMtime := c.engine.now()
	if remote != nil {
		remoteMtime = remote.LastModified
	}

	c.setSynced(path, fingerprint.Sum(data), int64(len(data)), localMtime, remoteMtime)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sortedStrings(s []string) []string {
	slices.Sort(s)
	return s
}
