package syncer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Strategy selects how a double change to the same path is resolved.
type Strategy string

const (
	// StrategyCopy preserves both versions: the local content moves to a
	// timestamped sibling that syncs everywhere, and the remote version
	// takes the original path. Never loses data; the default.
	StrategyCopy Strategy = "copy"

	// StrategyLocalWins uploads the local version, discarding the remote
	// change. Lossy; explicit user choice.
	StrategyLocalWins Strategy = "local-wins"

	// StrategyRemoteWins downloads the remote version, discarding the local
	// change. Lossy; explicit user choice.
	StrategyRemoteWins Strategy = "remote-wins"
)

// resolveConflict applies the configured strategy to a path both sides
// changed independently. Failures are per-item recoverable; the path is
// marked resolved either way so no later phase touches it this cycle.
func (c *cycle) resolveConflict(ctx context.Context, p string, entry *LocalEntry) {
	c.markResolved(p)
	c.res.Conflicts++

	var err error
	switch c.engine.opts.ConflictStrategy {
	case StrategyLocalWins:
		err = c.uploadLocal(ctx, p, entry)
	case StrategyRemoteWins:
		err = c.downloadRemote(ctx, p, c.remoteSnap[p])
	default:
		err = c.conflictCopy(ctx, p, entry)
	}

	if err != nil {
		c.res.addError(fmt.Errorf("conflict %s: %w", p, err))
	}
}

// conflictCopy writes the local content to a timestamped sibling path,
// uploads the sibling so every client observes it, then pulls the remote
// version into the original path.
func (c *cycle) conflictCopy(ctx context.Context, p string, entry *LocalEntry) error {
	data, err := c.engine.local.ReadBytes(p)
	if err != nil {
		return fmt.Errorf("read local: %w", err)
	}

	copyPath := conflictCopyPath(p, c.engine.now())
	if err := c.engine.local.Write(copyPath, data); err != nil {
		return fmt.Errorf("write conflict copy: %w", err)
	}
	if err := c.engine.remote.Put(ctx, copyPath, data); err != nil {
		return fmt.Errorf("upload conflict copy: %w", err)
	}

	copyMtime := c.engine.now()
	if info, err := c.engine.local.Stat(copyPath); err == nil {
		copyMtime = info.ModTime
	}
	c.setSynced(copyPath, entry.Hash, int64(len(data)), copyMtime, c.engine.now())
	c.markResolved(copyPath)

	return c.downloadRemote(ctx, p, c.remoteSnap[p])
}

// conflictCopyPath derives the sibling name for a conflict copy:
// notes/a.md -> notes/a.conflict-20060102-150405.md
func conflictCopyPath(p string, t time.Time) string {
	ext := path.Ext(p)
	base := strings.TrimSuffix(p, ext)
	return fmt.Sprintf("%s.conflict-%s%s", base, t.Format("20060102-150405"), ext)
}
