package syncer

import (
	"context"
	"fmt"
)

// detectRenames pairs paths that vanished locally with paths that appeared
// locally holding identical content, and treats each pair as a move: the
// content goes up under the new path, the old remote path is deleted, and
// neither path is touched by later phases. This runs before the upload phase
// so a pure move never degrades into a delete plus a counted re-upload.
//
// Two unrelated files colliding on digest is an accepted false-positive
// risk, not actively guarded.
func (c *cycle) detectRenames(ctx context.Context) error {
	var missing []string // in ledger, gone from the local tree
	for path := range c.ledger.Items {
		if _, ok := c.localSnap[path]; !ok {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var added []string // local, unknown to the ledger
	for path := range c.localSnap {
		if _, ok := c.ledger.Items[path]; !ok {
			added = append(added, path)
		}
	}
	if len(added) == 0 {
		return nil
	}

	byHash := make(map[string]string, len(missing))
	for _, oldPath := range sortedStrings(missing) {
		byHash[c.ledger.Items[oldPath].ContentHash] = oldPath
	}

	for _, newPath := range sortedStrings(added) {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := c.localSnap[newPath]
		oldPath, ok := byHash[entry.Hash]
		if !ok || c.isResolved(oldPath) {
			continue
		}
		if remoteHash, held := c.remoteHashes[newPath]; held && remoteHash != entry.Hash {
			// another client owns different content at the destination; the
			// upload phase classifies this as a conflict, and the old path
			// falls through to the delete phase
			continue
		}

		if err := c.uploadLocal(ctx, newPath, entry); err != nil {
			c.res.addError(fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, err))
			continue
		}
		c.markResolved(newPath)
		delete(byHash, entry.Hash)

		if err := c.engine.remote.Delete(ctx, oldPath); err != nil {
			// The new path is synced; keep the old ledger entry so the next
			// cycle's delete phase retries the remote removal.
			c.res.addError(fmt.Errorf("rename %s -> %s: delete old path: %w", oldPath, newPath, err))
			c.res.Uploaded++
			continue
		}
		c.dropPath(oldPath)
		c.markResolved(oldPath)
		c.res.Renamed++
	}

	return nil
}
