package syncer

import (
	"context"
	"fmt"
)

// uploadChanges pushes every local path whose digest no longer matches the
// ledger. Whether a push is an ordinary upload, a no-transfer agreement, or
// a conflict depends on what the remote digest says happened on the other
// side since the last agreement. Per-item failures are recorded and the
// phase moves on; one bad file must not stop the rest of the tree.
func (c *cycle) uploadChanges(ctx context.Context) error {
	for _, path := range sortedKeys(c.localSnap) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isResolved(path) {
			continue
		}

		entry := c.localSnap[path]
		item, hasItem := c.ledger.Items[path]

		if hasItem && item.ContentHash == entry.Hash {
			// Local content unchanged since the last agreement. Keep the
			// ledger's mtime/size current so the hash-skip keeps working
			// after a touch that didn't change content.
			item.LocalMtime = entry.ModTime
			item.Size = entry.Size
			if c.remoteHashes[path] == item.ContentHash {
				c.res.Unchanged++
			}
			continue
		}

		remoteHash, hasRemote := c.remoteHashes[path]
		switch {
		case !hasItem && !hasRemote:
			// Pure new local file.
			if err := c.uploadLocal(ctx, path, entry); err != nil {
				c.res.addError(err)
			} else {
				c.res.Uploaded++
			}
			c.markResolved(path)

		case !hasItem && remoteHash == entry.Hash:
			// Both sides independently created identical content. Record the
			// agreement, no transfer.
			remoteMtime := c.engine.now()
			if re, ok := c.remoteSnap[path]; ok {
				remoteMtime = re.LastModified
			}
			c.setSynced(path, entry.Hash, entry.Size, entry.ModTime, remoteMtime)
			c.markResolved(path)

		case !hasItem:
			// Both sides independently created different content.
			c.resolveConflict(ctx, path, entry)

		case remoteHash != item.ContentHash:
			// Remote changed since the last agreement too.
			c.resolveConflict(ctx, path, entry)

		default:
			// Remote unchanged: ordinary overwrite.
			if err := c.uploadLocal(ctx, path, entry); err != nil {
				c.res.addError(fmt.Errorf("overwrite: %w", err))
			} else {
				c.res.Uploaded++
			}
			c.markResolved(path)
		}
	}

	return nil
}
