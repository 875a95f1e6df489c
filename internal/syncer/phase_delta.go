package syncer

import (
	"context"
	"fmt"
)

// applyDelta pulls remote-side changes down and settles everything the
// earlier phases left open. By this point all local changes were pushed or
// reconciled, so a newer remote digest is the only live signal; remote wins
// every download decision here without raising conflicts.
func (c *cycle) applyDelta(ctx context.Context) error {
	for _, path := range sortedKeys(c.remoteSnap) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isResolved(path) {
			continue
		}

		remote := c.remoteSnap[path]
		entry, localExists := c.localSnap[path]
		item, hasItem := c.ledger.Items[path]
		remoteHash := c.remoteHashes[path]

		switch {
		case !localExists && !hasItem:
			// Brand-new remote file from another client.
			c.download(ctx, path, remote)

		case !localExists && remoteHash != item.ContentHash:
			// Modified remotely and independently deleted locally: the
			// remote edit is newer information than the stale deletion.
			c.download(ctx, path, remote)

		case !localExists:
			// Deleted locally, unchanged remotely: owned by the delete
			// phase, or retried next cycle if its delete failed.

		case hasItem && remoteHash != item.ContentHash && entry.Hash == item.ContentHash:
			// Ordinary pull update.
			c.download(ctx, path, remote)

		default:
			// Local side changed too: the upload phase already settled it.
		}
	}

	// Ledger entries whose remote object disappeared.
	for _, path := range sortedKeys(c.ledger.Items) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isResolved(path) {
			continue
		}
		if _, ok := c.remoteSnap[path]; ok {
			continue
		}

		item := c.ledger.Items[path]
		entry, localExists := c.localSnap[path]

		switch {
		case !localExists:
			// Ghost: both sides deleted it independently, possibly offline.
			// Forget it silently; no counters, no transfer.
			c.dropPath(path)

		case entry.Hash == item.ContentHash:
			// Remote-initiated delete propagates to the untouched local copy.
			if err := c.engine.local.Delete(path); err != nil {
				c.res.addError(fmt.Errorf("delete local %s: %w", path, err))
			} else {
				c.dropPath(path)
				c.res.DeletedLocal++
			}

		default:
			// Remote deletion loses to a live local edit: push it back up.
			if err := c.uploadLocal(ctx, path, entry); err != nil {
				c.res.addError(err)
			} else {
				c.res.Uploaded++
			}
		}
		c.markResolved(path)
	}

	return nil
}

func (c *cycle) download(ctx context.Context, path string, remote *RemoteEntry) {
	if err := c.downloadRemote(ctx, path, remote); err != nil {
		c.res.addError(err)
	} else {
		c.res.Downloaded++
	}
	c.markResolved(path)
}
