package syncer

import (
	"context"
	"fmt"
)

// deleteRemoteOrphans propagates local deletions. A remote object is removed
// only while its digest still matches the ledger's agreement: if the remote
// side changed after the local deletion, the deletion must not destroy it —
// the delta phase downloads it instead.
func (c *cycle) deleteRemoteOrphans(ctx context.Context) error {
	for _, path := range sortedKeys(c.ledger.Items) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isResolved(path) {
			continue
		}
		if _, ok := c.localSnap[path]; ok {
			continue // still present locally
		}
		if _, ok := c.remoteSnap[path]; !ok {
			continue // gone remotely too; ghost reconciliation happens in delta
		}

		item := c.ledger.Items[path]
		if c.remoteHashes[path] != item.ContentHash {
			continue // remote modified since last sync; delta downloads it
		}

		if err := c.engine.remote.Delete(ctx, path); err != nil {
			c.res.addError(fmt.Errorf("delete remote %s: %w", path, err))
			c.markResolved(path)
			continue
		}
		c.dropPath(path)
		c.markResolved(path)
		c.res.DeletedRemote++
	}

	return nil
}
