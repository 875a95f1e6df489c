package syncer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedgerStore(t *testing.T) (*SQLiteLedgerStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewSQLiteLedgerStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestLedgerStoreFreshDatabase(t *testing.T) {
	store, _ := openTestLedgerStore(t)

	ledger, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerVersion, ledger.Version)
	assert.NotEmpty(t, ledger.DeviceID)
	assert.Empty(t, ledger.Items)
	assert.True(t, ledger.LastSyncTime.IsZero())
}

func TestLedgerStoreRoundtrip(t *testing.T) {
	store, _ := openTestLedgerStore(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	ledger := NewLedger("device-a")
	ledger.LastSyncTime = now
	ledger.Items["notes/a.md"] = &ItemState{
		LocalMtime:  now.Add(-time.Minute),
		RemoteMtime: now.Add(-30 * time.Second),
		ContentHash: sumString("alpha"),
		Size:        5,
		SyncedAt:    now,
	}
	ledger.Items["b.md"] = &ItemState{
		LocalMtime:  now,
		RemoteMtime: now,
		ContentHash: sumString("beta"),
		Size:        4,
		SyncedAt:    now,
	}
	require.NoError(t, store.Save(ledger))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "device-a", loaded.DeviceID)
	assert.True(t, loaded.LastSyncTime.Equal(now))
	require.Len(t, loaded.Items, 2)

	item := loaded.Items["notes/a.md"]
	require.NotNil(t, item)
	assert.Equal(t, sumString("alpha"), item.ContentHash)
	assert.Equal(t, int64(5), item.Size)
	assert.True(t, item.LocalMtime.Equal(now.Add(-time.Minute)))
	assert.True(t, item.SyncedAt.Equal(now))
}

func TestLedgerStoreSaveReplacesItems(t *testing.T) {
	store, _ := openTestLedgerStore(t)

	ledger := NewLedger("device-a")
	ledger.Items["stale.md"] = &ItemState{ContentHash: sumString("x"), LocalMtime: time.Now(), RemoteMtime: time.Now(), SyncedAt: time.Now()}
	require.NoError(t, store.Save(ledger))

	delete(ledger.Items, "stale.md")
	ledger.Items["fresh.md"] = &ItemState{ContentHash: sumString("y"), LocalMtime: time.Now(), RemoteMtime: time.Now(), SyncedAt: time.Now()}
	require.NoError(t, store.Save(ledger))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, loaded.Items, "stale.md")
	assert.Contains(t, loaded.Items, "fresh.md")
}

func TestLedgerStoreVersionMismatchResets(t *testing.T) {
	store, dbPath := openTestLedgerStore(t)

	now := time.Now()
	ledger := NewLedger("device-a")
	ledger.LastSyncTime = now
	ledger.Items["a.md"] = &ItemState{ContentHash: sumString("a"), LocalMtime: now, RemoteMtime: now, SyncedAt: now}
	require.NoError(t, store.Save(ledger))

	_, err := store.db.Exec("UPDATE ledger_meta SET value = '999' WHERE key = ?", metaVersion)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteLedgerStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.Items, "an unrecognized version discards stored items")
	assert.True(t, loaded.LastSyncTime.IsZero(), "a reset ledger forgets the last sync time")
	assert.Equal(t, "device-a", loaded.DeviceID, "the device identity survives a reset")
	assert.Equal(t, LedgerVersion, loaded.Version)
}

func TestLedgerStorePersistsAcrossReopen(t *testing.T) {
	store, dbPath := openTestLedgerStore(t)

	now := time.Now()
	ledger := NewLedger("device-a")
	ledger.Items["kept.md"] = &ItemState{ContentHash: sumString("kept"), LocalMtime: now, RemoteMtime: now, SyncedAt: now}
	require.NoError(t, store.Save(ledger))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteLedgerStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load()
	require.NoError(t, err)
	assert.Contains(t, loaded.Items, "kept.md")
}

func TestLedgerStoreRejectsNil(t *testing.T) {
	store, _ := openTestLedgerStore(t)
	assert.Error(t, store.Save(nil))
}

func TestNewLedgerGeneratesDeviceID(t *testing.T) {
	ledger := NewLedger("")
	assert.NotEmpty(t, ledger.DeviceID)

	kept := NewLedger("device-a")
	assert.Equal(t, "device-a", kept.DeviceID)
}
