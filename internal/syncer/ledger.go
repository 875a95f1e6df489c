package syncer

import (
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// LedgerVersion tags the persisted ledger format. A stored ledger with a
// different version is discarded wholesale: the next cycle re-compares
// everything by content hash, which is safe, just slower.
const LedgerVersion = 1

// ItemState is the three-way agreement point for one path: what local and
// remote looked like the last time the path was successfully synced. Its
// presence means both sides held content with ContentHash at SyncedAt.
type ItemState struct {
	LocalMtime  time.Time
	RemoteMtime time.Time
	ContentHash string
	Size        int64
	SyncedAt    time.Time
}

// Ledger is the durable per-path sync state. It is owned by a single cycle
// at a time and persisted through a LedgerStore at cycle end.
type Ledger struct {
	Version      int
	DeviceID     string
	LastSyncTime time.Time
	Items        map[string]*ItemState
}

func NewLedger(deviceID string) *Ledger {
	if deviceID == "" {
		deviceID = GenerateDeviceID()
	}
	return &Ledger{
		Version:  LedgerVersion,
		DeviceID: deviceID,
		Items:    make(map[string]*ItemState),
	}
}

// GenerateDeviceID returns a stable per-installation identifier. The machine
// id is app-scoped so it cannot be correlated across applications; when the
// platform cannot provide one, a random id is used instead. Callers persist
// the result, so the fallback stays stable too.
func GenerateDeviceID() string {
	id, err := machineid.ProtectedID("drift")
	if err != nil {
		return uuid.NewString()
	}
	return id
}
