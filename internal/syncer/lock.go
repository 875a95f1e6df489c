package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	lockTTL             = 5 * time.Minute
	lockRefreshInterval = 1 * time.Minute

	exclusiveLockKey = remoteLockDir + "/exclusive.json"
)

// SyncLock is the advisory lock record a client writes to the remote store
// for the duration of a cycle. Non-exclusive locks are informational: one
// per active device, distinguished by file name. The exclusive lock (a fixed
// well-known name) blocks all non-exclusive acquisition while unexpired —
// it marks a maintenance operation that owns the whole target.
type SyncLock struct {
	DeviceID   string    `json:"deviceId"`
	ClientType string    `json:"clientType"`
	Timestamp  time.Time `json:"timestamp"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (l *SyncLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockCoordinator manages this device's lock on the remote target.
//
// The lock does not serialize concurrent cycles from different devices;
// correctness against concurrent writers comes from hash-based conflict
// detection in the reconciler. Because of that, lock-service unavailability
// must never block sync of an otherwise reachable remote: any I/O error
// during acquisition fails open.
type LockCoordinator struct {
	remote          RemoteStore
	deviceID        string
	clientType      string
	now             func() time.Time
	refreshInterval time.Duration
}

func NewLockCoordinator(remote RemoteStore, deviceID, clientType string) *LockCoordinator {
	return &LockCoordinator{
		remote:          remote,
		deviceID:        deviceID,
		clientType:      clientType,
		now:             time.Now,
		refreshInterval: lockRefreshInterval,
	}
}

func (lc *LockCoordinator) lockKey() string {
	return remoteLockDir + "/" + lc.deviceID + ".json"
}

// Acquire returns false only when an unexpired exclusive lock is present,
// in which case the caller must abort the cycle. Every other outcome,
// including lock-service I/O errors, returns true.
func (lc *LockCoordinator) Acquire(ctx context.Context) bool {
	data, err := lc.remote.GetOrNull(ctx, exclusiveLockKey)
	if err != nil {
		slog.Warn("exclusive lock check failed, proceeding", "error", err)
		return true
	}

	if data != nil {
		var excl SyncLock
		if err := json.Unmarshal(data, &excl); err != nil {
			slog.Warn("exclusive lock unreadable, proceeding", "error", err)
		} else if !excl.Expired(lc.now()) {
			slog.Info("exclusive lock held, aborting cycle",
				"device", excl.DeviceID, "client", excl.ClientType, "expires", excl.ExpiresAt)
			return false
		}
	}

	if err := lc.writeLock(ctx, lc.now()); err != nil {
		slog.Warn("lock write failed, proceeding", "error", err)
	}
	return true
}

// Release deletes this device's lock. Failure is non-fatal: the lock
// self-expires via its TTL.
func (lc *LockCoordinator) Release(ctx context.Context) {
	if err := lc.remote.Delete(ctx, lc.lockKey()); err != nil {
		slog.Warn("lock release failed, will self-expire", "error", err)
	}
}

// StartRefresh spawns the periodic refresh task that keeps a long cycle's
// lock from appearing stale to other clients. The returned stop function
// cancels the task and waits for it to exit; callers defer it so the task
// is joined regardless of how the cycle ends.
func (lc *LockCoordinator) StartRefresh(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(lc.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lc.writeLock(ctx, lc.now()); err != nil {
					slog.Warn("lock refresh failed", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (lc *LockCoordinator) writeLock(ctx context.Context, now time.Time) error {
	lock := SyncLock{
		DeviceID:   lc.deviceID,
		ClientType: lc.clientType,
		Timestamp:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(lockTTL),
	}
	data, err := json.Marshal(&lock)
	if err != nil {
		return err
	}
	return lc.remote.Put(ctx, lc.lockKey(), data)
}
