package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/filedrift/drift/internal/fingerprint"
)

// Remote control-plane paths. These live alongside the synced tree on the
// remote store and are excluded from scans.
const (
	RemoteControlDir  = ".drift"
	remoteManifestKey = ".drift/manifest.json"
	remoteLockDir     = ".drift/locks"
)

const manifestVersion = 1

// Manifest is the remote hash manifest: path → content digest for every
// synced remote file. It is persisted on the remote store itself so any
// client can detect remote-side changes by hash instead of timestamp.
type Manifest struct {
	Version int               `json:"version"`
	Algo    string            `json:"algo"`
	Files   map[string]string `json:"files"`
}

func NewManifest() *Manifest {
	return &Manifest{
		Version: manifestVersion,
		Algo:    fingerprint.Algo,
		Files:   make(map[string]string),
	}
}

// LoadManifest fetches the manifest from the remote store. Absence, parse
// failures, and algorithm mismatches all yield an empty manifest: the cycle
// then falls back to ledger digests and rebuilds the manifest at save time.
func LoadManifest(ctx context.Context, remote RemoteStore) *Manifest {
	data, err := remote.GetOrNull(ctx, remoteManifestKey)
	if err != nil {
		slog.Warn("manifest load failed, assuming empty", "error", err)
		return NewManifest()
	}
	if data == nil {
		return NewManifest()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("manifest parse failed, assuming empty", "error", err)
		return NewManifest()
	}
	if m.Version != manifestVersion || m.Algo != fingerprint.Algo {
		slog.Warn("manifest version or algo mismatch, assuming empty", "version", m.Version, "algo", m.Algo)
		return NewManifest()
	}
	if m.Files == nil {
		m.Files = make(map[string]string)
	}
	return &m
}

// Save persists the manifest to the remote store.
func (m *Manifest) Save(ctx context.Context, remote RemoteStore) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return remote.Put(ctx, remoteManifestKey, data)
}

// isControlPath reports whether a remote path belongs to the engine's own
// control plane (locks, manifest) rather than synced content.
func isControlPath(path string) bool {
	return path == RemoteControlDir || strings.HasPrefix(path, RemoteControlDir+"/")
}
