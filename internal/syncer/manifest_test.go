package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundtrip(t *testing.T) {
	ctx := context.Background()
	remote := newMemRemote()

	m := NewManifest()
	m.Files["a.md"] = sumString("alpha")
	m.Files["dir/b.md"] = sumString("beta")
	require.NoError(t, m.Save(ctx, remote))

	loaded := LoadManifest(ctx, remote)
	assert.Equal(t, m.Files, loaded.Files)
}

func TestLoadManifestAbsent(t *testing.T) {
	m := LoadManifest(context.Background(), newMemRemote())
	assert.Empty(t, m.Files)
	assert.Equal(t, manifestVersion, m.Version)
}

func TestLoadManifestCorrupt(t *testing.T) {
	ctx := context.Background()
	remote := newMemRemote()
	require.NoError(t, remote.Put(ctx, remoteManifestKey, []byte("{truncated")))

	m := LoadManifest(ctx, remote)
	assert.Empty(t, m.Files, "a corrupt manifest degrades to empty, not to an error")
}

func TestLoadManifestFetchError(t *testing.T) {
	remote := newMemRemote()
	remote.failGet[remoteManifestKey] = errors.New("timeout")

	m := LoadManifest(context.Background(), remote)
	assert.Empty(t, m.Files)
}

func TestLoadManifestAlgoMismatch(t *testing.T) {
	ctx := context.Background()
	remote := newMemRemote()
	require.NoError(t, remote.Put(ctx, remoteManifestKey,
		[]byte(`{"version":1,"algo":"md5","files":{"a.md":"deadbeef"}}`)))

	m := LoadManifest(ctx, remote)
	assert.Empty(t, m.Files, "digests from another algorithm are unusable")
}

func TestIsControlPath(t *testing.T) {
	assert.True(t, isControlPath(".drift"))
	assert.True(t, isControlPath(".drift/manifest.json"))
	assert.True(t, isControlPath(".drift/locks/dev-1.json"))
	assert.False(t, isControlPath("notes/a.md"))
	assert.False(t, isControlPath(".drifting/file.md"))
}
