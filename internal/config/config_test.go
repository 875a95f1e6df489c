package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	tmp := t.TempDir()
	return &Config{
		DataDir:    tmp,
		RemoteRoot: "/vaults/alice/",
		S3: S3Config{
			Bucket: "drift-test",
			Region: "us-east-1",
		},
		Path: filepath.Join(tmp, "config.json"),
	}
}

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	cfg := validConfig(t)

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "vaults/alice", cfg.RemoteRoot)
	assert.Equal(t, StrategyCopy, cfg.ConflictStrategy)
	assert.Equal(t, DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	t.Run("missing data dir", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.DataDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing bucket", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.S3.Bucket = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad strategy", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.ConflictStrategy = "newest-wins"
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrInvalidStrategy)
	})
}

func TestConfig_SaveLoadRoundtrip(t *testing.T) {
	cfg := validConfig(t)
	cfg.ConflictStrategy = StrategyRemoteWins
	cfg.SyncAttachments = true
	cfg.SyncInterval = 5 * time.Minute
	cfg.Excludes = []string{".trash/", "*.tmp"}
	require.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, StrategyRemoteWins, loaded.ConflictStrategy)
	assert.True(t, loaded.SyncAttachments)
	assert.Equal(t, cfg.Excludes, loaded.Excludes)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
