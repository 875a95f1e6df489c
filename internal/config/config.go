package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".drift", "config.json")
	DefaultDataDir    = filepath.Join(home, "Drift")
)

const (
	DefaultSyncInterval = 30 * time.Second
	DefaultMaxFileSize  = int64(100 * 1024 * 1024) // 100 MiB
)

// Conflict strategies. Copy is the default because it is the only one that
// never loses data.
const (
	StrategyCopy       = "copy"
	StrategyLocalWins  = "local-wins"
	StrategyRemoteWins = "remote-wins"
)

var ErrInvalidStrategy = errors.New("invalid conflict strategy")

// S3Config holds credentials and addressing for the remote blob store.
// Endpoint is optional and enables S3-compatible stores (R2, MinIO).
type S3Config struct {
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	Endpoint      string `json:"endpoint,omitempty"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	UseAccelerate bool   `json:"use_accelerate,omitempty"`
}

type Config struct {
	// DataDir is the root of the local tree being synced.
	DataDir string `json:"data_dir"`

	// RemoteRoot is the key prefix on the remote store under which this
	// tree lives. Multiple trees can share a bucket with distinct roots.
	RemoteRoot string `json:"remote_root"`

	S3 S3Config `json:"s3"`

	// ConflictStrategy is one of copy, local-wins, remote-wins.
	ConflictStrategy string `json:"conflict_strategy"`

	// SyncAttachments controls whether non-text files are synced.
	SyncAttachments bool `json:"sync_attachments"`

	// MaxFileSize in bytes; larger local files are skipped. Zero means default.
	MaxFileSize int64 `json:"max_file_size,omitempty"`

	// Excludes are gitignore-syntax patterns skipped by the local scan.
	Excludes []string `json:"excludes,omitempty"`

	// SyncInterval between full cycles in daemon mode. Zero means default.
	SyncInterval time.Duration `json:"sync_interval,omitempty"`

	// Path the config was loaded from. Not persisted.
	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir is required")
	}

	dataDir, err := resolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dataDir

	if c.Path != "" {
		path, err := resolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config path: %w", err)
		}
		c.Path = path
	}

	if c.S3.Bucket == "" {
		return errors.New("s3 bucket is required")
	}

	c.RemoteRoot = strings.Trim(c.RemoteRoot, "/")

	switch c.ConflictStrategy {
	case "":
		c.ConflictStrategy = StrategyCopy
	case StrategyCopy, StrategyLocalWins, StrategyRemoteWins:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.ConflictStrategy)
	}

	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}

// resolvePath expands a leading ~ and returns a cleaned absolute path.
func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}
