package syncer

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_items (
    path TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    size INTEGER NOT NULL,
    local_mtime TEXT NOT NULL,  -- RFC3339Nano
    remote_mtime TEXT NOT NULL, -- RFC3339Nano
    synced_at TEXT NOT NULL     -- RFC3339Nano
);

CREATE INDEX IF NOT EXISTS idx_ledger_items_hash ON ledger_items(content_hash);
`

const (
	metaVersion      = "version"
	metaDeviceID     = "device_id"
	metaLastSyncTime = "last_sync_time"
)

// SQLiteLedgerStore persists the ledger in a single SQLite database. Save
// rewrites the full item set in one transaction, which gives the atomicity
// the engine expects: a crash mid-save leaves the previous ledger intact.
type SQLiteLedgerStore struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteLedgerStore(dbPath string) (*SQLiteLedgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db at %s: %w", dbPath, err)
	}

	// SQLite best practice for WAL mode
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}

	return &SQLiteLedgerStore{db: db, dbPath: dbPath}, nil
}

func (s *SQLiteLedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the stored ledger. A missing database, a missing version row,
// or a version mismatch all yield a fresh empty ledger — never an error the
// caller must distinguish. The device id survives a version reset.
func (s *SQLiteLedgerStore) Load() (*Ledger, error) {
	deviceID, _ := s.getMeta(metaDeviceID)

	versionStr, err := s.getMeta(metaVersion)
	if err != nil {
		return nil, err
	}
	version, _ := strconv.Atoi(versionStr)
	if version != LedgerVersion {
		if versionStr != "" {
			slog.Warn("ledger version mismatch, resetting", "stored", versionStr, "want", LedgerVersion)
		}
		return NewLedger(deviceID), nil
	}

	ledger := NewLedger(deviceID)

	if lastSync, _ := s.getMeta(metaLastSyncTime); lastSync != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastSync); err == nil {
			ledger.LastSyncTime = t
		}
	}

	rows, err := s.db.Query("SELECT path, content_hash, size, local_mtime, remote_mtime, synced_at FROM ledger_items")
	if err != nil {
		return nil, fmt.Errorf("query ledger items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path, hash, localMtime, remoteMtime, syncedAt string
		var size int64
		if err := rows.Scan(&path, &hash, &size, &localMtime, &remoteMtime, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan ledger item: %w", err)
		}

		item := &ItemState{ContentHash: hash, Size: size}
		if item.LocalMtime, err = time.Parse(time.RFC3339Nano, localMtime); err != nil {
			slog.Error("skipping ledger item with bad local_mtime", "path", path, "value", localMtime)
			continue
		}
		if item.RemoteMtime, err = time.Parse(time.RFC3339Nano, remoteMtime); err != nil {
			slog.Error("skipping ledger item with bad remote_mtime", "path", path, "value", remoteMtime)
			continue
		}
		if item.SyncedAt, err = time.Parse(time.RFC3339Nano, syncedAt); err != nil {
			slog.Error("skipping ledger item with bad synced_at", "path", path, "value", syncedAt)
			continue
		}
		ledger.Items[path] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger items: %w", err)
	}

	return ledger, nil
}

// Save replaces the stored ledger with the given one in a single transaction.
func (s *SQLiteLedgerStore) Save(ledger *Ledger) error {
	if ledger == nil {
		return errors.New("cannot save nil ledger")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ledger save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM ledger_items"); err != nil {
		return fmt.Errorf("clear ledger items: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO ledger_items (path, content_hash, size, local_mtime, remote_mtime, synced_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for path, item := range ledger.Items {
		_, err := stmt.Exec(
			path,
			item.ContentHash,
			item.Size,
			item.LocalMtime.Format(time.RFC3339Nano),
			item.RemoteMtime.Format(time.RFC3339Nano),
			item.SyncedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert ledger item %s: %w", path, err)
		}
	}

	meta := map[string]string{
		metaVersion:      strconv.Itoa(ledger.Version),
		metaDeviceID:     ledger.DeviceID,
		metaLastSyncTime: ledger.LastSyncTime.Format(time.RFC3339Nano),
	}
	for key, value := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO ledger_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("save ledger meta %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteLedgerStore) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM ledger_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query ledger meta %s: %w", key, err)
	}
	return value, nil
}
