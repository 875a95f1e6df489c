package syncer

import (
	"log/slog"

	"github.com/rjeczalik/notify"
)

// FileWatcher reports local write activity so the daemon can schedule the
// next poll cycle early. It never transfers anything itself; the cycle
// remains the only unit of synchronization.
type FileWatcher struct {
	watchDir string
	events   chan notify.EventInfo
}

func NewFileWatcher(watchDir string) *FileWatcher {
	return &FileWatcher{
		watchDir: watchDir,
		events:   make(chan notify.EventInfo, 64),
	}
}

func (fw *FileWatcher) Start() error {
	slog.Info("file watcher start", "dir", fw.watchDir)

	recursivePath := fw.watchDir + "/..."
	return notify.Watch(recursivePath, fw.events, notify.Write, notify.Remove, notify.Rename)
}

func (fw *FileWatcher) Stop() {
	notify.Stop(fw.events)
	close(fw.events)
	slog.Info("file watcher stop")
}

func (fw *FileWatcher) Events() <-chan notify.EventInfo {
	return fw.events
}
