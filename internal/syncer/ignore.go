package syncer

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreLines are always excluded from the local scan: the engine's
// own state directory plus platform junk that should never travel.
var defaultIgnoreLines = []string{
	".drift/",
	".git/",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"*.swp",
	"*.tmp",
}

// IgnoreList decides which local paths are excluded from sync. Patterns use
// gitignore syntax; user excludes from the config are appended to the
// built-in set.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

func NewIgnoreList(excludes []string) *IgnoreList {
	lines := append([]string{}, defaultIgnoreLines...)
	lines = append(lines, excludes...)
	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

func (l *IgnoreList) ShouldIgnore(path string) bool {
	return l.ignore.MatchesPath(path)
}
