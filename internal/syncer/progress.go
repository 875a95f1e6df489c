package syncer

import "log/slog"

// Reporter receives coarse progress updates during a cycle. Fire-and-forget:
// the engine never blocks on a reporter and ignores anything it returns.
type Reporter interface {
	Report(message string, step, total int)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(message string, step, total int)

func (f ReporterFunc) Report(message string, step, total int) {
	f(message, step, total)
}

// NopReporter discards all progress updates.
var NopReporter = ReporterFunc(func(string, int, int) {})

// SlogReporter logs progress at debug level.
var SlogReporter = ReporterFunc(func(message string, step, total int) {
	slog.Debug("sync progress", "step", step, "total", total, "message", message)
})
