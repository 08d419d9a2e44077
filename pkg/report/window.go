package report

import "sync"

// WindowMode is the process-wide display mode of the rendering backend.
// The slice renderer's page geometry assumes the normalized mode; the
// pipeline forces it for the duration of a run and restores the caller's
// mode on every exit path.
type WindowMode string

const (
	WindowDocked     WindowMode = "docked"
	WindowNormalized WindowMode = "normalized"
)

var (
	windowMu   sync.Mutex
	windowMode = WindowDocked
)

// CurrentWindowMode returns the current display mode.
func CurrentWindowMode() WindowMode {
	windowMu.Lock()
	defer windowMu.Unlock()
	return windowMode
}

// SetWindowMode sets the display mode.
func SetWindowMode(m WindowMode) {
	windowMu.Lock()
	defer windowMu.Unlock()
	windowMode = m
}

// PushWindowMode sets the display mode and returns a restore function that
// reinstates the previous mode. Callers defer the restore so it runs on
// every exit path, including propagated failures:
//
//	restore := report.PushWindowMode(report.WindowNormalized)
//	defer restore()
func PushWindowMode(m WindowMode) (restore func()) {
	windowMu.Lock()
	prev := windowMode
	windowMode = m
	windowMu.Unlock()
	return func() { SetWindowMode(prev) }
}
