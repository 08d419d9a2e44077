package report

import "testing"

func TestPushWindowModeRestores(t *testing.T) {
	SetWindowMode(WindowDocked)

	restore := PushWindowMode(WindowNormalized)
	if got := CurrentWindowMode(); got != WindowNormalized {
		t.Errorf("mode during push = %v, want normalized", got)
	}

	restore()
	if got := CurrentWindowMode(); got != WindowDocked {
		t.Errorf("mode after restore = %v, want docked", got)
	}
}

func TestPushWindowModeNested(t *testing.T) {
	SetWindowMode(WindowDocked)

	outer := PushWindowMode(WindowNormalized)
	inner := PushWindowMode(WindowDocked)

	inner()
	if got := CurrentWindowMode(); got != WindowNormalized {
		t.Errorf("mode after inner restore = %v, want normalized", got)
	}
	outer()
	if got := CurrentWindowMode(); got != WindowDocked {
		t.Errorf("mode after outer restore = %v, want docked", got)
	}
}
