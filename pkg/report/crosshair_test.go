package report

import (
	"testing"

	"github.com/neuroglm/physioreport/pkg/errors"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		isMax   bool
		coord   [3]float64
		wantErr bool
	}{
		{"max", "max", true, [3]float64{}, false},
		{"max case insensitive", "MAX", true, [3]float64{}, false},
		{"explicit coordinate", "0,-15,-32", false, [3]float64{0, -15, -32}, false},
		{"whitespace tolerated", " 12, -4 , 30 ", false, [3]float64{12, -4, 30}, false},
		{"too few components", "1,2", false, [3]float64{}, true},
		{"non-numeric", "a,b,c", false, [3]float64{}, true},
		{"empty", "", false, [3]float64{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := ParsePosition(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePosition(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInvalidPosition) {
					t.Errorf("error code = %v, want INVALID_POSITION", errors.GetCode(err))
				}
				return
			}
			if pos.IsMax() != tt.isMax {
				t.Errorf("IsMax() = %v, want %v", pos.IsMax(), tt.isMax)
			}
			if !tt.isMax {
				got := ResolveCrosshair(pos, &RenderResult{})
				if got != tt.coord {
					t.Errorf("coordinate = %v, want %v", got, tt.coord)
				}
			}
		})
	}
}

func TestResolveCrosshair(t *testing.T) {
	res := &RenderResult{Extremum: [3]float64{12, -4, 30}}

	if got := ResolveCrosshair(MaxPosition(), res); got != res.Extremum {
		t.Errorf("max position resolved to %v, want extremum %v", got, res.Extremum)
	}

	explicit := At(0, -15, -32)
	if got := ResolveCrosshair(explicit, res); got != [3]float64{0, -15, -32} {
		t.Errorf("explicit position resolved to %v, want it unchanged", got)
	}
}

func TestPositionString(t *testing.T) {
	if got := MaxPosition().String(); got != "max" {
		t.Errorf("String() = %q, want max", got)
	}
	if got := At(1, -2.5, 3).String(); got != "1,-2.5,3" {
		t.Errorf("String() = %q, want 1,-2.5,3", got)
	}
}
