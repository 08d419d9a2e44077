package pipeline

import (
	"testing"

	"github.com/neuroglm/physioreport/pkg/errors"
	"github.com/neuroglm/physioreport/pkg/glm"
	"github.com/neuroglm/physioreport/pkg/report"
)

func TestValidateAndSetDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error: %v", err)
	}

	if opts.ReportPath != DefaultReportPath {
		t.Errorf("ReportPath = %q, want %q", opts.ReportPath, DefaultReportPath)
	}
	if opts.ModelPath != DefaultModelPath || opts.PhysioPath != DefaultPhysioPath {
		t.Errorf("model/physio paths = %q/%q, want defaults", opts.ModelPath, opts.PhysioPath)
	}
	if opts.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %g, want %g", opts.Threshold, DefaultThreshold)
	}
	if opts.Correction != DefaultCorrection || opts.Position != DefaultPosition {
		t.Errorf("Correction/Position = %q/%q, want defaults", opts.Correction, opts.Position)
	}

	canonical := glm.CanonicalContrasts()
	if len(opts.Names) != len(canonical) {
		t.Fatalf("Names has %d entries, want the canonical %d", len(opts.Names), len(canonical))
	}
	if len(opts.Indices) != len(canonical) {
		t.Fatalf("Indices has %d entries, want %d", len(opts.Indices), len(canonical))
	}
	for i, n := range opts.Indices {
		if n != i+1 {
			t.Errorf("Indices[%d] = %d, want %d", i, n, i+1)
		}
	}
	if opts.DefaultPhysio == nil {
		t.Error("DefaultPhysio not defaulted")
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Threshold: 0.01}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	// A second call must not re-validate or overwrite anything.
	opts.Threshold = 42 // would fail validation if re-checked
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second ValidateAndSetDefaults() error: %v", err)
	}
	if opts.Threshold != 42 {
		t.Error("second call mutated options")
	}
}

func TestValidateRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"index zero", Options{Indices: []int{0}}, errors.ErrCodeInvalidIndex},
		{"index out of range", Options{Names: []string{"a"}, Indices: []int{2}}, errors.ErrCodeInvalidIndex},
		{"threshold too large", Options{Threshold: 1.5}, errors.ErrCodeInvalidThreshold},
		{"threshold negative", Options{Threshold: -0.1}, errors.ErrCodeInvalidThreshold},
		{"unknown correction", Options{Correction: "bonferroni"}, errors.ErrCodeInvalidCorrection},
		{"malformed position", Options{Position: "somewhere"}, errors.ErrCodeInvalidPosition},
		{"two component position", Options{Position: "1,2"}, errors.ErrCodeInvalidPosition},
		{"negative color cap", Options{ColorCap: -1}, errors.ErrCodeInvalidOption},
		{"negative fov", Options{FOV: -5}, errors.ErrCodeInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if err == nil {
				t.Fatal("ValidateAndSetDefaults() accepted invalid options")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error code = %v, want %v (err: %v)", errors.GetCode(err), tt.code, err)
			}
			if !errors.IsConfig(err) {
				t.Errorf("validation error not classified as config: %v", err)
			}
		})
	}
}

func TestThresholdSpec(t *testing.T) {
	opts := Options{Threshold: 0.05, Correction: "FWE", ColorCap: 8}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	spec := opts.ThresholdSpec()
	if spec.P != 0.05 || spec.Correction != report.CorrectionFWE || spec.ColorCap != 8 {
		t.Errorf("ThresholdSpec() = %+v", spec)
	}
}

func TestPageKeyOptsCoversRenderInputs(t *testing.T) {
	opts := Options{
		Threshold:      0.01,
		Correction:     "FWE",
		ColorCap:       6,
		Position:       "0,-15,-32",
		FOV:            40,
		WorldAligned:   true,
		HideCrosshair:  true,
		TitlePrefix:    "rest01",
		AnatomicalPath: "/data/subject01/anat.nii",
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	key := opts.PageKeyOpts()
	if key.Threshold != 0.01 || key.Correction != "FWE" || key.ColorCap != 6 ||
		key.Position != "0,-15,-32" || key.FOV != 40 ||
		!key.WorldAligned || !key.HideCrosshair || key.TitlePrefix != "rest01" ||
		key.AnatomicalPath != "/data/subject01/anat.nii" {
		t.Errorf("PageKeyOpts() = %+v, option not carried into the cache key", key)
	}
}
