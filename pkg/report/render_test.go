package report

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neuroglm/physioreport/pkg/glm"
	"github.com/neuroglm/physioreport/pkg/volume"
)

var identityAffine = [4][4]float64{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
	{0, 0, 0, 1},
}

// renderFixture writes a small beta and residual volume pair and returns a
// model referencing them. The design gives X'X = diag(2, 2). Frame 0 of the
// beta volume is 1 everywhere with a single hot voxel of 10 at (1, 1, 1);
// frame 1 and the residual variance are flat.
func renderFixture(t *testing.T) *glm.FittedModel {
	t.Helper()
	dir := t.TempDir()

	beta := volume.New(2, 2, 2, 2, identityAffine)
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				beta.SetFrame(i, j, k, 0, 1)
			}
		}
	}
	beta.SetFrame(1, 1, 1, 0, 10)
	betaPath := filepath.Join(dir, "beta.nii")
	if err := volume.WriteNIfTI(beta, betaPath); err != nil {
		t.Fatalf("write beta volume: %v", err)
	}

	resms := volume.New(2, 2, 2, 1, identityAffine)
	for i := range resms.Data {
		resms.Data[i] = 1
	}
	resmsPath := filepath.Join(dir, "resms.nii")
	if err := volume.WriteNIfTI(resms, resmsPath); err != nil {
		t.Fatalf("write residual volume: %v", err)
	}

	return &glm.FittedModel{
		Design:    [][]float64{{1, 0}, {1, 0}, {0, 1}, {0, 1}},
		ErrorDF:   10,
		BetaPath:  betaPath,
		ResMSPath: resmsPath,
		Contrasts: []glm.Contrast{
			{Name: "hot column", Kind: "t", Weights: [][]float64{{1, 0}}},
			{Name: "both columns", Kind: "F", Weights: [][]float64{{1, 0}, {0, 1}}},
		},
	}
}

func TestRenderTContrast(t *testing.T) {
	model := renderFixture(t)
	r := NewSliceRenderer(nil)
	spec := ThresholdSpec{P: 0.05, Correction: CorrectionNone}

	res, err := r.Render(context.Background(), model, 0, spec, volume.CanonicalTemplate, RenderOptions{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	// t = beta / sqrt(resms * 0.5), so the hot voxel scores 10 * sqrt(2).
	if math.Abs(res.PeakStat-10*math.Sqrt2) > 1e-3 {
		t.Errorf("PeakStat = %g, want %g", res.PeakStat, 10*math.Sqrt2)
	}
	if res.Extremum != [3]float64{1, 1, 1} {
		t.Errorf("Extremum = %v, want voxel (1,1,1) in world space", res.Extremum)
	}
	// Background voxels score sqrt(2) ~ 1.41, below the 1.81 threshold.
	if res.Suprathreshold != 1 {
		t.Errorf("Suprathreshold = %d, want 1", res.Suprathreshold)
	}
	if res.StatThreshold <= 1.4 || res.StatThreshold >= 2 {
		t.Errorf("StatThreshold = %g, want ~1.81", res.StatThreshold)
	}
}

func TestRenderFContrast(t *testing.T) {
	model := renderFixture(t)
	r := NewSliceRenderer(nil)
	spec := ThresholdSpec{P: 0.05, Correction: CorrectionNone}

	res, err := r.Render(context.Background(), model, 1, spec, volume.CanonicalTemplate, RenderOptions{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	// F = (Cb)' [C(X'X)^-1 C']^-1 (Cb) / (2 * resms) = beta0^2 at every voxel.
	if math.Abs(res.PeakStat-100) > 1e-2 {
		t.Errorf("PeakStat = %g, want 100", res.PeakStat)
	}
	if res.Extremum != [3]float64{1, 1, 1} {
		t.Errorf("Extremum = %v, want (1,1,1)", res.Extremum)
	}
	if res.Suprathreshold != 1 {
		t.Errorf("Suprathreshold = %d, want 1 (F(2,10) 5%% quantile ~4.1)", res.Suprathreshold)
	}
}

func TestRenderCompose(t *testing.T) {
	model := renderFixture(t)
	r := NewSliceRenderer(nil)
	spec := ThresholdSpec{P: 0.05, Correction: CorrectionNone}
	opts := RenderOptions{Title: "Cardiac Regressors", Footer: "run 42"}

	res, err := r.Render(context.Background(), model, 0, spec, volume.CanonicalTemplate, opts)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	page, err := res.Compose(res.Extremum)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	body := string(page)
	if !strings.Contains(body, "Cardiac Regressors") {
		t.Error("page body missing the title")
	}
	if !strings.Contains(body, "run 42") {
		t.Error("page body missing the footer")
	}
	if !strings.Contains(body, "findfont") || !strings.Contains(body, "rectfill") {
		t.Error("page body missing drawing operators")
	}
}

func TestRenderRejectsBadIndex(t *testing.T) {
	model := renderFixture(t)
	r := NewSliceRenderer(nil)
	spec := ThresholdSpec{P: 0.05, Correction: CorrectionNone}

	if _, err := r.Render(context.Background(), model, 5, spec, volume.CanonicalTemplate, RenderOptions{}); err == nil {
		t.Error("Render() accepted an out-of-range contrast index")
	}
}

func TestRenderRejectsFrameMismatch(t *testing.T) {
	model := renderFixture(t)
	model.Design = [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}} // 3 columns, 2 beta frames
	model.Contrasts[0].Weights = [][]float64{{1, 0, 0}}
	r := NewSliceRenderer(nil)
	spec := ThresholdSpec{P: 0.05, Correction: CorrectionNone}

	if _, err := r.Render(context.Background(), model, 0, spec, volume.CanonicalTemplate, RenderOptions{}); err == nil {
		t.Error("Render() accepted a beta volume with the wrong frame count")
	}
}

func TestRenderHonorsContext(t *testing.T) {
	model := renderFixture(t)
	r := NewSliceRenderer(nil)
	spec := ThresholdSpec{P: 0.05, Correction: CorrectionNone}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, model, 0, spec, volume.CanonicalTemplate, RenderOptions{}); err == nil {
		t.Error("Render() ignored a cancelled context")
	}
}
