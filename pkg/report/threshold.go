// Package report implements per-contrast statistical report pages: the
// threshold and crosshair value objects, the overlay renderer that turns a
// fitted model plus a contrast index into a rendered page, and the PostScript
// document sink the pipeline appends pages to.
package report

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/neuroglm/physioreport/pkg/errors"
)

// Correction is a multiple-comparisons correction mode.
type Correction string

const (
	// CorrectionNone applies the significance threshold per voxel.
	CorrectionNone Correction = "none"

	// CorrectionFWE controls the family-wise error rate by Bonferroni
	// tightening of the per-voxel threshold.
	CorrectionFWE Correction = "FWE"
)

// ParseCorrection validates a correction mode string.
func ParseCorrection(s string) (Correction, error) {
	switch Correction(s) {
	case CorrectionNone, CorrectionFWE:
		return Correction(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidCorrection,
		"invalid correction mode: %q (must be 'none' or 'FWE')", s)
}

// ThresholdSpec describes the statistical thresholding of one contrast
// render: significance level, correction mode and color-scale cap.
// Constructed fresh per contrast from the pipeline options; immutable.
type ThresholdSpec struct {
	// P is the significance threshold (e.g. 0.001).
	P float64

	// Correction is the multiple-comparisons correction mode.
	Correction Correction

	// ColorCap caps the color scale at this statistic value.
	// Zero means unbounded: the scale runs to the map's peak.
	ColorCap float64
}

// StatThreshold converts the significance level to a statistic-value
// threshold for a contrast of the given kind ("t" or "F"), residual degrees
// of freedom and rank. Under family-wise correction the per-voxel level is
// divided by the number of voxels in the search volume.
func (s ThresholdSpec) StatThreshold(kind string, df float64, rank, voxels int) (float64, error) {
	p := s.P
	if s.Correction == CorrectionFWE && voxels > 0 {
		p /= float64(voxels)
	}
	if p <= 0 || p >= 1 {
		return 0, errors.New(errors.ErrCodeInvalidThreshold, "threshold %g out of range", p)
	}
	switch kind {
	case "t":
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		return dist.Quantile(1 - p), nil
	case "F":
		if rank < 1 {
			rank = 1
		}
		dist := distuv.F{D1: float64(rank), D2: df}
		return dist.Quantile(1 - p), nil
	}
	return 0, errors.New(errors.ErrCodeInvalidThreshold, "unknown contrast kind %q", kind)
}

// Describe returns the page annotation for this spec, e.g. "p < 0.001 (unc.)".
func (s ThresholdSpec) Describe() string {
	switch s.Correction {
	case CorrectionFWE:
		return fmt.Sprintf("p < %g (FWE)", s.P)
	default:
		return fmt.Sprintf("p < %g (unc.)", s.P)
	}
}
