package report

import (
	"context"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/mat"

	"github.com/neuroglm/physioreport/pkg/errors"
	"github.com/neuroglm/physioreport/pkg/glm"
	"github.com/neuroglm/physioreport/pkg/volume"
)

// RenderOptions control the view geometry of one rendered page.
type RenderOptions struct {
	// FOV is the field-of-view radius in mm around the crosshair.
	// Zero means full extent, no cropping.
	FOV float64

	// WorldAligned selects world-axis-aligned resampling of the slice
	// planes. The default (false) slices along the anatomical volume's
	// voxel axes.
	WorldAligned bool

	// HideCrosshair suppresses the crosshair lines on the page.
	HideCrosshair bool

	// Title is the page heading.
	Title string

	// Footer is the page footer line (run metadata).
	Footer string
}

// RenderResult is the outcome of rendering one contrast overlay. The page
// itself is composed lazily: the crosshair coordinate is only known after
// the crosshair policy has been applied, so Compose takes the final display
// coordinate and returns the finished page.
type RenderResult struct {
	// Extremum is the world coordinate (mm) of the statistic maximum.
	Extremum [3]float64

	// PeakStat is the statistic value at the extremum.
	PeakStat float64

	// Suprathreshold is the number of voxels above the threshold.
	Suprathreshold int

	// StatThreshold is the statistic-value threshold that was applied.
	StatThreshold float64

	// Compose renders the page centered at the given world coordinate.
	Compose func(coord [3]float64) ([]byte, error)
}

// OverlayRenderer produces a rendered overlay page for one contrast of a
// fitted model, and reports the located extremum coordinate.
type OverlayRenderer interface {
	Render(ctx context.Context, model *glm.FittedModel, index int, spec ThresholdSpec,
		anatPath string, opts RenderOptions) (*RenderResult, error)
}

// SliceRenderer is the default OverlayRenderer: it computes the contrast
// statistic map from the model's persisted beta and residual volumes,
// thresholds it, and composes an orthogonal-slice montage page over the
// anatomical volume.
type SliceRenderer struct {
	Logger *log.Logger
}

// NewSliceRenderer creates a slice renderer. A nil logger disables logging.
func NewSliceRenderer(logger *log.Logger) *SliceRenderer {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &SliceRenderer{Logger: logger}
}

// Render implements OverlayRenderer.
func (r *SliceRenderer) Render(ctx context.Context, model *glm.FittedModel, index int,
	spec ThresholdSpec, anatPath string, opts RenderOptions) (*RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(model.Contrasts) {
		return nil, errors.New(errors.ErrCodeRenderFailed, "contrast index %d out of range", index)
	}
	con := &model.Contrasts[index]

	beta, err := volume.ReadNIfTI(model.BetaPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadVolume, err, "load beta volume")
	}
	if beta.Frames != model.NumColumns() {
		return nil, errors.New(errors.ErrCodeRenderFailed,
			"beta volume has %d frames, design has %d columns", beta.Frames, model.NumColumns())
	}
	resms, err := volume.ReadNIfTI(model.ResMSPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadVolume, err, "load residual volume")
	}
	if resms.NX != beta.NX || resms.NY != beta.NY || resms.NZ != beta.NZ {
		return nil, errors.New(errors.ErrCodeRenderFailed, "residual and beta volume grids differ")
	}

	stat, err := r.statMap(model, con, beta, resms)
	if err != nil {
		return nil, err
	}

	thresh, err := spec.StatThreshold(con.Kind, model.ErrorDF, con.Rows(), stat.NumVoxels())
	if err != nil {
		return nil, err
	}

	res := &RenderResult{StatThreshold: thresh, PeakStat: math.Inf(-1)}
	for k := 0; k < stat.NZ; k++ {
		for j := 0; j < stat.NY; j++ {
			for i := 0; i < stat.NX; i++ {
				v := stat.At(i, j, k)
				if math.IsNaN(v) {
					continue
				}
				if v >= thresh {
					res.Suprathreshold++
				}
				if v > res.PeakStat {
					res.PeakStat = v
					res.Extremum = stat.VoxelToWorld(float64(i), float64(j), float64(k))
				}
			}
		}
	}
	if math.IsInf(res.PeakStat, -1) {
		return nil, errors.New(errors.ErrCodeRenderFailed, "statistic map is empty")
	}

	anat, err := volume.Load(anatPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadVolume, err, "load anatomical volume %s", anatPath)
	}

	r.Logger.Debug("computed statistic map",
		"contrast", con.Name,
		"kind", con.Kind,
		"threshold", thresh,
		"suprathreshold", res.Suprathreshold,
		"peak", res.PeakStat)

	meta := pageMeta{
		contrast:  con.Name,
		kind:      con.Kind,
		spec:      spec,
		threshold: thresh,
		peak:      res.PeakStat,
		above:     res.Suprathreshold,
		extremum:  res.Extremum,
	}
	res.Compose = func(coord [3]float64) ([]byte, error) {
		return composePage(anat, stat, coord, opts, meta)
	}
	return res, nil
}

// statMap computes the per-voxel contrast statistic. For a t-contrast,
// t = c'β / sqrt(ResMS · c'(X'X)⁻¹c); for an F-contrast with weight matrix C,
// F = (Cβ)' [C(X'X)⁻¹C']⁻¹ (Cβ) / (rank · ResMS). Voxels with non-positive
// residual variance are excluded (NaN).
func (r *SliceRenderer) statMap(model *glm.FittedModel, con *glm.Contrast,
	beta, resms *volume.Volume) (*volume.Volume, error) {

	cov, err := model.ContrastCovariance(con)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "contrast %q", con.Name)
	}

	rank := con.Rows()
	var covInv mat.Dense
	tScale := 0.0
	if rank == 1 {
		tScale = cov.At(0, 0)
		if tScale <= 0 {
			return nil, errors.New(errors.ErrCodeRenderFailed,
				"contrast %q has non-positive variance scale", con.Name)
		}
	} else {
		if err := covInv.Inverse(cov); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err,
				"contrast %q covariance is singular", con.Name)
		}
	}

	weights := con.Weights
	stat := volume.New(beta.NX, beta.NY, beta.NZ, 1, beta.Affine)
	cb := make([]float64, rank)

	for k := 0; k < beta.NZ; k++ {
		for j := 0; j < beta.NY; j++ {
			for i := 0; i < beta.NX; i++ {
				rv := resms.At(i, j, k)
				if rv <= 0 || math.IsNaN(rv) {
					stat.Set(i, j, k, math.NaN())
					continue
				}
				for row := 0; row < rank; row++ {
					sum := 0.0
					for col, w := range weights[row] {
						if w != 0 {
							sum += w * beta.AtFrame(i, j, k, col)
						}
					}
					cb[row] = sum
				}
				var val float64
				if rank == 1 {
					val = cb[0] / math.Sqrt(rv*tScale)
				} else {
					// quadratic form (Cβ)' M (Cβ)
					q := 0.0
					for a := 0; a < rank; a++ {
						for b := 0; b < rank; b++ {
							q += cb[a] * covInv.At(a, b) * cb[b]
						}
					}
					val = q / (float64(rank) * rv)
				}
				stat.Set(i, j, k, val)
			}
		}
	}
	return stat, nil
}
