package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/neuroglm/physioreport/pkg/volume"
)

// Page geometry in PostScript points (A4 portrait).
const (
	pageWidth  = 595.0
	pageHeight = 842.0
	panelSize  = 250.0
	marginLeft = 40.0
)

// pageMeta carries the per-contrast annotations printed on a page.
type pageMeta struct {
	contrast  string
	kind      string
	spec      ThresholdSpec
	threshold float64
	peak      float64
	above     int
	extremum  [3]float64
}

// panelAxes names the two in-plane world axes and the through-plane axis of
// an orthogonal view, as indices into a world coordinate.
type panelAxes struct {
	label string
	h, v  int // in-plane axes
	fixed int // through-plane axis
}

var orthoPanels = []panelAxes{
	{label: "axial", h: 0, v: 1, fixed: 2},
	{label: "coronal", h: 0, v: 2, fixed: 1},
	{label: "sagittal", h: 1, v: 2, fixed: 0},
}

// composePage draws one report page: three orthogonal slice panels through
// the display coordinate with the thresholded statistic overlaid on the
// anatomical volume, plus threshold and peak annotations.
func composePage(anat, stat *volume.Volume, coord [3]float64,
	opts RenderOptions, meta pageMeta) ([]byte, error) {

	w := &psWriter{}

	title := opts.Title
	if title == "" {
		title = meta.contrast
	}
	w.setRGB(0, 0, 0)
	w.text(marginLeft, pageHeight-50, 14, title)
	w.text(marginLeft, pageHeight-68, 9, fmt.Sprintf("%s-contrast, %s", meta.kind, meta.spec.Describe()))

	anatLo, anatHi := anat.MinMax()
	if anatHi <= anatLo {
		anatHi = anatLo + 1
	}

	positions := [][2]float64{
		{marginLeft, pageHeight - 350},
		{marginLeft + panelSize + 25, pageHeight - 350},
		{marginLeft, pageHeight - 630},
	}
	for n, axes := range orthoPanels {
		if err := drawPanel(w, positions[n][0], positions[n][1], anat, stat, coord, axes, opts, meta, anatLo, anatHi); err != nil {
			return nil, err
		}
	}

	// Annotation block beside the sagittal panel.
	tx := marginLeft + panelSize + 25.0
	ty := pageHeight - 420.0
	w.setRGB(0, 0, 0)
	lines := []string{
		fmt.Sprintf("statistic threshold: %.2f", meta.threshold),
		fmt.Sprintf("suprathreshold voxels: %d", meta.above),
		fmt.Sprintf("peak %s = %.2f at [%.0f %.0f %.0f] mm", meta.kind, meta.peak,
			meta.extremum[0], meta.extremum[1], meta.extremum[2]),
		fmt.Sprintf("crosshair at [%.0f %.0f %.0f] mm", coord[0], coord[1], coord[2]),
	}
	if meta.spec.ColorCap > 0 {
		lines = append(lines, fmt.Sprintf("color scale capped at %.2f", meta.spec.ColorCap))
	}
	for i, s := range lines {
		w.text(tx, ty-float64(i)*14, 9, s)
	}

	if opts.Footer != "" {
		w.setRGB(0.4, 0.4, 0.4)
		w.text(marginLeft, 30, 7, opts.Footer)
	}

	return w.bytes(), nil
}

// drawPanel renders one orthogonal slice panel at page position (x0, y0).
func drawPanel(w *psWriter, x0, y0 float64, anat, stat *volume.Volume,
	coord [3]float64, axes panelAxes, opts RenderOptions, meta pageMeta,
	anatLo, anatHi float64) error {

	loH, hiH := worldExtent(anat, axes.h)
	loV, hiV := worldExtent(anat, axes.v)
	if opts.FOV > 0 {
		loH, hiH = coord[axes.h]-opts.FOV, coord[axes.h]+opts.FOV
		loV, hiV = coord[axes.v]-opts.FOV, coord[axes.v]+opts.FOV
	}
	if hiH <= loH || hiV <= loV {
		return fmt.Errorf("degenerate %s panel extent", axes.label)
	}

	// Voxel-aligned slicing steps at the anatomical voxel size so cells
	// land on voxel centers; world-aligned resampling uses a fixed raster.
	stepH := voxelStep(anat, axes.h)
	stepV := voxelStep(anat, axes.v)
	if opts.WorldAligned {
		stepH = (hiH - loH) / 96
		stepV = (hiV - loV) / 96
	}

	scale := panelSize / math.Max(hiH-loH, hiV-loV)

	capVal := meta.spec.ColorCap
	if capVal <= meta.threshold {
		capVal = math.Max(meta.peak, meta.threshold+1e-6)
	}

	for wv := loV; wv < hiV; wv += stepV {
		for wh := loH; wh < hiH; wh += stepH {
			var world [3]float64
			world[axes.h] = wh + stepH/2
			world[axes.v] = wv + stepV/2
			world[axes.fixed] = coord[axes.fixed]

			av, ok := sampleWorld(anat, world)
			if !ok {
				continue
			}
			gray := 0.85 * clamp01((av-anatLo)/(anatHi-anatLo))
			r, g, b := gray, gray, gray

			if sv, ok := sampleWorld(stat, world); ok && !math.IsNaN(sv) && sv >= meta.threshold {
				u := clamp01((sv - meta.threshold) / (capVal - meta.threshold))
				r, g, b = 1, 0.15+0.75*u, 0.05
			}

			px := x0 + (wh-loH)*scale
			py := y0 + (wv-loV)*scale
			w.setRGB(r, g, b)
			w.rect(px, py, stepH*scale+0.1, stepV*scale+0.1)
		}
	}

	// Panel frame and label.
	w.setRGB(0, 0, 0)
	w.frame(x0, y0, (hiH-loH)*scale, (hiV-loV)*scale)
	w.text(x0, y0-12, 8, fmt.Sprintf("%s (%c = %.0f mm)", axes.label, "xyz"[axes.fixed], coord[axes.fixed]))

	if !opts.HideCrosshair {
		cx := x0 + (coord[axes.h]-loH)*scale
		cy := y0 + (coord[axes.v]-loV)*scale
		w.setRGB(0.1, 0.9, 0.3)
		if cx >= x0 && cx <= x0+(hiH-loH)*scale {
			w.line(cx, y0, cx, y0+(hiV-loV)*scale)
		}
		if cy >= y0 && cy <= y0+(hiV-loV)*scale {
			w.line(x0, cy, x0+(hiH-loH)*scale, cy)
		}
	}
	return nil
}

// sampleWorld samples a volume at a world coordinate by nearest neighbor.
func sampleWorld(v *volume.Volume, world [3]float64) (float64, bool) {
	vox, err := v.WorldToVoxel(world)
	if err != nil {
		return 0, false
	}
	return v.Nearest(vox[0], vox[1], vox[2])
}

// worldExtent returns the min and max world coordinate of a volume along
// one world axis, from the eight grid corners.
func worldExtent(v *volume.Volume, axis int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, ci := range []float64{0, float64(v.NX - 1)} {
		for _, cj := range []float64{0, float64(v.NY - 1)} {
			for _, ck := range []float64{0, float64(v.NZ - 1)} {
				w := v.VoxelToWorld(ci, cj, ck)
				lo = math.Min(lo, w[axis])
				hi = math.Max(hi, w[axis])
			}
		}
	}
	return lo, hi
}

// voxelStep returns the world-space size of one voxel along a world axis.
func voxelStep(v *volume.Volume, axis int) float64 {
	s := math.Abs(v.Affine[axis][0]) + math.Abs(v.Affine[axis][1]) + math.Abs(v.Affine[axis][2])
	if s <= 0 {
		return 1
	}
	return s
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// psWriter accumulates PostScript drawing operators for one page body.
type psWriter struct {
	buf bytes.Buffer
}

func (w *psWriter) setRGB(r, g, b float64) {
	fmt.Fprintf(&w.buf, "%.3f %.3f %.3f setrgbcolor\n", r, g, b)
}

func (w *psWriter) rect(x, y, wd, ht float64) {
	fmt.Fprintf(&w.buf, "%.2f %.2f %.2f %.2f rectfill\n", x, y, wd, ht)
}

func (w *psWriter) frame(x, y, wd, ht float64) {
	fmt.Fprintf(&w.buf, "0.5 setlinewidth %.2f %.2f %.2f %.2f rectstroke\n", x, y, wd, ht)
}

func (w *psWriter) line(x1, y1, x2, y2 float64) {
	fmt.Fprintf(&w.buf, "0.6 setlinewidth newpath %.2f %.2f moveto %.2f %.2f lineto stroke\n", x1, y1, x2, y2)
}

func (w *psWriter) text(x, y, size float64, s string) {
	fmt.Fprintf(&w.buf, "/Helvetica findfont %.1f scalefont setfont %.2f %.2f moveto (%s) show\n",
		size, x, y, psEscape(s))
}

func (w *psWriter) bytes() []byte {
	return w.buf.Bytes()
}

// psEscape escapes the characters PostScript strings reserve.
func psEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
