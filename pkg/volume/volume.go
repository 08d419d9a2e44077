// Package volume provides the volumetric data model used by the report
// renderer: in-memory volumes with voxel↔world affine transforms, a minimal
// NIfTI-1 reader/writer for persisted statistic and anatomical images, and a
// procedurally generated canonical template used when no anatomical overlay
// is available.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Volume is a 3-D image with an optional fourth (frame) dimension and a
// voxel-to-world affine. Data is stored x-fastest, matching NIfTI layout.
type Volume struct {
	NX, NY, NZ int
	Frames     int
	Data       []float64

	// Affine maps homogeneous voxel indices (i, j, k, 1) to world
	// coordinates in mm.
	Affine [4][4]float64

	inv *mat.Dense // cached inverse affine, built on first WorldToVoxel
}

// New allocates a zero-filled volume with the given dimensions and affine.
func New(nx, ny, nz, frames int, affine [4][4]float64) *Volume {
	if frames < 1 {
		frames = 1
	}
	return &Volume{
		NX: nx, NY: ny, NZ: nz, Frames: frames,
		Data:   make([]float64, nx*ny*nz*frames),
		Affine: affine,
	}
}

// index returns the flat offset of voxel (i, j, k) in frame f.
func (v *Volume) index(i, j, k, f int) int {
	return ((f*v.NZ+k)*v.NY+j)*v.NX + i
}

// In reports whether (i, j, k) lies inside the volume grid.
func (v *Volume) In(i, j, k int) bool {
	return i >= 0 && i < v.NX && j >= 0 && j < v.NY && k >= 0 && k < v.NZ
}

// At returns the value of voxel (i, j, k) in frame 0.
func (v *Volume) At(i, j, k int) float64 {
	return v.Data[v.index(i, j, k, 0)]
}

// AtFrame returns the value of voxel (i, j, k) in frame f.
func (v *Volume) AtFrame(i, j, k, f int) float64 {
	return v.Data[v.index(i, j, k, f)]
}

// Set assigns the value of voxel (i, j, k) in frame 0.
func (v *Volume) Set(i, j, k int, val float64) {
	v.Data[v.index(i, j, k, 0)] = val
}

// SetFrame assigns the value of voxel (i, j, k) in frame f.
func (v *Volume) SetFrame(i, j, k, f int, val float64) {
	v.Data[v.index(i, j, k, f)] = val
}

// VoxelToWorld maps continuous voxel coordinates to world mm.
func (v *Volume) VoxelToWorld(i, j, k float64) [3]float64 {
	var w [3]float64
	for r := 0; r < 3; r++ {
		w[r] = v.Affine[r][0]*i + v.Affine[r][1]*j + v.Affine[r][2]*k + v.Affine[r][3]
	}
	return w
}

// WorldToVoxel maps world mm to continuous voxel coordinates by inverting
// the affine. The inverse is computed once and cached.
func (v *Volume) WorldToVoxel(w [3]float64) ([3]float64, error) {
	if v.inv == nil {
		a := mat.NewDense(4, 4, nil)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				a.Set(r, c, v.Affine[r][c])
			}
		}
		var inv mat.Dense
		if err := inv.Inverse(a); err != nil {
			return [3]float64{}, fmt.Errorf("singular affine: %w", err)
		}
		v.inv = &inv
	}
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = v.inv.At(r, 0)*w[0] + v.inv.At(r, 1)*w[1] + v.inv.At(r, 2)*w[2] + v.inv.At(r, 3)
	}
	return out, nil
}

// Nearest returns the value at the voxel nearest to continuous voxel
// coordinates, and false when the position falls outside the grid.
func (v *Volume) Nearest(i, j, k float64) (float64, bool) {
	ii, jj, kk := int(i+0.5), int(j+0.5), int(k+0.5)
	if !v.In(ii, jj, kk) {
		return 0, false
	}
	return v.At(ii, jj, kk), true
}

// MinMax returns the minimum and maximum value of frame 0.
func (v *Volume) MinMax() (lo, hi float64) {
	n := v.NX * v.NY * v.NZ
	if n == 0 {
		return 0, 0
	}
	lo, hi = v.Data[0], v.Data[0]
	for _, val := range v.Data[:n] {
		if val < lo {
			lo = val
		}
		if val > hi {
			hi = val
		}
	}
	return lo, hi
}

// NumVoxels returns the voxel count of one frame.
func (v *Volume) NumVoxels() int {
	return v.NX * v.NY * v.NZ
}
