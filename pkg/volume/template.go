package volume

import "math"

// CanonicalTemplate is the path marker for the bundled standard anatomical
// template. Load resolves it to a procedurally generated canonical head
// volume, so a missing anatomical overlay never aborts a report run.
const CanonicalTemplate = "canonical"

// Load reads a volume from disk, or returns the bundled standard template
// when given the CanonicalTemplate marker.
func Load(path string) (*Volume, error) {
	if path == CanonicalTemplate {
		return StandardTemplate(), nil
	}
	return ReadNIfTI(path)
}

// StandardTemplate generates the bundled canonical anatomical volume: a
// smooth ellipsoid head phantom on a 64×64×48 grid with 3 mm voxels,
// world origin at the volume center. It stands in for a subject anatomical
// when none is available; overlays rendered on it remain spatially
// interpretable because it shares the standard-space affine convention.
func StandardTemplate() *Volume {
	const (
		nx, ny, nz = 64, 64, 48
		vox        = 3.0
	)
	affine := [4][4]float64{
		{vox, 0, 0, -vox * nx / 2},
		{0, vox, 0, -vox * ny / 2},
		{0, 0, vox, -vox * nz / 2},
		{0, 0, 0, 1},
	}
	v := New(nx, ny, nz, 1, affine)

	// Outer ellipsoid with smooth falloff plus a dimmer inner core, which
	// gives slices enough contrast to anchor an overlay visually.
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				dx := (float64(i) - nx/2) / (nx / 2.2)
				dy := (float64(j) - ny/2) / (ny / 2.2)
				dz := (float64(k) - nz/2) / (nz / 2.2)
				r2 := dx*dx + dy*dy + dz*dz
				if r2 >= 1 {
					continue
				}
				val := math.Pow(1-r2, 0.5)
				core := dx*dx + dy*dy + (dz*dz)*4
				if core < 0.08 {
					val *= 0.55
				}
				v.Set(i, j, k, val)
			}
		}
	}
	return v
}
