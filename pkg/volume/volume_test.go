package volume

import (
	"math"
	"testing"
)

var testAffine = [4][4]float64{
	{2, 0, 0, -10},
	{0, 2, 0, -20},
	{0, 0, 2, -30},
	{0, 0, 0, 1},
}

func TestVolumeIndexing(t *testing.T) {
	v := New(3, 4, 5, 2, testAffine)

	v.SetFrame(2, 3, 4, 1, 7.5)
	if got := v.AtFrame(2, 3, 4, 1); got != 7.5 {
		t.Errorf("AtFrame(2,3,4,1) = %g, want 7.5", got)
	}

	// x-fastest layout: (i, j, k, f) lands at ((f*NZ+k)*NY+j)*NX+i.
	v.Set(1, 2, 3, 9)
	want := ((0*5+3)*4+2)*3 + 1
	if v.Data[want] != 9 {
		t.Errorf("Set(1,2,3) did not write flat offset %d", want)
	}
}

func TestVolumeIn(t *testing.T) {
	v := New(2, 2, 2, 1, testAffine)

	if !v.In(0, 0, 0) || !v.In(1, 1, 1) {
		t.Error("In() rejects interior voxels")
	}
	if v.In(-1, 0, 0) || v.In(2, 0, 0) || v.In(0, 0, 2) {
		t.Error("In() accepts out-of-grid voxels")
	}
}

func TestWorldVoxelRoundTrip(t *testing.T) {
	v := New(8, 8, 8, 1, testAffine)

	world := v.VoxelToWorld(3, 4, 5)
	if world != [3]float64{-4, -12, -20} {
		t.Fatalf("VoxelToWorld(3,4,5) = %v, want (-4,-12,-20)", world)
	}

	vox, err := v.WorldToVoxel(world)
	if err != nil {
		t.Fatalf("WorldToVoxel() error: %v", err)
	}
	for a, want := range []float64{3, 4, 5} {
		if math.Abs(vox[a]-want) > 1e-9 {
			t.Errorf("round trip axis %d = %g, want %g", a, vox[a], want)
		}
	}
}

func TestWorldToVoxelSingularAffine(t *testing.T) {
	v := New(2, 2, 2, 1, [4][4]float64{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 1}})

	if _, err := v.WorldToVoxel([3]float64{0, 0, 0}); err == nil {
		t.Error("WorldToVoxel() accepted a singular affine")
	}
}

func TestNearest(t *testing.T) {
	v := New(2, 2, 2, 1, testAffine)
	v.Set(1, 0, 0, 3)

	if got, ok := v.Nearest(0.8, 0.2, 0.1); !ok || got != 3 {
		t.Errorf("Nearest(0.8,0.2,0.1) = (%g, %v), want (3, true)", got, ok)
	}
	if _, ok := v.Nearest(-0.9, 0, 0); ok {
		t.Error("Nearest() reported a value outside the grid")
	}
}

func TestMinMaxFirstFrameOnly(t *testing.T) {
	v := New(2, 2, 1, 2, testAffine)
	v.SetFrame(0, 0, 0, 0, -2)
	v.SetFrame(1, 1, 0, 0, 5)
	v.SetFrame(0, 0, 0, 1, 99) // second frame must not leak into MinMax

	lo, hi := v.MinMax()
	if lo != -2 || hi != 5 {
		t.Errorf("MinMax() = (%g, %g), want (-2, 5)", lo, hi)
	}
}
