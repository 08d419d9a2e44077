package volume

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestNIfTIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.nii")

	v := New(3, 4, 5, 2, testAffine)
	for f := 0; f < 2; f++ {
		for k := 0; k < 5; k++ {
			for j := 0; j < 4; j++ {
				for i := 0; i < 3; i++ {
					v.SetFrame(i, j, k, f, float64(i)+10*float64(j)+100*float64(k)+1000*float64(f))
				}
			}
		}
	}

	if err := WriteNIfTI(v, path); err != nil {
		t.Fatalf("WriteNIfTI() error: %v", err)
	}
	got, err := ReadNIfTI(path)
	if err != nil {
		t.Fatalf("ReadNIfTI() error: %v", err)
	}

	if got.NX != 3 || got.NY != 4 || got.NZ != 5 || got.Frames != 2 {
		t.Fatalf("dimensions = %dx%dx%dx%d, want 3x4x5x2", got.NX, got.NY, got.NZ, got.Frames)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if math.Abs(got.Affine[r][c]-v.Affine[r][c]) > 1e-5 {
				t.Fatalf("affine[%d][%d] = %g, want %g", r, c, got.Affine[r][c], v.Affine[r][c])
			}
		}
	}
	for i := range v.Data {
		if math.Abs(got.Data[i]-v.Data[i]) > 1e-2 {
			t.Fatalf("data[%d] = %g, want %g", i, got.Data[i], v.Data[i])
		}
	}
}

func TestNIfTIThreeDimensional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol3d.nii")

	v := New(2, 3, 4, 1, testAffine)
	v.Set(1, 2, 3, 42)
	if err := WriteNIfTI(v, path); err != nil {
		t.Fatalf("WriteNIfTI() error: %v", err)
	}

	got, err := ReadNIfTI(path)
	if err != nil {
		t.Fatalf("ReadNIfTI() error: %v", err)
	}
	if got.Frames != 1 {
		t.Errorf("Frames = %d, want 1", got.Frames)
	}
	if got.At(1, 2, 3) != 42 {
		t.Errorf("At(1,2,3) = %g, want 42", got.At(1, 2, 3))
	}
}

func TestReadNIfTIRejectsGarbage(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.nii")
	if err := os.WriteFile(short, []byte("not a volume"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadNIfTI(short); err == nil {
		t.Error("ReadNIfTI() accepted a truncated file")
	}

	junk := filepath.Join(dir, "junk.nii")
	if err := os.WriteFile(junk, make([]byte, 400), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadNIfTI(junk); err == nil {
		t.Error("ReadNIfTI() accepted a zero-filled header")
	}

	// An otherwise valid file whose vox_offset points past the end or into
	// the header must come back as an error, not a panic.
	valid := filepath.Join(dir, "valid.nii")
	if err := WriteNIfTI(New(2, 2, 2, 1, testAffine), valid); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(valid)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		name   string
		offset float32
	}{
		{"past end of file", 100000},
		{"inside header", 100},
		{"negative", -4},
	} {
		t.Run(tt.name, func(t *testing.T) {
			patched := make([]byte, len(raw))
			copy(patched, raw)
			binary.LittleEndian.PutUint32(patched[108:], math.Float32bits(tt.offset))
			path := filepath.Join(dir, "patched.nii")
			if err := os.WriteFile(path, patched, 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadNIfTI(path); err == nil {
				t.Errorf("ReadNIfTI() accepted vox_offset %g", tt.offset)
			}
		})
	}
}
