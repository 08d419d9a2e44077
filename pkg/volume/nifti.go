package volume

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Minimal NIfTI-1 single-file (.nii) support: enough to read the statistic,
// beta and anatomical volumes written by estimation tools, and to write
// volumes back out for tests and the template. Compressed (.nii.gz) files
// and the two-file .hdr/.img layout are not handled.

// NIfTI-1 datatype codes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
)

// niftiHeader is the 348-byte NIfTI-1 header, field for field.
type niftiHeader struct {
	SizeofHdr      int32
	DataTypeName   [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	Bitpix         int16
	SliceStart     int16
	Pixdim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XyztUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	Toffset        float32
	Glmax          int32
	Glmin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QformCode      int16
	SformCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QoffsetX       float32
	QoffsetY       float32
	QoffsetZ       float32
	SrowX          [4]float32
	SrowY          [4]float32
	SrowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

// ReadNIfTI reads a NIfTI-1 volume from a .nii file.
func ReadNIfTI(path string) (*Volume, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 348 {
		return nil, fmt.Errorf("%s: too short for a NIfTI-1 header", path)
	}

	var hdr niftiHeader
	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if hdr.SizeofHdr != 348 {
		// Other-endian file; re-read swapped.
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if hdr.SizeofHdr != 348 {
			return nil, fmt.Errorf("%s: not a NIfTI-1 file", path)
		}
	}
	if hdr.Magic[0] != 'n' || hdr.Magic[2] != '1' {
		return nil, fmt.Errorf("%s: bad NIfTI magic %q", path, hdr.Magic[:3])
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 4 {
		return nil, fmt.Errorf("%s: unsupported dimensionality %d", path, ndim)
	}
	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	frames := 1
	if ndim == 4 {
		frames = int(hdr.Dim[4])
	}
	if nx <= 0 || ny <= 0 || nz <= 0 || frames <= 0 {
		return nil, fmt.Errorf("%s: bad dimensions %dx%dx%dx%d", path, nx, ny, nz, frames)
	}

	v := New(nx, ny, nz, frames, affineFromHeader(&hdr))

	slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
	if slope == 0 {
		slope, inter = 1, 0
	}

	// The data offset is stored as a float and comes from the file; reject
	// anything pointing inside the header or past the end.
	offset := int(hdr.VoxOffset)
	if offset < 348 || offset > len(raw) {
		return nil, fmt.Errorf("%s: bad vox_offset %g", path, hdr.VoxOffset)
	}

	n := nx * ny * nz * frames
	data := raw[offset:]
	switch hdr.Datatype {
	case dtUint8:
		if len(data) < n {
			return nil, fmt.Errorf("%s: truncated data", path)
		}
		for i := 0; i < n; i++ {
			v.Data[i] = slope*float64(data[i]) + inter
		}
	case dtInt16:
		if len(data) < 2*n {
			return nil, fmt.Errorf("%s: truncated data", path)
		}
		for i := 0; i < n; i++ {
			v.Data[i] = slope*float64(int16(order.Uint16(data[2*i:]))) + inter
		}
	case dtInt32:
		if len(data) < 4*n {
			return nil, fmt.Errorf("%s: truncated data", path)
		}
		for i := 0; i < n; i++ {
			v.Data[i] = slope*float64(int32(order.Uint32(data[4*i:]))) + inter
		}
	case dtFloat32:
		if len(data) < 4*n {
			return nil, fmt.Errorf("%s: truncated data", path)
		}
		for i := 0; i < n; i++ {
			v.Data[i] = slope*float64(math.Float32frombits(order.Uint32(data[4*i:]))) + inter
		}
	case dtFloat64:
		if len(data) < 8*n {
			return nil, fmt.Errorf("%s: truncated data", path)
		}
		for i := 0; i < n; i++ {
			v.Data[i] = slope*math.Float64frombits(order.Uint64(data[8*i:])) + inter
		}
	default:
		return nil, fmt.Errorf("%s: unsupported datatype %d", path, hdr.Datatype)
	}

	return v, nil
}

// WriteNIfTI writes a volume as a little-endian float32 .nii file.
func WriteNIfTI(v *Volume, path string) error {
	var hdr niftiHeader
	hdr.SizeofHdr = 348
	hdr.Regular = 'r'
	if v.Frames > 1 {
		hdr.Dim[0] = 4
		hdr.Dim[4] = int16(v.Frames)
	} else {
		hdr.Dim[0] = 3
		hdr.Dim[4] = 1
	}
	hdr.Dim[1], hdr.Dim[2], hdr.Dim[3] = int16(v.NX), int16(v.NY), int16(v.NZ)
	for i := 5; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Datatype = dtFloat32
	hdr.Bitpix = 32
	hdr.Pixdim[0] = 1
	hdr.Pixdim[1] = float32(vecNorm(v.Affine[0][0], v.Affine[1][0], v.Affine[2][0]))
	hdr.Pixdim[2] = float32(vecNorm(v.Affine[0][1], v.Affine[1][1], v.Affine[2][1]))
	hdr.Pixdim[3] = float32(vecNorm(v.Affine[0][2], v.Affine[1][2], v.Affine[2][2]))
	hdr.VoxOffset = 352
	hdr.SclSlope = 1
	hdr.SformCode = 2 // aligned to some standard space
	for c := 0; c < 4; c++ {
		hdr.SrowX[c] = float32(v.Affine[0][c])
		hdr.SrowY[c] = float32(v.Affine[1][c])
		hdr.SrowZ[c] = float32(v.Affine[2][c])
	}
	copy(hdr.Magic[:], "n+1\x00")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	buf.Write([]byte{0, 0, 0, 0}) // extension flag

	n := v.NX * v.NY * v.NZ * v.Frames
	out := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v.Data[i])))
	}
	buf.Write(out)

	return os.WriteFile(path, buf.Bytes(), 0644)
}

func vecNorm(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// affineFromHeader builds the voxel-to-world affine, preferring the sform
// rows and falling back to a pixdim diagonal.
func affineFromHeader(hdr *niftiHeader) [4][4]float64 {
	var a [4][4]float64
	a[3][3] = 1
	if hdr.SformCode > 0 {
		for c := 0; c < 4; c++ {
			a[0][c] = float64(hdr.SrowX[c])
			a[1][c] = float64(hdr.SrowY[c])
			a[2][c] = float64(hdr.SrowZ[c])
		}
		return a
	}
	a[0][0] = float64(hdr.Pixdim[1])
	a[1][1] = float64(hdr.Pixdim[2])
	a[2][2] = float64(hdr.Pixdim[3])
	return a
}
