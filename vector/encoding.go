package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodePoint encodes coordinates into a BLOB representation suitable for
// storage in SQLite: a little-endian sequence of IEEE 754 float64 values
// without a length prefix; the dimension is derived from the BLOB size.
func EncodePoint(coords []float64) []byte {
	if len(coords) == 0 {
		return nil
	}
	b := make([]byte, len(coords)*8)
	for i, v := range coords {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

// DecodePoint decodes a BLOB produced by EncodePoint.
func DecodePoint(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("vector: invalid point blob length %d (not multiple of 8)", len(b))
	}
	n := len(b) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}

// EncodeMatrix encodes a set of equally sized rows (e.g. a centroid set) as
// dim(uint32), n(uint32) followed by n*dim float64 values.
func EncodeMatrix(rows [][]float64) ([]byte, error) {
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}
	b := make([]byte, 8+len(rows)*dim*8)
	binary.LittleEndian.PutUint32(b[0:], uint32(dim))
	binary.LittleEndian.PutUint32(b[4:], uint32(len(rows)))
	off := 8
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("vector: matrix row %d has dim %d, want %d", i, len(row), dim)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint64(b[off:], math.Float64bits(v))
			off += 8
		}
	}
	return b, nil
}

// DecodeMatrix decodes a BLOB produced by EncodeMatrix.
func DecodeMatrix(b []byte) ([][]float64, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("vector: invalid matrix blob length %d", len(b))
	}
	dim := uint64(binary.LittleEndian.Uint32(b[0:]))
	n := uint64(binary.LittleEndian.Uint32(b[4:]))
	if dim == 0 && n > 0 {
		return nil, fmt.Errorf("vector: matrix blob has %d rows of dimension 0", n)
	}
	values := uint64(len(b)-8) / 8
	if uint64(len(b)-8)%8 != 0 || (dim != 0 && n > values/dim) || n*dim != values {
		return nil, fmt.Errorf("vector: matrix blob length %d does not match %dx%d", len(b), n, dim)
	}
	rows := make([][]float64, n)
	off := 8
	for i := range rows {
		row := make([]float64, int(dim))
		for j := range row {
			row[j] = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
			off += 8
		}
		rows[i] = row
	}
	return rows, nil
}
