package vector

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeDecodePoint_RoundTrip(t *testing.T) {
	orig := []float64{0.0, 1.5, -2.25, 3.75, math.Inf(1)}

	decoded, err := DecodePoint(EncodePoint(orig))
	if err != nil {
		t.Fatalf("DecodePoint failed: %v", err)
	}
	if len(decoded) != len(orig) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(orig))
	}
	for i := range orig {
		if got, want := decoded[i], orig[i]; got != want {
			t.Fatalf("decoded[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestDecodePoint_InvalidLength(t *testing.T) {
	if _, err := DecodePoint([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
	vec, err := DecodePoint(nil)
	if err != nil || len(vec) != 0 {
		t.Fatalf("DecodePoint(nil) = %v, %v; want empty, nil", vec, err)
	}
}

func TestEncodeDecodeMatrix(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	b, err := EncodeMatrix(rows)
	if err != nil {
		t.Fatalf("EncodeMatrix failed: %v", err)
	}
	got, err := DecodeMatrix(b)
	if err != nil {
		t.Fatalf("DecodeMatrix failed: %v", err)
	}
	if len(got) != 3 || got[2][1] != 6 {
		t.Fatalf("DecodeMatrix = %v, want %v", got, rows)
	}
	if _, err := EncodeMatrix([][]float64{{1, 2}, {3}}); err == nil {
		t.Fatalf("expected ragged matrix error")
	}
	empty, err := EncodeMatrix(nil)
	if err != nil {
		t.Fatalf("EncodeMatrix(nil) failed: %v", err)
	}
	if rows, err := DecodeMatrix(empty); err != nil || len(rows) != 0 {
		t.Fatalf("DecodeMatrix(empty) = %v, %v", rows, err)
	}
}

func matrixHeader(dim, n uint32, values int) []byte {
	b := make([]byte, 8+values*8)
	binary.LittleEndian.PutUint32(b[0:], dim)
	binary.LittleEndian.PutUint32(b[4:], n)
	return b
}

func TestDecodeMatrix_InvalidHeader(t *testing.T) {
	testCases := []struct {
		description string
		blob        []byte
	}{
		{description: "rows without dimension", blob: matrixHeader(0, 5, 0)},
		{description: "huge header on short blob", blob: matrixHeader(1<<31, 1<<30, 0)},
		{description: "max header", blob: matrixHeader(math.MaxUint32, math.MaxUint32, 1)},
		{description: "payload too short", blob: matrixHeader(2, 3, 5)},
		{description: "payload too long", blob: matrixHeader(2, 1, 3)},
		{description: "partial value", blob: append(matrixHeader(1, 1, 1), 0)},
	}
	for _, testCase := range testCases {
		if rows, err := DecodeMatrix(testCase.blob); err == nil {
			t.Fatalf("%s: expected error, got %d rows", testCase.description, len(rows))
		}
	}
	rows, err := DecodeMatrix(matrixHeader(3, 0, 0))
	if err != nil || len(rows) != 0 {
		t.Fatalf("DecodeMatrix(3x0) = %v, %v; want empty, nil", rows, err)
	}
}
