package field

import "github.com/KenthJohan/ouster-sdk/internal/lidar/profile"

// Destagger rotates every row of every field by the profile's per-row pixel
// shift. Forward rotation moves column c to (c+shift) mod cols; inverse
// undoes it.
func Destagger(fields []*Field, p *profile.Profile, inverse bool) {
	for _, f := range fields {
		for row := 0; row < f.rows; row++ {
			DestaggerRow(f.Row(row), f.scratch, f.Spec.Width, p.PixelShift(row), inverse)
		}
	}
}

// DestaggerRow rotates one row of width-byte values in place through
// scratch, which must hold at least len(row) bytes.
func DestaggerRow(row, scratch []byte, width, shift int, inverse bool) {
	cols := len(row) / width
	if cols == 0 {
		return
	}
	if inverse {
		shift = -shift
	}
	offset := ((shift % cols) + cols) % cols
	if offset == 0 {
		return
	}
	split := (cols - offset) * width
	copy(scratch, row)
	copy(row[offset*width:], scratch[:split])
	copy(row[:offset*width], scratch[split:len(row)])
}
