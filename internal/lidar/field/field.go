// Package field holds per-quantity image buffers and the two transforms
// applied to them: masked extraction from parsed columns, and the per-row
// destagger rotation.
//
// A Field is pixels_per_column rows of columns_per_frame values stored
// little-endian at row*RowStride + col*Width. Buffers are allocated once by
// New and reused across frames; nothing here allocates per packet.
package field

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

// ErrQuantityUnavailable is returned when a profile cannot supply a quantity.
var ErrQuantityUnavailable = errors.New("quantity not carried by profile")

// Field is the image buffer of one quantity.
type Field struct {
	Spec profile.ExtractSpec
	Data []byte

	rows    int
	cols    int
	scratch []byte
}

// New allocates a field for q sized by p.
func New(p *profile.Profile, q profile.Quantity) (*Field, error) {
	spec, ok := p.Spec(q)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrQuantityUnavailable, q, p.UDPProfile())
	}
	return &Field{
		Spec:    spec,
		Data:    make([]byte, spec.BufferSize),
		rows:    p.PixelsPerColumn(),
		cols:    p.ColumnsPerFrame(),
		scratch: make([]byte, spec.RowStride),
	}, nil
}

// NewFields allocates one field per quantity. With no quantities it
// allocates every quantity the profile carries.
func NewFields(p *profile.Profile, qs ...profile.Quantity) ([]*Field, error) {
	if len(qs) == 0 {
		qs = p.Quantities()
	}
	fields := make([]*Field, 0, len(qs))
	for _, q := range qs {
		f, err := New(p, q)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Quantity is the quantity stored in f.
func (f *Field) Quantity() profile.Quantity { return f.Spec.Quantity }

// Rows is pixels_per_column.
func (f *Field) Rows() int { return f.rows }

// Cols is columns_per_frame.
func (f *Field) Cols() int { return f.cols }

// Row returns the bytes of one image row.
func (f *Field) Row(row int) []byte {
	start := row * f.Spec.RowStride
	return f.Data[start : start+f.Spec.RowStride]
}

// At returns the value stored at (row, col).
func (f *Field) At(row, col int) uint32 {
	return readValue(f.Data[row*f.Spec.RowStride+col*f.Spec.Width:], f.Spec.Width)
}

// Set stores v at (row, col), truncated to the field width.
func (f *Field) Set(row, col int, v uint32) {
	writeValue(f.Data[row*f.Spec.RowStride+col*f.Spec.Width:], f.Spec.Width, v)
}

// Clear zeroes the buffer.
func (f *Field) Clear() {
	clear(f.Data)
}

// Clear zeroes every field.
func Clear(fields []*Field) {
	for _, f := range fields {
		f.Clear()
	}
}

// Copy copies src's pixels into dst. Both must hold the same quantity at
// the same geometry.
func Copy(dst, src *Field) error {
	if dst.Spec != src.Spec || dst.rows != src.rows || dst.cols != src.cols {
		return fmt.Errorf("cannot copy %s %dx%d into %s %dx%d",
			src.Quantity(), src.rows, src.cols, dst.Quantity(), dst.rows, dst.cols)
	}
	copy(dst.Data, src.Data)
	return nil
}

func readValue(b []byte, width int) uint32 {
	switch width {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

func writeValue(b []byte, width int, v uint32) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, v)
	}
}
