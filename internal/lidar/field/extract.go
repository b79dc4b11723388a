package field

import (
	"github.com/KenthJohan/ouster-sdk/internal/lidar/parse"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

// Extract copies every field's quantity out of cols into the image column
// given by each record's measurement id, applying the field mask. Columns
// whose measurement id is not below columns_per_frame are skipped and
// counted in the return value.
func Extract(cols []parse.ColumnRecord, fields []*Field, p *profile.Profile) (skipped int) {
	blockSize := p.ChannelBlockSize()
	rows := p.PixelsPerColumn()
	cpf := p.ColumnsPerFrame()

	for i := range cols {
		mid := int(cols[i].MeasurementID)
		if mid >= cpf {
			skipped++
			continue
		}
		channels := cols[i].Channels
		for _, f := range fields {
			spec := &f.Spec
			full := spec.FullMask()
			dst := mid * spec.Width
			src := spec.Offset
			for row := 0; row < rows; row++ {
				v := readValue(channels[src:], spec.Width)
				if !full {
					v &= spec.Mask
				}
				writeValue(f.Data[dst:], spec.Width, v)
				dst += spec.RowStride
				src += blockSize
			}
		}
	}
	return skipped
}
