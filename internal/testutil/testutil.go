// Package testutil provides shared test fixtures: synthetic sensor profiles
// and lidar datagrams built to a profile's exact byte layout.
package testutil

import (
	"encoding/binary"
	"testing"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

// Geometry describes a synthetic sensor. Zero fields take the defaults noted.
type Geometry struct {
	ColumnsPerFrame  int // default 1024
	ColumnsPerPacket int // default 16
	PixelsPerColumn  int // default 16
	UDPProfile       string
	Window           []int // default [0, ColumnsPerFrame-1]
	PixelShift       []int // default a repeating 4-row stagger
	Extraction       []map[string]any
	UDPPortLidar     int // 0 binds an ephemeral port
	UDPPortIMU       int
}

func (g Geometry) withDefaults() Geometry {
	if g.ColumnsPerFrame == 0 {
		g.ColumnsPerFrame = 1024
	}
	if g.ColumnsPerPacket == 0 {
		g.ColumnsPerPacket = 16
	}
	if g.PixelsPerColumn == 0 {
		g.PixelsPerColumn = 16
	}
	if g.Window == nil {
		g.Window = []int{0, g.ColumnsPerFrame - 1}
	}
	if g.PixelShift == nil {
		g.PixelShift = make([]int, g.PixelsPerColumn)
		for i := range g.PixelShift {
			g.PixelShift[i] = []int{12, 4, -4, -12}[i%4]
		}
	}
	return g
}

// Attributes renders g as a metadata attribute tree.
func Attributes(g Geometry) profile.Attributes {
	g = g.withDefaults()
	format := map[string]any{
		"column_window":      intsToAny(g.Window),
		"columns_per_frame":  float64(g.ColumnsPerFrame),
		"columns_per_packet": float64(g.ColumnsPerPacket),
		"pixels_per_column":  float64(g.PixelsPerColumn),
		"pixel_shift_by_row": intsToAny(g.PixelShift),
	}
	if g.UDPProfile != "" {
		format["udp_profile_lidar"] = g.UDPProfile
	}
	if g.Extraction != nil {
		list := make([]any, len(g.Extraction))
		for i, e := range g.Extraction {
			list[i] = e
		}
		format["extraction"] = list
	}
	return profile.Attributes{
		"lidar_data_format": format,
		"config_params": map[string]any{
			"udp_port_lidar": float64(g.UDPPortLidar),
			"udp_port_imu":   float64(g.UDPPortIMU),
		},
	}
}

func intsToAny(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// MustProfile builds a profile from g or fails the test.
func MustProfile(tb testing.TB, g Geometry) *profile.Profile {
	tb.Helper()
	p, err := profile.BuildProfile(Attributes(g))
	if err != nil {
		tb.Fatalf("failed to build test profile: %v", err)
	}
	return p
}

// PixelFunc fills the channel block of one pixel.
type PixelFunc func(row, mid int, block []byte)

// PacketBuilder writes datagrams laid out for a profile.
type PacketBuilder struct {
	p *profile.Profile

	// Status is written to every column; defaults to the valid bit.
	Status uint16
}

// NewPacketBuilder creates a builder for p.
func NewPacketBuilder(p *profile.Profile) *PacketBuilder {
	return &PacketBuilder{p: p, Status: 0x0001}
}

// Packet builds one datagram whose columns carry measurement ids
// firstMID, firstMID+1, ... Each column's timestamp is 1000*mid.
func (b *PacketBuilder) Packet(firstMID int, pixel PixelFunc) []byte {
	mids := make([]int, b.p.ColumnsPerPacket())
	for i := range mids {
		mids[i] = firstMID + i
	}
	return b.PacketWithMIDs(mids, pixel)
}

// PacketWithMIDs builds one datagram with an explicit measurement id per
// column. len(mids) must equal columns_per_packet.
func (b *PacketBuilder) PacketWithMIDs(mids []int, pixel PixelFunc) []byte {
	layout := b.p.Layout()
	data := make([]byte, b.p.LidarPacketSize())
	for i := range data[:layout.PacketHeaderSize] {
		data[i] = 0xA5
	}
	offset := layout.PacketHeaderSize
	for _, mid := range mids {
		col := data[offset : offset+b.p.ColumnBlockSize()]
		binary.LittleEndian.PutUint64(col[profile.TIMESTAMP_OFFSET:], uint64(mid)*1000)
		binary.LittleEndian.PutUint16(col[profile.MEASUREMENT_ID_OFFSET:], uint16(mid))
		if layout.StatusInFooter {
			binary.LittleEndian.PutUint32(col[b.p.StatusOffset():], 0xFFFF0000|uint32(b.Status))
		} else {
			binary.LittleEndian.PutUint16(col[b.p.StatusOffset():], b.Status)
		}
		if pixel != nil {
			for row := 0; row < b.p.PixelsPerColumn(); row++ {
				start := layout.ColumnHeaderSize + row*layout.ChannelBlockSize
				pixel(row, mid, col[start:start+layout.ChannelBlockSize])
			}
		}
		offset += b.p.ColumnBlockSize()
	}
	return data
}

// Frame builds the datagrams covering measurement ids 0..columns_per_frame-1
// in order.
func (b *PacketBuilder) Frame(pixel PixelFunc) [][]byte {
	var packets [][]byte
	for mid := 0; mid < b.p.ColumnsPerFrame(); mid += b.p.ColumnsPerPacket() {
		packets = append(packets, b.Packet(mid, pixel))
	}
	return packets
}

// PutRaw stores the low width bytes of v little-endian at block[offset:].
func PutRaw(block []byte, offset, width int, v uint32) {
	switch width {
	case 1:
		block[offset] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(block[offset:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(block[offset:], v)
	}
}

// QuantityPixel returns a PixelFunc that writes value(row, mid) into the
// channel slot of q, and 0xFF into every other byte so masking and
// neighbouring slots are exercised.
func QuantityPixel(p *profile.Profile, q profile.Quantity, value func(row, mid int) uint32) PixelFunc {
	spec, ok := p.Spec(q)
	return func(row, mid int, block []byte) {
		for i := range block {
			block[i] = 0xFF
		}
		if ok {
			PutRaw(block, spec.Offset, spec.Width, value(row, mid))
		}
	}
}
