package profile

import "fmt"

// UDP lidar profile names as reported in udp_profile_lidar.
const (
	UDPProfileLegacy      = "LEGACY"
	UDPProfileSingle      = "RNG19_RFL8_SIG16_NIR16"
	UDPProfileLowDataRate = "RNG15_RFL8_NIR8"
	UDPProfileDual        = "RNG19_RFL8_SIG16_NIR16_DUAL"
)

// DefaultUDPProfile is assumed when the metadata does not name a profile.
const DefaultUDPProfile = UDPProfileSingle

// Column header field offsets shared by every profile.
const (
	TIMESTAMP_OFFSET      = 0 // 8-byte little-endian timestamp (ns)
	TIMESTAMP_SIZE        = 8
	MEASUREMENT_ID_OFFSET = 8 // 2-byte measurement id
	MEASUREMENT_ID_SIZE   = 2
	STATUS_HEADER_OFFSET  = 10 // 2-byte status word for non-legacy profiles
)

// PacketLayout holds the byte geometry of one UDP lidar profile.
type PacketLayout struct {
	Name             string
	PacketHeaderSize int // opaque bytes before the first column block
	PacketFooterSize int // opaque bytes after the last column block
	ColumnHeaderSize int
	ColumnFooterSize int
	ChannelBlockSize int // bytes per pixel per column

	// StatusInFooter selects where the column status word lives. When false
	// it is the 2 bytes at offset 10 of the column header; when true it is
	// the first 4 bytes of the column footer (read and masked to 16 bits).
	StatusInFooter bool

	fields []fieldLayout
}

type fieldLayout struct {
	quantity Quantity
	offset   int
	width    int
	mask     uint32
}

// ColumnBlockSize is the size of one column block for the given beam count.
func (l PacketLayout) ColumnBlockSize(pixelsPerColumn int) int {
	return l.ColumnHeaderSize + pixelsPerColumn*l.ChannelBlockSize + l.ColumnFooterSize
}

// PacketSize is the exact datagram length for the given geometry.
func (l PacketLayout) PacketSize(columnsPerPacket, pixelsPerColumn int) int {
	return l.PacketHeaderSize + columnsPerPacket*l.ColumnBlockSize(pixelsPerColumn) + l.PacketFooterSize
}

// StatusOffset is the offset of the status word inside a column block.
func (l PacketLayout) StatusOffset(pixelsPerColumn int) int {
	if l.StatusInFooter {
		return l.ColumnHeaderSize + pixelsPerColumn*l.ChannelBlockSize
	}
	return STATUS_HEADER_OFFSET
}

var layouts = map[string]PacketLayout{
	UDPProfileLegacy: {
		Name:             UDPProfileLegacy,
		ColumnHeaderSize: 16,
		ColumnFooterSize: 4,
		ChannelBlockSize: 12,
		StatusInFooter:   true,
		fields: []fieldLayout{
			{QuantityRange, 0, 4, 0x000FFFFF},
			{QuantityReflectivity, 4, 2, 0xFFFF},
			{QuantitySignal, 6, 2, 0xFFFF},
			{QuantityNearIR, 8, 2, 0xFFFF},
		},
	},
	UDPProfileSingle: {
		Name:             UDPProfileSingle,
		PacketHeaderSize: 32,
		PacketFooterSize: 32,
		ColumnHeaderSize: 12,
		ChannelBlockSize: 12,
		fields: []fieldLayout{
			{QuantityRange, 0, 4, 0x0007FFFF},
			{QuantityReflectivity, 4, 1, 0xFF},
			{QuantitySignal, 6, 2, 0xFFFF},
			{QuantityNearIR, 8, 2, 0xFFFF},
		},
	},
	UDPProfileLowDataRate: {
		Name:             UDPProfileLowDataRate,
		PacketHeaderSize: 32,
		PacketFooterSize: 32,
		ColumnHeaderSize: 12,
		ChannelBlockSize: 4,
		fields: []fieldLayout{
			{QuantityRange, 0, 2, 0x7FFF},
			{QuantityReflectivity, 2, 1, 0xFF},
			{QuantityNearIR, 3, 1, 0xFF},
		},
	},
	UDPProfileDual: {
		Name:             UDPProfileDual,
		PacketHeaderSize: 32,
		PacketFooterSize: 32,
		ColumnHeaderSize: 12,
		ChannelBlockSize: 16,
		fields: []fieldLayout{
			{QuantityRange, 0, 4, 0x0007FFFF},
			{QuantityReflectivity, 3, 1, 0xFF},
			{QuantityRange2, 4, 4, 0x0007FFFF},
			{QuantityReflectivity2, 7, 1, 0xFF},
			{QuantitySignal, 8, 2, 0xFFFF},
			{QuantitySignal2, 10, 2, 0xFFFF},
			{QuantityNearIR, 12, 2, 0xFFFF},
		},
	},
}

// LookupLayout returns the catalogue entry for a UDP lidar profile name.
func LookupLayout(name string) (PacketLayout, error) {
	l, ok := layouts[name]
	if !ok {
		return PacketLayout{}, fmt.Errorf("unsupported udp_profile_lidar %q", name)
	}
	return l, nil
}
