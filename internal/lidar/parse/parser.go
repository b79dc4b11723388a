package parse

import (
	"encoding/binary"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

// ParsePacket decodes one lidar datagram into column records, appending to
// out[:0] so a caller that passes a slice with capacity columns_per_packet
// never allocates. A datagram whose length differs from the profile's
// lidar_packet_size yields a *SizeMismatchError and no records.
func ParsePacket(data []byte, p *profile.Profile, out []ColumnRecord) ([]ColumnRecord, error) {
	out = out[:0]
	if len(data) != p.LidarPacketSize() {
		return out, &SizeMismatchError{Got: len(data), Want: p.LidarPacketSize()}
	}

	layout := p.Layout()
	blockSize := p.ColumnBlockSize()
	channelStart := layout.ColumnHeaderSize
	channelEnd := channelStart + p.PixelsPerColumn()*layout.ChannelBlockSize
	statusOffset := p.StatusOffset()

	offset := layout.PacketHeaderSize
	for i := 0; i < p.ColumnsPerPacket(); i++ {
		col := data[offset : offset+blockSize]
		out = append(out, ColumnRecord{
			Timestamp:     binary.LittleEndian.Uint64(col[profile.TIMESTAMP_OFFSET:]),
			MeasurementID: binary.LittleEndian.Uint16(col[profile.MEASUREMENT_ID_OFFSET:]),
			Status:        readStatus(col, statusOffset, layout.StatusInFooter),
			Channels:      col[channelStart:channelEnd:channelEnd],
		})
		offset += blockSize
	}
	return out, nil
}

// readStatus reads the column status word. The legacy footer holds a
// 32-bit word of which only the low 16 bits are defined.
func readStatus(col []byte, offset int, wide bool) uint16 {
	if wide {
		return uint16(binary.LittleEndian.Uint32(col[offset:]) & STATUS_MASK)
	}
	return binary.LittleEndian.Uint16(col[offset:]) & STATUS_MASK
}

// Parser wraps ParsePacket with a reusable record slice and packet counters.
// It is not safe for concurrent use.
type Parser struct {
	profile      *profile.Profile
	columns      []ColumnRecord
	packetCount  int
	droppedCount int
	debugPackets int
	logDrops     int
}

// DefaultLoggedDrops is how many rejected datagrams a Parser reports on the
// ops stream before going quiet.
const DefaultLoggedDrops = 10

// NewParser creates a parser whose record slice is sized for the profile.
func NewParser(p *profile.Profile) *Parser {
	return &Parser{
		profile:      p,
		columns:      make([]ColumnRecord, 0, p.ColumnsPerPacket()),
		debugPackets: 10,
		logDrops:     DefaultLoggedDrops,
	}
}

// SetDebugPackets sets how many initial packets are traced in full.
func (p *Parser) SetDebugPackets(count int) {
	p.debugPackets = count
}

// ParsePacket decodes data into the parser's record slice. The returned
// slice is overwritten by the next call.
func (p *Parser) ParsePacket(data []byte) ([]ColumnRecord, error) {
	p.packetCount++
	cols, err := ParsePacket(data, p.profile, p.columns)
	if err != nil {
		p.droppedCount++
		switch {
		case p.droppedCount <= p.logDrops:
			opsf("packet %d dropped: %v", p.packetCount, err)
		case p.droppedCount == p.logDrops+1:
			diagf("more than %d packets dropped; further drops are only counted", p.logDrops)
		}
		return nil, err
	}
	p.columns = cols

	if p.packetCount <= p.debugPackets && len(cols) > 0 {
		first, last := cols[0], cols[len(cols)-1]
		tracef("packet %d: %d columns, mid %d..%d, ts %d..%d, first status=0x%04x",
			p.packetCount, len(cols), first.MeasurementID, last.MeasurementID,
			first.Timestamp, last.Timestamp, first.Status)
	}
	return cols, nil
}

// PacketCount is the number of datagrams offered to ParsePacket.
func (p *Parser) PacketCount() int { return p.packetCount }

// DroppedCount is the number of datagrams rejected by ParsePacket.
func (p *Parser) DroppedCount() int { return p.droppedCount }
