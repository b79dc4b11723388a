package parse

import "fmt"

// Column status bits.
const (
	STATUS_VALID = 0x0001 // column carries a real measurement
	STATUS_MASK  = 0xFFFF // status words are read as 16 bits
)

// ColumnRecord is one decoded column block.
type ColumnRecord struct {
	Timestamp     uint64
	MeasurementID uint16
	Status        uint16

	// Channels is a view of the pixels_per_column channel blocks inside the
	// source datagram. It must not be retained past the next receive.
	Channels []byte
}

// Valid reports whether the sensor flagged the column as a real measurement.
func (c ColumnRecord) Valid() bool {
	return c.Status&STATUS_VALID != 0
}

// Pixel returns the channel block of one row. blockSize is the profile's
// channel block size.
func (c ColumnRecord) Pixel(row, blockSize int) []byte {
	start := row * blockSize
	return c.Channels[start : start+blockSize]
}

func (c ColumnRecord) String() string {
	return fmt.Sprintf("ts=%d, status=%d, mid=%d", c.Timestamp, c.Status, c.MeasurementID)
}
