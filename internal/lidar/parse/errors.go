package parse

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch matches any *SizeMismatchError with errors.Is.
var ErrSizeMismatch = errors.New("lidar packet size mismatch")

// SizeMismatchError reports a datagram whose length differs from the
// profile's lidar_packet_size. The packet is dropped without parsing.
type SizeMismatchError struct {
	Got  int
	Want int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("invalid packet size: expected %d, got %d", e.Want, e.Got)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}
