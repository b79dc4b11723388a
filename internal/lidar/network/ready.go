package network

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxHandles is the number of handles a ReadySet can describe.
const MaxHandles = 64

// ReadySet is a bitmask of handle indices with a datagram pending. Bit i
// corresponds to the i-th handle passed to Wait.
type ReadySet uint64

// Has reports whether handle i is ready.
func (r ReadySet) Has(i int) bool {
	return i >= 0 && i < MaxHandles && r&(1<<uint(i)) != 0
}

// Empty reports whether no handle is ready, as after a timeout.
func (r ReadySet) Empty() bool { return r == 0 }

// Count is the number of ready handles.
func (r ReadySet) Count() int { return bits.OnesCount64(uint64(r)) }

// With returns r with handle i marked ready.
func (r ReadySet) With(i int) ReadySet { return r | 1<<uint(i) }

func (r ReadySet) String() string {
	var parts []string
	for v := uint64(r); v != 0; v &= v - 1 {
		parts = append(parts, fmt.Sprint(bits.TrailingZeros64(v)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
