// Package frame tracks measurement id sequences across packets and decides
// when a sweep is complete.
package frame

import (
	"math/bits"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/parse"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

// Event describes one completed sweep.
type Event struct {
	FrameID   int
	MIDLoss   int    // window measurement ids never observed this sweep
	Timestamp uint64 // timestamp of the column that closed the sweep
}

// Tracker follows measurement ids for one sensor stream. It is not safe for
// concurrent use.
type Tracker struct {
	window          profile.ColumnWindow
	columnsPerFrame int

	seen     []uint64 // bitset over window offsets
	observed int
	lastMID  int
	complete bool
	event    Event

	frameID     int
	truncations int
	anomalies   int
}

// NewTracker creates a tracker for p's column window.
func NewTracker(p *profile.Profile) *Tracker {
	w := p.ColumnWindow()
	return &Tracker{
		window:          w,
		columnsPerFrame: p.ColumnsPerFrame(),
		seen:            make([]uint64, (w.Len()+63)/64),
		lastMID:         -1,
	}
}

// Update records the columns of one packet and reports whether the packet
// closed the sweep, meaning the greatest window measurement id in it equals
// the window maximum. Ids outside the column window do not move the
// sequence. Once a sweep is complete the next Update starts a new one if
// Reset has not been called.
//
// A packet whose greatest window id is below the previous packet's while the
// sweep is open counts as a truncation: the ids seen so far are forgotten
// and the packet opens the next sweep. Ids at or past columns_per_frame
// count as anomalies and are otherwise ignored.
func (t *Tracker) Update(cols []parse.ColumnRecord) bool {
	if t.complete {
		t.Reset()
	}

	packetMax := -1
	var ts uint64
	for i := range cols {
		mid := int(cols[i].MeasurementID)
		if mid >= t.columnsPerFrame {
			t.anomalies++
			continue
		}
		if t.window.Contains(mid) && mid > packetMax {
			packetMax = mid
			ts = cols[i].Timestamp
		}
	}
	if packetMax < 0 {
		return false
	}

	if t.lastMID >= 0 && packetMax < t.lastMID {
		t.truncations++
		clear(t.seen)
		t.observed = 0
	}
	t.lastMID = packetMax

	for i := range cols {
		mid := int(cols[i].MeasurementID)
		if mid >= t.columnsPerFrame || !t.window.Contains(mid) {
			continue
		}
		off := mid - t.window.Min
		word, bit := off/64, uint64(1)<<(off%64)
		if t.seen[word]&bit == 0 {
			t.seen[word] |= bit
			t.observed++
		}
	}

	if t.lastMID != t.window.Max {
		return false
	}
	t.frameID++
	t.complete = true
	t.event = Event{
		FrameID:   t.frameID,
		MIDLoss:   t.window.Len() - t.observed,
		Timestamp: ts,
	}
	return true
}

// Complete reports whether the current sweep has closed.
func (t *Tracker) Complete() bool { return t.complete }

// Event returns the most recently completed sweep.
func (t *Tracker) Event() Event { return t.event }

// Reset clears the per-sweep sequence state. The frame id and anomaly
// counters are kept.
func (t *Tracker) Reset() {
	clear(t.seen)
	t.observed = 0
	t.lastMID = -1
	t.complete = false
}

// LastMID is the greatest window measurement id of the last packet that
// carried one, or -1 after a reset.
func (t *Tracker) LastMID() int { return t.lastMID }

// FrameID is the number of completed sweeps.
func (t *Tracker) FrameID() int { return t.frameID }

// Observed counts distinct window ids seen in the open sweep.
func (t *Tracker) Observed() int { return t.observed }

// Truncations counts sweeps that restarted before reaching the window
// maximum.
func (t *Tracker) Truncations() int { return t.truncations }

// Anomalies counts column records whose id was outside the frame.
func (t *Tracker) Anomalies() int { return t.anomalies }

// Missing returns the window ids not yet observed in the open sweep, up to
// limit entries.
func (t *Tracker) Missing(limit int) []int {
	var out []int
	for word, v := range t.seen {
		free := ^v
		for free != 0 && len(out) < limit {
			off := word*64 + bits.TrailingZeros64(free)
			if off >= t.window.Len() {
				return out
			}
			out = append(out, t.window.Min+off)
			free &= free - 1
		}
	}
	return out
}
