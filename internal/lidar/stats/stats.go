// Package stats accumulates per-interval receive and frame statistics for a
// lidar pipeline.
package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KenthJohan/ouster-sdk/internal/timeutil"
)

// PacketStats tracks packet and frame statistics with thread-safe operations.
type PacketStats struct {
	mu    sync.Mutex
	clock timeutil.Clock

	packetCount    int64
	byteCount      int64
	sizeMismatches int64
	readErrors     int64
	imuCount       int64
	forwardDropped int64
	frameCount     int64
	truncations    int64
	anomalies      int64
	losses         []float64
	lastReset      time.Time
}

// Snapshot is the statistics of one interval.
type Snapshot struct {
	Packets        int64
	Bytes          int64
	SizeMismatches int64
	ReadErrors     int64
	IMUPackets     int64
	ForwardDropped int64
	Frames         int64
	Truncations    int64
	Anomalies      int64
	MIDLossMean    float64
	MIDLossStdDev  float64
	MIDLossMax     float64
	Duration       time.Duration
}

// NewPacketStats creates a new PacketStats. A nil clock uses the real clock.
func NewPacketStats(clock timeutil.Clock) *PacketStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PacketStats{
		clock:     clock,
		lastReset: clock.Now(),
	}
}

// AddPacket counts one lidar datagram of the given size.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddSizeMismatch counts a datagram dropped for having the wrong length.
func (ps *PacketStats) AddSizeMismatch() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.sizeMismatches++
}

// AddReadError counts a hard receive failure.
func (ps *PacketStats) AddReadError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.readErrors++
}

// AddIMUPacket counts one IMU datagram.
func (ps *PacketStats) AddIMUPacket() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.imuCount++
}

// AddForwardDropped counts a datagram the forwarder could not queue.
func (ps *PacketStats) AddForwardDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.forwardDropped++
}

// AddFrame records a completed frame and its measurement id loss.
func (ps *PacketStats) AddFrame(midLoss int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.frameCount++
	ps.losses = append(ps.losses, float64(midLoss))
}

// AddSequenceAnomalies records truncated sweeps and out-of-frame ids.
func (ps *PacketStats) AddSequenceAnomalies(truncations, anomalies int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.truncations += int64(truncations)
	ps.anomalies += int64(anomalies)
}

// Elapsed is the time since the last reset.
func (ps *PacketStats) Elapsed() time.Duration {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.clock.Since(ps.lastReset)
}

// GetAndReset returns the current interval and starts a new one.
func (ps *PacketStats) GetAndReset() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.clock.Now()
	s := Snapshot{
		Packets:        ps.packetCount,
		Bytes:          ps.byteCount,
		SizeMismatches: ps.sizeMismatches,
		ReadErrors:     ps.readErrors,
		IMUPackets:     ps.imuCount,
		ForwardDropped: ps.forwardDropped,
		Frames:         ps.frameCount,
		Truncations:    ps.truncations,
		Anomalies:      ps.anomalies,
		Duration:       now.Sub(ps.lastReset),
	}
	if len(ps.losses) > 0 {
		s.MIDLossMean = stat.Mean(ps.losses, nil)
		if len(ps.losses) > 1 {
			s.MIDLossStdDev = stat.StdDev(ps.losses, nil)
		}
		s.MIDLossMax = ps.losses[0]
		for _, l := range ps.losses[1:] {
			s.MIDLossMax = math.Max(s.MIDLossMax, l)
		}
	}

	ps.packetCount = 0
	ps.byteCount = 0
	ps.sizeMismatches = 0
	ps.readErrors = 0
	ps.imuCount = 0
	ps.forwardDropped = 0
	ps.frameCount = 0
	ps.truncations = 0
	ps.anomalies = 0
	ps.losses = ps.losses[:0]
	ps.lastReset = now
	tracef("interval of %v closed: %d packets, %d frames", s.Duration, s.Packets, s.Frames)

	return s
}

// LogStats writes the current interval to the diag stream, and to the ops
// stream when packets were lost, then resets the counters.
func (ps *PacketStats) LogStats() Snapshot {
	s := ps.GetAndReset()
	if s.Packets == 0 && s.SizeMismatches == 0 && s.ReadErrors == 0 {
		return s
	}
	secs := s.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("Lidar stats (/sec): %.2f MB, %.1f packets, %.2f frames (%s packets total)",
		float64(s.Bytes)/secs/(1024*1024), float64(s.Packets)/secs, float64(s.Frames)/secs,
		FormatWithCommas(s.Packets))
	if s.Frames > 0 {
		msg += fmt.Sprintf(", mid_loss mean %.1f sd %.1f max %.0f", s.MIDLossMean, s.MIDLossStdDev, s.MIDLossMax)
	}
	if s.IMUPackets > 0 {
		msg += fmt.Sprintf(", %d imu", s.IMUPackets)
	}
	diagf("%s", msg)

	if s.SizeMismatches > 0 || s.ReadErrors > 0 || s.ForwardDropped > 0 || s.Truncations > 0 {
		opsf("%d size mismatches, %d read errors, %d dropped on forward, %d truncated frames, %d out-of-frame columns",
			s.SizeMismatches, s.ReadErrors, s.ForwardDropped, s.Truncations, s.Anomalies)
	}
	return s
}

// FormatWithCommas formats a number with thousands separators.
func FormatWithCommas(n int64) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
