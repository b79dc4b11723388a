package pipeline

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/field"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/network"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/parse"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
	"github.com/KenthJohan/ouster-sdk/internal/testutil"
)

func testGeometry() testutil.Geometry {
	return testutil.Geometry{ColumnsPerFrame: 128, ColumnsPerPacket: 16, PixelsPerColumn: 8}
}

func rangeValue(row, mid int) uint32 { return uint32(row*1000 + mid + 1) }

func newMockPipeline(t *testing.T, cfg Config, packets ...[]byte) (*Pipeline, *network.MockSource) {
	t.Helper()
	src := network.NewMockSource(packets...)
	cfg.Source = src
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = -1
	}
	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, src
}

func stepUntilDrained(t *testing.T, p *Pipeline, src *network.MockSource) {
	t.Helper()
	for i := 0; !src.Drained(); i++ {
		require.Less(t, i, 10000, "source never drained")
		require.NoError(t, p.Step(0))
	}
}

func TestPipeline_CompletesFrame(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	b := testutil.NewPacketBuilder(prof)
	packets := b.Frame(testutil.QuantityPixel(prof, profile.QuantityRange, rangeValue))

	var frames []Frame
	var sample uint32
	p, src := newMockPipeline(t, Config{
		Profile:    prof,
		Quantities: []profile.Quantity{profile.QuantityRange},
		OnFrame: func(f Frame) {
			frames = append(frames, f)
			sample = f.Fields[0].At(3, 77)
		},
	}, packets...)

	stepUntilDrained(t, p, src)

	require.Len(t, frames, 1)
	assert.Equal(t, 1, frames[0].ID)
	assert.Zero(t, frames[0].MIDLoss)
	assert.Equal(t, p.ID, frames[0].PipelineID)
	assert.Equal(t, uint64(127*1000), frames[0].Timestamp)
	assert.Equal(t, rangeValue(3, 77), sample)

	assert.Zero(t, p.Fields()[0].At(3, 77), "fields are cleared after the handler")
	assert.Equal(t, -1, p.Tracker().LastMID())

	s := p.Stats().GetAndReset()
	assert.Equal(t, int64(len(packets)), s.Packets)
	assert.Equal(t, int64(1), s.Frames)
}

func TestPipeline_FrameIDsAndLoss(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	b := testutil.NewPacketBuilder(prof)
	var packets [][]byte
	packets = append(packets, b.Frame(nil)...)
	for i, pkt := range b.Frame(nil) {
		if i == 2 {
			continue // drop mids 32..47
		}
		packets = append(packets, pkt)
	}

	var got []Frame
	p, src := newMockPipeline(t, Config{
		Profile: prof,
		OnFrame: func(f Frame) { got = append(got, f) },
	}, packets...)
	stepUntilDrained(t, p, src)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Zero(t, got[0].MIDLoss)
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, 16, got[1].MIDLoss)
	assert.Len(t, got[1].Fields, len(prof.Quantities()))
}

func TestPipeline_SizeMismatchIsDroppedAndCounted(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	b := testutil.NewPacketBuilder(prof)
	good := b.Frame(nil)
	packets := append([][]byte{make([]byte, 100)}, good...)
	packets = append(packets, good[0][:len(good[0])-1])

	frames := 0
	p, src := newMockPipeline(t, Config{Profile: prof, OnFrame: func(Frame) { frames++ }}, packets...)
	stepUntilDrained(t, p, src)

	assert.Equal(t, 1, frames)
	assert.Equal(t, 2, p.Parser().DroppedCount())
	s := p.Stats().GetAndReset()
	assert.Equal(t, int64(2), s.SizeMismatches)

	_, err := p.HandleLidarPacket([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, parse.ErrSizeMismatch))
}

func TestPipeline_Destagger(t *testing.T) {
	t.Parallel()

	g := testGeometry()
	g.PixelShift = []int{0, 1, 2, 3, -1, -2, -3, 64}
	prof := testutil.MustProfile(t, g)
	packets := testutil.NewPacketBuilder(prof).Frame(testutil.QuantityPixel(prof, profile.QuantityRange, rangeValue))

	checked := false
	p, src := newMockPipeline(t, Config{
		Profile:    prof,
		Quantities: []profile.Quantity{profile.QuantityRange},
		Destagger:  true,
		OnFrame: func(f Frame) {
			checked = true
			require.True(t, f.Destaggered)
			rng := f.Fields[0]
			for row, shift := range g.PixelShift {
				for col := 0; col < 128; col++ {
					dst := ((col+shift)%128 + 128) % 128
					if rng.At(row, dst) != rangeValue(row, col) {
						t.Fatalf("row %d: column %d not moved to %d", row, col, dst)
					}
				}
			}
		},
	}, packets...)
	stepUntilDrained(t, p, src)
	assert.True(t, checked)
}

func TestPipeline_KeepsCopyAcrossFrames(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	kept, err := field.New(prof, profile.QuantityRange)
	require.NoError(t, err)

	packets := testutil.NewPacketBuilder(prof).Frame(testutil.QuantityPixel(prof, profile.QuantityRange, rangeValue))
	p, src := newMockPipeline(t, Config{
		Profile:    prof,
		Quantities: []profile.Quantity{profile.QuantityRange},
		OnFrame: func(f Frame) {
			require.NoError(t, field.Copy(kept, f.Fields[0]))
		},
	}, packets...)
	stepUntilDrained(t, p, src)

	assert.Equal(t, rangeValue(5, 100), kept.At(5, 100))
}

func TestPipeline_IMUPassthrough(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	var imu [][]byte
	p, src := newMockPipeline(t, Config{
		Profile: prof,
		OnIMU:   func(data []byte) { imu = append(imu, append([]byte(nil), data...)) },
	})
	src.Add(HandleIMU, []byte{0xde, 0xad, 0xbe, 0xef})
	src.Add(HandleIMU, []byte{0x01})
	stepUntilDrained(t, p, src)

	require.Len(t, imu, 2)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, imu[0])
	assert.Equal(t, int64(2), p.Stats().GetAndReset().IMUPackets)
}

func TestPipeline_TruncationCounted(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	b := testutil.NewPacketBuilder(prof)
	p, src := newMockPipeline(t, Config{Profile: prof},
		b.Packet(0, nil), b.Packet(16, nil), b.Packet(32, nil), b.Packet(0, nil))
	stepUntilDrained(t, p, src)

	s := p.Stats().GetAndReset()
	assert.Equal(t, int64(1), s.Truncations)
	assert.Zero(t, s.Frames)
}

func TestPipeline_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	packets := testutil.NewPacketBuilder(prof).Frame(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, _ := newMockPipeline(t, Config{
		Profile:     prof,
		WaitTimeout: time.Millisecond,
		OnFrame:     func(Frame) { cancel() },
	}, packets...)

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.Tracker().FrameID())
}

func TestPipeline_RunReturnsReadError(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	p, src := newMockPipeline(t, Config{Profile: prof}, make([]byte, prof.LidarPacketSize()))
	src.ReadError = errors.New("device gone")

	err := p.Run(context.Background())
	var re *network.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, int64(1), p.Stats().GetAndReset().ReadErrors)
}

func TestPipeline_RunReturnsAfterClose(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	p, _ := newMockPipeline(t, Config{Profile: prof})
	require.NoError(t, p.Close())

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestPipeline_CloseDuringRunWithForwarding(t *testing.T) {
	t.Parallel()

	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sink.Close()

	prof := testutil.MustProfile(t, testGeometry())
	frame := testutil.NewPacketBuilder(prof).Frame(nil)
	var packets [][]byte
	for i := 0; i < 200; i++ {
		packets = append(packets, frame...)
	}

	p, _ := newMockPipeline(t, Config{
		Profile:     prof,
		ForwardAddr: "127.0.0.1",
		ForwardPort: sink.LocalAddr().(*net.UDPAddr).Port,
	}, packets...)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	prof := testutil.MustProfile(t, testutil.Geometry{UDPProfile: profile.UDPProfileLowDataRate})
	_, err = New(context.Background(), Config{
		Profile:    prof,
		Quantities: []profile.Quantity{profile.QuantitySignal},
		Source:     network.NewMockSource(),
	})
	assert.ErrorIs(t, err, field.ErrQuantityUnavailable)

	_, err = New(context.Background(), Config{
		Profile:        testutil.MustProfile(t, testGeometry()),
		Address:        "127.0.0.1",
		MulticastGroup: "192.168.1.1",
	})
	var se *network.SocketError
	assert.ErrorAs(t, err, &se)
}
