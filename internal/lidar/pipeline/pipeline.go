package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/field"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/frame"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/network"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/parse"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/stats"
	"github.com/KenthJohan/ouster-sdk/internal/timeutil"
)

// Handle indices into the pipeline's source.
const (
	HandleLidar = 0
	HandleIMU   = 1
)

const (
	// MaxDatagramSize fits any UDP payload.
	MaxDatagramSize = 65535

	DefaultWaitTimeout   = time.Second
	DefaultStatsInterval = time.Minute

	maxReadsPerWake = 256
)

// Frame is a completed sweep handed to Config.OnFrame. Fields is only valid
// during the callback; use field.Copy to keep the data.
type Frame struct {
	PipelineID  uuid.UUID
	ID          int
	MIDLoss     int
	Timestamp   uint64
	Destaggered bool
	Fields      []*field.Field
}

// Config contains configuration options for a pipeline.
type Config struct {
	Profile *profile.Profile

	// Quantities selects the fields to extract; empty extracts every
	// quantity the profile carries.
	Quantities []profile.Quantity

	Address        string // bind host for both sockets
	RcvBuf         int    // defaults to network.DefaultRcvBuf
	MulticastGroup string
	Interface      string

	WaitTimeout   time.Duration // defaults to DefaultWaitTimeout
	StatsInterval time.Duration // defaults to DefaultStatsInterval; negative disables
	Destagger     bool

	OnFrame func(Frame)
	OnIMU   func(data []byte) // data is only valid during the callback

	// ForwardAddr, when set, relays every lidar datagram to
	// ForwardAddr:ForwardPort. Copies use recycled buffers.
	ForwardAddr string
	ForwardPort int

	// Source replaces the UDP sockets, typically with a network.MockSource.
	// Handle HandleLidar carries lidar datagrams and HandleIMU IMU ones.
	Source network.Source

	Clock timeutil.Clock
}

// Pipeline receives and decodes one sensor stream. It is not safe for
// concurrent use apart from Close.
type Pipeline struct {
	ID uuid.UUID

	cfg       Config
	profile   *profile.Profile
	source    network.Source
	sockets   network.SocketSet
	parser    *parse.Parser
	fields    []*field.Field
	tracker   *frame.Tracker
	stats     *stats.PacketStats
	forwarder *network.PacketForwarder
	buf       []byte

	truncations int
	anomalies   int
}

// New builds a pipeline and opens its sockets. Any socket failure is
// returned as a *network.SocketError and nothing is left open.
func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.Profile == nil {
		return nil, errors.New("pipeline: no sensor profile")
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	fields, err := field.NewFields(cfg.Profile, cfg.Quantities...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p := &Pipeline{
		ID:      uuid.New(),
		cfg:     cfg,
		profile: cfg.Profile,
		parser:  parse.NewParser(cfg.Profile),
		fields:  fields,
		tracker: frame.NewTracker(cfg.Profile),
		stats:   stats.NewPacketStats(cfg.Clock),
		buf:     make([]byte, MaxDatagramSize),
	}

	p.source = cfg.Source
	if p.source == nil {
		if p.sockets, err = p.openSockets(ctx); err != nil {
			return nil, err
		}
		p.source = p.sockets
	}

	if cfg.ForwardAddr != "" {
		logInterval := cfg.StatsInterval
		if logInterval < 0 {
			logInterval = 0
		}
		p.forwarder, err = network.NewPacketForwarder(cfg.ForwardAddr, cfg.ForwardPort, p.stats, logInterval)
		if err != nil {
			p.source.Close()
			return nil, err
		}
		p.forwarder.Start(ctx)
	}

	diagf("pipeline %s: %s, fields %v", p.ID, p.profile, quantities(fields))
	return p, nil
}

func (p *Pipeline) openSockets(ctx context.Context) (network.SocketSet, error) {
	base := network.ListenerConfig{
		Address:        p.cfg.Address,
		RcvBuf:         p.cfg.RcvBuf,
		MulticastGroup: p.cfg.MulticastGroup,
		Interface:      p.cfg.Interface,
	}
	lidarCfg, imuCfg := base, base
	lidarCfg.Port = p.profile.UDPPortLidar()
	imuCfg.Port = p.profile.UDPPortIMU()

	lidar, err := network.ListenUDP(ctx, lidarCfg)
	if err != nil {
		return nil, err
	}
	imu, err := network.ListenUDP(ctx, imuCfg)
	if err != nil {
		lidar.Close()
		return nil, err
	}
	return network.SocketSet{HandleLidar: lidar, HandleIMU: imu}, nil
}

func quantities(fields []*field.Field) []profile.Quantity {
	qs := make([]profile.Quantity, len(fields))
	for i, f := range fields {
		qs[i] = f.Quantity()
	}
	return qs
}

// Run steps the pipeline until ctx is cancelled or the source fails. It
// returns ctx.Err() on cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Step(p.cfg.WaitTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Step waits up to timeout for data and processes every datagram queued on
// the ready handles. Bad datagrams are counted and skipped; only a failed
// wait or a hard read failure is returned.
func (p *Pipeline) Step(timeout time.Duration) error {
	ready, err := p.source.Wait(timeout)
	if err != nil {
		return fmt.Errorf("pipeline wait: %w", err)
	}
	for _, h := range []int{HandleLidar, HandleIMU} {
		if !ready.Has(h) {
			continue
		}
		if err := p.drain(h); err != nil {
			return err
		}
	}
	if p.cfg.StatsInterval > 0 && p.stats.Elapsed() >= p.cfg.StatsInterval {
		p.stats.LogStats()
	}
	return nil
}

func (p *Pipeline) drain(handle int) error {
	for i := 0; i < maxReadsPerWake; i++ {
		n, err := p.source.Read(handle, p.buf)
		if errors.Is(err, network.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			p.stats.AddReadError()
			opsf("pipeline %s: handle %d unusable: %v", p.ID, handle, err)
			return err
		}
		if handle == HandleLidar {
			p.HandleLidarPacket(p.buf[:n])
		} else {
			p.HandleIMUPacket(p.buf[:n])
		}
	}
	return nil
}

// HandleLidarPacket runs one lidar datagram through parse, extract and
// track, and reports whether it closed a sweep. A datagram of the wrong
// size is counted, dropped, and returned as a *parse.SizeMismatchError.
func (p *Pipeline) HandleLidarPacket(data []byte) (bool, error) {
	p.stats.AddPacket(len(data))
	if p.forwarder != nil {
		p.forwarder.ForwardAsync(data)
	}

	cols, err := p.parser.ParsePacket(data)
	if err != nil {
		p.stats.AddSizeMismatch()
		return false, err
	}

	if skipped := field.Extract(cols, p.fields, p.profile); skipped > 0 {
		tracef("pipeline %s: %d columns outside the frame", p.ID, skipped)
	}
	complete := p.tracker.Update(cols)
	p.recordAnomalies()
	if complete {
		p.completeFrame()
	}
	return complete, nil
}

func (p *Pipeline) recordAnomalies() {
	trunc, anom := p.tracker.Truncations(), p.tracker.Anomalies()
	if trunc != p.truncations || anom != p.anomalies {
		if trunc != p.truncations {
			diagf("pipeline %s: measurement ids restarted at %d before the sweep closed", p.ID, p.tracker.LastMID())
		}
		p.stats.AddSequenceAnomalies(trunc-p.truncations, anom-p.anomalies)
		p.truncations, p.anomalies = trunc, anom
	}
}

func (p *Pipeline) completeFrame() {
	ev := p.tracker.Event()
	if p.cfg.Destagger {
		field.Destagger(p.fields, p.profile, false)
	}
	p.stats.AddFrame(ev.MIDLoss)
	if ev.MIDLoss > 0 {
		tracef("pipeline %s: frame=%d mid_loss=%d first missing %v", p.ID, ev.FrameID, ev.MIDLoss, p.tracker.Missing(4))
	} else {
		tracef("pipeline %s: frame=%d mid_loss=0", p.ID, ev.FrameID)
	}

	if p.cfg.OnFrame != nil {
		p.cfg.OnFrame(Frame{
			PipelineID:  p.ID,
			ID:          ev.FrameID,
			MIDLoss:     ev.MIDLoss,
			Timestamp:   ev.Timestamp,
			Destaggered: p.cfg.Destagger,
			Fields:      p.fields,
		})
	}
	field.Clear(p.fields)
	p.tracker.Reset()
}

// HandleIMUPacket passes an IMU datagram through unparsed.
func (p *Pipeline) HandleIMUPacket(data []byte) {
	p.stats.AddIMUPacket()
	if p.cfg.OnIMU != nil {
		p.cfg.OnIMU(data)
	}
}

// Profile returns the sensor profile.
func (p *Pipeline) Profile() *profile.Profile { return p.profile }

// Fields returns the pipeline's field buffers.
func (p *Pipeline) Fields() []*field.Field { return p.fields }

// Tracker returns the frame tracker.
func (p *Pipeline) Tracker() *frame.Tracker { return p.tracker }

// Stats returns the statistics collector.
func (p *Pipeline) Stats() *stats.PacketStats { return p.stats }

// Parser returns the packet parser.
func (p *Pipeline) Parser() *parse.Parser { return p.parser }

// LocalAddr returns the bound address of a handle, or nil when the source
// was injected.
func (p *Pipeline) LocalAddr(handle int) net.Addr {
	if handle < 0 || handle >= len(p.sockets) {
		return nil
	}
	return p.sockets[handle].LocalAddr()
}

// Close closes the source and the forwarder. It may be called while Run
// is in progress; Run then returns the source's error. Buffers stay valid.
func (p *Pipeline) Close() error {
	err := p.source.Close()
	if p.forwarder != nil {
		p.forwarder.Close()
	}
	return err
}
