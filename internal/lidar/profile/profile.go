package profile

import (
	"fmt"
	"strings"
)

// Default UDP destination ports used when config_params does not set them.
const (
	DefaultUDPPortLidar = 7502
	DefaultUDPPortIMU   = 7503
)

// ColumnWindow is the inclusive measurement id range that makes up one sweep.
type ColumnWindow struct {
	Min int
	Max int
}

// Len is the number of measurement ids in the window.
func (w ColumnWindow) Len() int { return w.Max - w.Min + 1 }

// Contains reports whether mid lies inside the window.
func (w ColumnWindow) Contains(mid int) bool { return mid >= w.Min && mid <= w.Max }

// ExtractSpec tells the extractor where a quantity lives inside a channel
// block and how the destination image is laid out.
type ExtractSpec struct {
	Quantity   Quantity
	Offset     int    // byte offset inside the channel block
	Width      int    // value width in bytes: 1, 2 or 4
	Mask       uint32 // applied with AND unless it is all ones for Width
	RowStride  int    // bytes per image row
	BufferSize int    // bytes for the whole image
}

// FullMask reports whether Mask keeps every bit of a Width-byte value, in
// which case extraction can skip the AND.
func (s ExtractSpec) FullMask() bool {
	return s.Mask == widthMask(s.Width)
}

func widthMask(width int) uint32 {
	if width >= 4 {
		return 0xFFFFFFFF
	}
	return 1<<(8*uint(width)) - 1
}

var profileSections = []string{"lidar_data_format", "data_format", "config_params", ""}

// Profile is the validated description of one sensor configuration. It is
// safe to share between goroutines because nothing mutates it after
// BuildProfile returns.
type Profile struct {
	layout           PacketLayout
	window           ColumnWindow
	columnsPerFrame  int
	columnsPerPacket int
	pixelsPerColumn  int
	udpPortLidar     int
	udpPortIMU       int
	lidarPacketSize  int
	columnBlockSize  int
	statusOffset     int
	pixelShift       []int

	extract [quantityCount]ExtractSpec
	present [quantityCount]bool
}

// BuildProfile validates a metadata attribute tree and derives the packet
// geometry and extraction table from it. Any failure is a *ConfigError.
func BuildProfile(attrs Attributes) (*Profile, error) {
	if attrs == nil {
		return nil, &ConfigError{Reason: "no attributes"}
	}

	udpProfile := DefaultUDPProfile
	if v, ok := lookup(attrs, profileSections, "udp_profile_lidar"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, configErrorf("udp_profile_lidar", "expected a string, got %T", v)
		}
		udpProfile = strings.ToUpper(strings.TrimSpace(s))
	}
	layout, err := LookupLayout(udpProfile)
	if err != nil {
		return nil, configErrorf("udp_profile_lidar", "%v", err)
	}

	p := &Profile{layout: layout}

	if p.columnsPerFrame, err = requireInt(attrs, formatSections, "columns_per_frame"); err != nil {
		return nil, err
	}
	if p.columnsPerPacket, err = requireInt(attrs, formatSections, "columns_per_packet"); err != nil {
		return nil, err
	}
	if p.pixelsPerColumn, err = requireInt(attrs, formatSections, "pixels_per_column"); err != nil {
		return nil, err
	}
	if p.columnsPerFrame <= 0 || p.columnsPerFrame > 1<<16 {
		return nil, configErrorf("columns_per_frame", "must be in 1..65536, got %d", p.columnsPerFrame)
	}
	if p.columnsPerPacket <= 0 || p.columnsPerPacket > p.columnsPerFrame {
		return nil, configErrorf("columns_per_packet", "must be in 1..%d, got %d", p.columnsPerFrame, p.columnsPerPacket)
	}
	if p.pixelsPerColumn <= 0 {
		return nil, configErrorf("pixels_per_column", "must be positive, got %d", p.pixelsPerColumn)
	}

	window, err := requireIntSlice(attrs, formatSections, "column_window")
	if err != nil {
		return nil, err
	}
	if len(window) != 2 {
		return nil, configErrorf("column_window", "expected [min, max], got %d values", len(window))
	}
	p.window = ColumnWindow{Min: window[0], Max: window[1]}
	if p.window.Min < 0 || p.window.Min > p.window.Max || p.window.Max >= p.columnsPerFrame {
		return nil, configErrorf("column_window", "need 0 <= min <= max < columns_per_frame (%d), got [%d, %d]",
			p.columnsPerFrame, p.window.Min, p.window.Max)
	}

	if p.pixelShift, err = requireIntSlice(attrs, formatSections, "pixel_shift_by_row"); err != nil {
		return nil, err
	}
	if len(p.pixelShift) != p.pixelsPerColumn {
		return nil, configErrorf("pixel_shift_by_row", "length %d does not match pixels_per_column %d",
			len(p.pixelShift), p.pixelsPerColumn)
	}

	if p.layout.ChannelBlockSize, err = optionalInt(attrs, formatSections, "channel_block_size", layout.ChannelBlockSize); err != nil {
		return nil, err
	}
	if p.layout.ChannelBlockSize <= 0 {
		return nil, configErrorf("channel_block_size", "must be positive, got %d", p.layout.ChannelBlockSize)
	}

	portSections := []string{"config_params", ""}
	if p.udpPortLidar, err = optionalInt(attrs, portSections, "udp_port_lidar", DefaultUDPPortLidar); err != nil {
		return nil, err
	}
	if p.udpPortIMU, err = optionalInt(attrs, portSections, "udp_port_imu", DefaultUDPPortIMU); err != nil {
		return nil, err
	}
	for key, port := range map[string]int{"udp_port_lidar": p.udpPortLidar, "udp_port_imu": p.udpPortIMU} {
		if port < 0 || port > 65535 {
			return nil, configErrorf(key, "port %d out of range", port)
		}
	}

	p.columnBlockSize = p.layout.ColumnBlockSize(p.pixelsPerColumn)
	p.statusOffset = p.layout.StatusOffset(p.pixelsPerColumn)
	p.lidarPacketSize = p.layout.PacketSize(p.columnsPerPacket, p.pixelsPerColumn)
	if declared, err := optionalInt(attrs, formatSections, "lidar_packet_size", p.lidarPacketSize); err != nil {
		return nil, err
	} else if declared != p.lidarPacketSize {
		return nil, configErrorf("lidar_packet_size", "declared %d bytes but %s geometry gives %d",
			declared, layout.Name, p.lidarPacketSize)
	}

	for _, f := range layout.fields {
		if err := p.setExtract(f.quantity, f.offset, f.width, f.mask); err != nil {
			return nil, err
		}
	}
	if v, ok := lookup(attrs, formatSections, "extraction"); ok {
		if err := p.applyExtractionList(v); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Profile) setExtract(q Quantity, offset, width int, mask uint32) error {
	key := "extraction." + q.String()
	if width != 1 && width != 2 && width != 4 {
		return configErrorf(key, "width must be 1, 2 or 4 bytes, got %d", width)
	}
	if offset < 0 || offset+width > p.layout.ChannelBlockSize {
		return configErrorf(key, "offset %d + width %d exceeds channel block size %d",
			offset, width, p.layout.ChannelBlockSize)
	}
	if mask&^widthMask(width) != 0 {
		return configErrorf(key, "mask 0x%X is wider than %d bytes", mask, width)
	}
	rowStride := p.columnsPerFrame * width
	p.extract[q] = ExtractSpec{
		Quantity:   q,
		Offset:     offset,
		Width:      width,
		Mask:       mask,
		RowStride:  rowStride,
		BufferSize: p.pixelsPerColumn * rowStride,
	}
	p.present[q] = true
	return nil
}

// applyExtractionList reads a list of {quantity, offset, width, mask}
// descriptors that override or extend the catalogue entries.
func (p *Profile) applyExtractionList(v any) error {
	list, ok := v.([]any)
	if !ok {
		return configErrorf("extraction", "expected an array of descriptors, got %T", v)
	}
	for i, e := range list {
		d, ok := e.(map[string]any)
		if !ok {
			return configErrorf(fmt.Sprintf("extraction[%d]", i), "expected an object, got %T", e)
		}
		name, _ := d["quantity"].(string)
		q, err := ParseQuantity(name)
		if err != nil {
			return configErrorf(fmt.Sprintf("extraction[%d].quantity", i), "%v", err)
		}
		offset, ok := toInt(d["offset"])
		if !ok {
			return configErrorf(fmt.Sprintf("extraction[%d].offset", i), "required integer is missing")
		}
		width, ok := toInt(d["width"])
		if !ok {
			return configErrorf(fmt.Sprintf("extraction[%d].width", i), "required integer is missing")
		}
		mask := widthMask(width)
		if raw, ok := d["mask"]; ok && raw != nil {
			m, ok := toInt(raw)
			if !ok || m < 0 || int64(m) > 0xFFFFFFFF {
				return configErrorf(fmt.Sprintf("extraction[%d].mask", i), "expected a 32-bit unsigned integer")
			}
			mask = uint32(m)
		}
		if err := p.setExtract(q, offset, width, mask); err != nil {
			return err
		}
	}
	return nil
}

// UDPProfile is the name of the packet layout in use.
func (p *Profile) UDPProfile() string { return p.layout.Name }

// Layout returns the packet geometry, including any channel block override.
func (p *Profile) Layout() PacketLayout { return p.layout }

// ColumnWindow returns the inclusive measurement id window of one sweep.
func (p *Profile) ColumnWindow() ColumnWindow { return p.window }

// LastMID is the measurement id that closes a frame.
func (p *Profile) LastMID() int { return p.window.Max }

func (p *Profile) ColumnsPerFrame() int { return p.columnsPerFrame }

func (p *Profile) ColumnsPerPacket() int { return p.columnsPerPacket }

func (p *Profile) PixelsPerColumn() int { return p.pixelsPerColumn }

func (p *Profile) UDPPortLidar() int { return p.udpPortLidar }

func (p *Profile) UDPPortIMU() int { return p.udpPortIMU }

// LidarPacketSize is the exact length every lidar datagram must have.
func (p *Profile) LidarPacketSize() int { return p.lidarPacketSize }

// ColumnBlockSize is the size of one column block including header/footer.
func (p *Profile) ColumnBlockSize() int { return p.columnBlockSize }

// ChannelBlockSize is the size of one pixel's data inside a column block.
func (p *Profile) ChannelBlockSize() int { return p.layout.ChannelBlockSize }

// StatusOffset is the offset of the status word inside a column block.
func (p *Profile) StatusOffset() int { return p.statusOffset }

// PixelShift returns the destagger shift for a row.
func (p *Profile) PixelShift(row int) int { return p.pixelShift[row] }

// PixelShiftByRow returns a copy of the per-row shift table.
func (p *Profile) PixelShiftByRow() []int {
	out := make([]int, len(p.pixelShift))
	copy(out, p.pixelShift)
	return out
}

// Spec returns the extraction rule for q and whether this profile carries it.
func (p *Profile) Spec(q Quantity) (ExtractSpec, bool) {
	if !q.Valid() || !p.present[q] {
		return ExtractSpec{}, false
	}
	return p.extract[q], true
}

// Quantities lists the quantities this profile can extract.
func (p *Profile) Quantities() []Quantity {
	var qs []Quantity
	for q := Quantity(0); q < quantityCount; q++ {
		if p.present[q] {
			qs = append(qs, q)
		}
	}
	return qs
}

// String gives a one-line summary suitable for startup logs.
func (p *Profile) String() string {
	return fmt.Sprintf("%s %dx%d window=[%d,%d] cols/packet=%d packet=%dB ports=%d/%d",
		p.layout.Name, p.pixelsPerColumn, p.columnsPerFrame, p.window.Min, p.window.Max,
		p.columnsPerPacket, p.lidarPacketSize, p.udpPortLidar, p.udpPortIMU)
}
