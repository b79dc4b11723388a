package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttrs(cpf, cpp, ppc int) Attributes {
	shift := make([]any, ppc)
	for i := range shift {
		shift[i] = float64((i%4)*8 - 12)
	}
	return Attributes{
		"lidar_data_format": map[string]any{
			"column_window":      []any{float64(0), float64(cpf - 1)},
			"columns_per_frame":  float64(cpf),
			"columns_per_packet": float64(cpp),
			"pixels_per_column":  float64(ppc),
			"pixel_shift_by_row": shift,
		},
		"config_params": map[string]any{
			"udp_port_lidar": float64(7502),
			"udp_port_imu":   float64(7503),
		},
	}
}

func formatSection(attrs Attributes) map[string]any {
	return attrs["lidar_data_format"].(map[string]any)
}

func requireConfigError(t *testing.T, err error, key string) {
	t.Helper()
	require.Error(t, err)
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr), "expected *ConfigError, got %T: %v", err, err)
	assert.Equal(t, key, cerr.Key)
}

func TestBuildProfile_Defaults(t *testing.T) {
	p, err := BuildProfile(testAttrs(1024, 16, 64))
	require.NoError(t, err)

	assert.Equal(t, UDPProfileSingle, p.UDPProfile())
	assert.Equal(t, ColumnWindow{Min: 0, Max: 1023}, p.ColumnWindow())
	assert.Equal(t, 1023, p.LastMID())
	assert.Equal(t, 1024, p.ColumnsPerFrame())
	assert.Equal(t, 16, p.ColumnsPerPacket())
	assert.Equal(t, 64, p.PixelsPerColumn())
	assert.Equal(t, 7502, p.UDPPortLidar())
	assert.Equal(t, 7503, p.UDPPortIMU())
	assert.Equal(t, 12, p.ChannelBlockSize())
	assert.Equal(t, 12+64*12, p.ColumnBlockSize())
	assert.Equal(t, 32+16*(12+64*12)+32, p.LidarPacketSize())
	assert.Equal(t, STATUS_HEADER_OFFSET, p.StatusOffset())

	rng, ok := p.Spec(QuantityRange)
	require.True(t, ok)
	assert.Equal(t, 0, rng.Offset)
	assert.Equal(t, 4, rng.Width)
	assert.Equal(t, uint32(0x0007FFFF), rng.Mask)
	assert.Equal(t, 1024*4, rng.RowStride)
	assert.Equal(t, 64*1024*4, rng.BufferSize)
	assert.False(t, rng.FullMask())

	nir, ok := p.Spec(QuantityNearIR)
	require.True(t, ok)
	assert.True(t, nir.FullMask())

	_, ok = p.Spec(QuantityRange2)
	assert.False(t, ok, "single return profile has no second return")
	_, ok = p.Spec(Quantity(99))
	assert.False(t, ok)

	assert.Equal(t, []Quantity{QuantityRange, QuantityReflectivity, QuantitySignal, QuantityNearIR}, p.Quantities())
}

func TestBuildProfile_ExtractSpecsFitChannelBlock(t *testing.T) {
	for _, name := range []string{UDPProfileLegacy, UDPProfileSingle, UDPProfileLowDataRate, UDPProfileDual} {
		t.Run(name, func(t *testing.T) {
			attrs := testAttrs(512, 16, 32)
			formatSection(attrs)["udp_profile_lidar"] = name
			p, err := BuildProfile(attrs)
			require.NoError(t, err)
			require.NotEmpty(t, p.Quantities())
			for _, q := range p.Quantities() {
				spec, ok := p.Spec(q)
				require.True(t, ok)
				assert.LessOrEqual(t, spec.Offset+spec.Width, p.ChannelBlockSize(), "%s overruns channel block", q)
				assert.Equal(t, p.PixelsPerColumn()*spec.RowStride, spec.BufferSize)
			}
		})
	}
}

func TestBuildProfile_LegacyStatusInFooter(t *testing.T) {
	attrs := testAttrs(1024, 16, 64)
	formatSection(attrs)["udp_profile_lidar"] = "legacy"
	p, err := BuildProfile(attrs)
	require.NoError(t, err)

	assert.Equal(t, 16*(16+64*12+4), p.LidarPacketSize())
	assert.Equal(t, 16+64*12, p.StatusOffset())
	rng, _ := p.Spec(QuantityRange)
	assert.Equal(t, uint32(0x000FFFFF), rng.Mask)
}

func TestBuildProfile_MissingKeys(t *testing.T) {
	for _, key := range []string{"column_window", "columns_per_frame", "columns_per_packet", "pixels_per_column", "pixel_shift_by_row"} {
		t.Run(key, func(t *testing.T) {
			attrs := testAttrs(1024, 16, 64)
			delete(formatSection(attrs), key)
			_, err := BuildProfile(attrs)
			requireConfigError(t, err, key)
		})
	}
}

func TestBuildProfile_NilAttributes(t *testing.T) {
	_, err := BuildProfile(nil)
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestBuildProfile_InconsistentDimensions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		key    string
	}{
		{"shift length", func(s map[string]any) { s["pixel_shift_by_row"] = []any{float64(1), float64(2)} }, "pixel_shift_by_row"},
		{"window past frame", func(s map[string]any) { s["column_window"] = []any{float64(0), float64(1024)} }, "column_window"},
		{"window inverted", func(s map[string]any) { s["column_window"] = []any{float64(10), float64(5)} }, "column_window"},
		{"window arity", func(s map[string]any) { s["column_window"] = []any{float64(0)} }, "column_window"},
		{"fractional width", func(s map[string]any) { s["pixels_per_column"] = 64.5 }, "pixels_per_column"},
		{"zero columns per packet", func(s map[string]any) { s["columns_per_packet"] = float64(0) }, "columns_per_packet"},
		{"unknown profile", func(s map[string]any) { s["udp_profile_lidar"] = "RNG99" }, "udp_profile_lidar"},
		{"declared packet size", func(s map[string]any) { s["lidar_packet_size"] = float64(1234) }, "lidar_packet_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := testAttrs(1024, 16, 64)
			tt.mutate(formatSection(attrs))
			_, err := BuildProfile(attrs)
			requireConfigError(t, err, tt.key)
		})
	}
}

func TestBuildProfile_ExtractionOverride(t *testing.T) {
	attrs := testAttrs(1024, 16, 128)
	formatSection(attrs)["extraction"] = []any{
		map[string]any{"quantity": "RANGE", "offset": float64(0), "width": float64(4), "mask": "0x000FFFFF"},
		map[string]any{"quantity": "signal", "offset": float64(6), "width": float64(2)},
	}
	p, err := BuildProfile(attrs)
	require.NoError(t, err)

	rng, _ := p.Spec(QuantityRange)
	assert.Equal(t, uint32(0x000FFFFF), rng.Mask)
	sig, _ := p.Spec(QuantitySignal)
	assert.Equal(t, uint32(0xFFFF), sig.Mask)
	assert.True(t, sig.FullMask())
}

func TestBuildProfile_ExtractionPastChannelBlock(t *testing.T) {
	attrs := testAttrs(1024, 16, 64)
	formatSection(attrs)["extraction"] = []any{
		map[string]any{"quantity": "NEAR_IR", "offset": float64(10), "width": float64(4)},
	}
	_, err := BuildProfile(attrs)
	requireConfigError(t, err, "extraction.NEAR_IR")
}

func TestBuildProfile_ExtractionBadWidthAndMask(t *testing.T) {
	attrs := testAttrs(1024, 16, 64)
	formatSection(attrs)["extraction"] = []any{
		map[string]any{"quantity": "SIGNAL", "offset": float64(6), "width": float64(3)},
	}
	_, err := BuildProfile(attrs)
	requireConfigError(t, err, "extraction.SIGNAL")

	formatSection(attrs)["extraction"] = []any{
		map[string]any{"quantity": "SIGNAL", "offset": float64(6), "width": float64(2), "mask": float64(0x1FFFF)},
	}
	_, err = BuildProfile(attrs)
	requireConfigError(t, err, "extraction.SIGNAL")

	formatSection(attrs)["extraction"] = []any{
		map[string]any{"quantity": "INTENSITY", "offset": float64(0), "width": float64(2)},
	}
	_, err = BuildProfile(attrs)
	requireConfigError(t, err, "extraction[0].quantity")
}

func TestBuildProfile_LegacyDataFormatSection(t *testing.T) {
	attrs := testAttrs(2048, 16, 16)
	attrs["data_format"] = attrs["lidar_data_format"]
	delete(attrs, "lidar_data_format")
	delete(attrs, "config_params")

	p, err := BuildProfile(attrs)
	require.NoError(t, err)
	assert.Equal(t, 2048, p.ColumnsPerFrame())
	assert.Equal(t, DefaultUDPPortLidar, p.UDPPortLidar())
	assert.Equal(t, DefaultUDPPortIMU, p.UDPPortIMU())
}

func TestBuildProfile_PortOutOfRange(t *testing.T) {
	attrs := testAttrs(1024, 16, 64)
	attrs["config_params"].(map[string]any)["udp_port_lidar"] = float64(70000)
	_, err := BuildProfile(attrs)
	requireConfigError(t, err, "udp_port_lidar")
}

func TestProfile_PixelShiftByRowIsCopy(t *testing.T) {
	p, err := BuildProfile(testAttrs(1024, 16, 64))
	require.NoError(t, err)

	shifts := p.PixelShiftByRow()
	require.Len(t, shifts, 64)
	shifts[0] = 999
	assert.NotEqual(t, 999, p.PixelShift(0))
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("near-ir")
	require.NoError(t, err)
	assert.Equal(t, QuantityNearIR, q)
	assert.Equal(t, "NEAR_IR", q.String())

	_, err = ParseQuantity("bogus")
	assert.Error(t, err)
	assert.Equal(t, "Quantity(42)", Quantity(42).String())
	assert.Len(t, AllQuantities(), int(quantityCount))
}
