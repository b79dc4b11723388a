//go:build unix

package pipeline

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KenthJohan/ouster-sdk/internal/testutil"
)

func TestPipeline_UDPLoopback(t *testing.T) {
	t.Parallel()

	prof := testutil.MustProfile(t, testGeometry())
	frames := 0
	p, err := New(context.Background(), Config{
		Profile:       prof,
		Address:       "127.0.0.1",
		StatsInterval: -1,
		OnFrame:       func(Frame) { frames++ },
	})
	require.NoError(t, err)
	defer p.Close()

	lidarAddr := p.LocalAddr(HandleLidar).(*net.UDPAddr)
	require.NotNil(t, p.LocalAddr(HandleIMU))
	assert.Nil(t, p.LocalAddr(5))

	conn, err := net.DialUDP("udp4", nil, lidarAddr)
	require.NoError(t, err)
	defer conn.Close()

	packets := testutil.NewPacketBuilder(prof).Frame(nil)
	for _, pkt := range packets {
		_, err := conn.Write(pkt)
		require.NoError(t, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for frames == 0 && time.Now().Before(deadline) {
		require.NoError(t, p.Step(100*time.Millisecond))
	}
	assert.Equal(t, 1, frames)
	assert.Equal(t, len(packets), p.Parser().PacketCount())
}
