package network

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSource_DeliversPerHandle(t *testing.T) {
	t.Parallel()

	m := NewMockSource([]byte("a"))
	m.Add(1, []byte("imu"))

	buf := make([]byte, 8)
	ready, err := m.Wait(0)
	require.NoError(t, err)
	assert.True(t, ready.Has(0))

	_, err = m.Read(1, buf)
	assert.ErrorIs(t, err, ErrWouldBlock)
	n, err := m.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, "a", string(buf[:n]))

	ready, _ = m.Wait(0)
	assert.True(t, ready.Has(1))
	n, err = m.Read(1, buf)
	require.NoError(t, err)
	assert.Equal(t, "imu", string(buf[:n]))

	assert.True(t, m.Drained())
	ready, err = m.Wait(0)
	require.NoError(t, err)
	assert.True(t, ready.Empty())
	assert.Equal(t, 3, m.WaitCalls)
}

func TestMockSource_Errors(t *testing.T) {
	t.Parallel()

	m := NewMockSource([]byte("a"))
	boom := errors.New("boom")
	m.WaitError = boom
	_, err := m.Wait(0)
	assert.ErrorIs(t, err, boom)

	m.ReadError = boom
	_, err = m.Read(0, make([]byte, 1))
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.Close())
	_, err = m.Wait(0)
	assert.ErrorIs(t, err, net.ErrClosed)
	_, err = m.Read(0, make([]byte, 1))
	assert.ErrorIs(t, err, net.ErrClosed)
}
