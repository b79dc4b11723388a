package network

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

// Sensor TCP command interface defaults.
const (
	DefaultFetchPort    = 7501
	DefaultFetchTimeout = 10 * time.Second
	maxResponseSize     = 4 * 1024 * 1024
)

// metadataCommands maps each metadata section to the command that returns it.
var metadataCommands = []struct {
	section string
	command string
}{
	{"sensor_info", "get_sensor_info"},
	{"lidar_data_format", "get_lidar_data_format"},
	{"config_params", "get_config_param active"},
	{"beam_intrinsics", "get_beam_intrinsics"},
}

// FetchConn is a blocking, deadline-bounded connection to the sensor's TCP
// command port. It is used only during initialisation.
type FetchConn struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// DialFetch connects to host, which may omit the port. A zero timeout uses
// DefaultFetchTimeout. Failures are *SocketError.
func DialFetch(ctx context.Context, host string, timeout time.Duration) (*FetchConn, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(DefaultFetchPort))
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &SocketError{Op: "dial", Addr: addr, Err: err}
	}
	diagf("connected to sensor command port %s", addr)
	return &FetchConn{conn: conn, r: bufio.NewReader(conn), timeout: timeout}, nil
}

// Command sends one newline-terminated command and returns the single-line
// reply without its terminator.
func (c *FetchConn) Command(cmd string) ([]byte, error) {
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send %q: %w", cmd, err)
	}
	var line []byte
	for {
		chunk, isPrefix, err := c.r.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("reply to %q: %w", cmd, err)
		}
		line = append(line, chunk...)
		if len(line) > maxResponseSize {
			return nil, fmt.Errorf("reply to %q exceeds %d bytes", cmd, maxResponseSize)
		}
		if !isPrefix {
			break
		}
	}
	tracef("%s -> %d bytes", cmd, len(line))
	return line, nil
}

// CommandJSON sends cmd and decodes a JSON object reply.
func (c *FetchConn) CommandJSON(cmd string) (profile.Attributes, error) {
	line, err := c.Command(cmd)
	if err != nil {
		return nil, err
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, fmt.Errorf("%q: sensor replied %q", cmd, truncate(line, 80))
	}
	attrs, err := profile.ParseMetadata(line)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", cmd, err)
	}
	return attrs, nil
}

// Close closes the connection.
func (c *FetchConn) Close() error {
	return c.conn.Close()
}

// FetchMetadata downloads the sensor description from host and assembles
// it into one attribute tree keyed by section, the same shape as a saved
// metadata file. Sections the sensor does not support are skipped, except
// lidar_data_format, which is required.
func FetchMetadata(ctx context.Context, host string, timeout time.Duration) (profile.Attributes, error) {
	c, err := DialFetch(ctx, host, timeout)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	attrs := profile.Attributes{}
	for _, mc := range metadataCommands {
		section, err := c.CommandJSON(mc.command)
		if err != nil {
			if mc.section == "lidar_data_format" {
				return nil, fmt.Errorf("failed to fetch metadata: %w", err)
			}
			opsf("skipping %s: %v", mc.section, err)
			continue
		}
		attrs[mc.section] = section
	}
	return attrs, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
