// Package nmctest provides an in-process NMC server for tests.
package nmctest

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/nmc"
	"github.com/bft-labs/rankflow/pkg/wire"
)

// Server accepts a single client on a loopback port.
type Server struct {
	t     testing.TB
	ln    net.Listener
	conns chan net.Conn
	conn  net.Conn
}

// NewServer listens on 127.0.0.1 with a random port. It is closed by t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{t: t, ln: ln, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				close(s.conns)
				return
			}
			s.conns <- conn
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// Host returns the listen host.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listen port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Config returns a client config pointing at the server.
func (s *Server) Config() nmc.Config {
	return nmc.Config{Host: s.Host(), Port: s.Port(), PollDelay: time.Millisecond}
}

// Accept waits for the client and reads its registration.
func (s *Server) Accept(ctx context.Context) string {
	s.t.Helper()
	select {
	case conn, ok := <-s.conns:
		require.True(s.t, ok, "listener closed")
		s.conn = conn
	case <-ctx.Done():
		s.t.Fatalf("no client connected: %v", ctx.Err())
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer s.conn.SetReadDeadline(time.Time{})

	hdr := make([]byte, 4)
	_, err := io.ReadFull(s.conn, hdr)
	require.NoError(s.t, err)
	units, err := wire.Int32(hdr)
	require.NoError(s.t, err)

	raw := make([]byte, int(units)*2)
	_, err = io.ReadFull(s.conn, raw)
	require.NoError(s.t, err)
	name, err := wire.DecodeName(raw)
	require.NoError(s.t, err)
	return name
}

// Write sends raw bytes. Write errors are returned rather than failing the
// test since the client may already have gone away.
func (s *Server) Write(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// SendFrame sends f as a data frame from client 1.
func (s *Server) SendFrame(f domain.Frame) error {
	return s.Write(nmc.EncodeFrameMessage(1, f))
}

// SendPoll sends a keep-alive.
func (s *Server) SendPoll() error {
	return s.Write(nmc.EncodeServerCommand(nmc.CommandPoll))
}

// SendDisconnect asks the client to leave.
func (s *Server) SendDisconnect() error {
	return s.Write(nmc.EncodeServerCommand(nmc.CommandDisconnect))
}

// SendClientEvent sends an add or remove client command.
func (s *Server) SendClientEvent(cmd, id int32, name string) error {
	b, err := nmc.EncodeClientEvent(cmd, id, name)
	require.NoError(s.t, err)
	return s.Write(b)
}

// CloseConn drops the current client connection.
func (s *Server) CloseConn() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Close stops the listener and drops the client.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.CloseConn()
}

// Frame builds a frame whose sample at (channel c, sample i) is base+c*24+i.
func Frame(base int16) domain.Frame {
	var f domain.Frame
	f.SampleRateRaw = 1000
	for c := 0; c < domain.FrameChannels; c++ {
		for i := 0; i < domain.FrameSamples; i++ {
			f.Samples[c][i] = base + int16(c*domain.FrameSamples+i)
		}
	}
	return f
}
