package detmux

import (
	"io"
	"net"
	"sync"

	"github.com/greenpulse-data/flow.report/internal/monitoring"
)

// TCPSource accepts one streaming detector client at a time on a listen
// address and exposes its NDJSON output as a continuous byte stream.
// When a client disconnects the source waits for the next one, so a
// detector restart does not tear down the pipeline.
type TCPSource struct {
	ln net.Listener

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewTCPSource starts listening on addr for a detector connection.
func NewTCPSource(addr string) (*TCPSource, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPSource{ln: ln}, nil
}

// Addr returns the bound listen address.
func (s *TCPSource) Addr() net.Addr {
	return s.ln.Addr()
}

// Read returns bytes from the currently connected client, blocking on
// Accept when no client is connected. Returns io.EOF after Close.
func (s *TCPSource) Read(p []byte) (int, error) {
	for {
		s.mu.Lock()
		conn, closed := s.conn, s.closed
		s.mu.Unlock()

		if closed {
			return 0, io.EOF
		}

		if conn == nil {
			c, err := s.ln.Accept()
			if err != nil {
				s.mu.Lock()
				closed = s.closed
				s.mu.Unlock()
				if closed {
					return 0, io.EOF
				}
				return 0, err
			}
			monitoring.Logf("detector connected from %s", c.RemoteAddr())

			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				c.Close()
				return 0, io.EOF
			}
			s.conn = c
			s.mu.Unlock()
			continue
		}

		n, err := conn.Read(p)
		if err != nil {
			conn.Close()
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			monitoring.Logf("detector disconnected: %v", err)
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, nil
	}
}

// Close shuts the listener and any connected client.
func (s *TCPSource) Close() error {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return s.ln.Close()
}
