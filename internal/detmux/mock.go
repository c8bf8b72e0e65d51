package detmux

import (
	"io"
	"time"
)

// MockSource implements FrameSource for dev mode and tests by replaying
// a fixture byte blob on a fixed cadence, simulating a detector that
// streams frames in real time.
type MockSource struct {
	io.Reader
	done chan struct{}
}

// NewMockSource creates a MockSource that writes fixture repeatedly
// every period until closed. fixture should contain complete
// newline-terminated frame lines.
func NewMockSource(fixture []byte, period time.Duration) *MockSource {
	r, w := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer w.Close()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.Write(fixture); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return &MockSource{Reader: r, done: done}
}

// Close stops the replay goroutine.
func (m *MockSource) Close() error {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	return nil
}

// NewMockDetMux creates a DetMux backed by a mock source replaying the
// given fixture twice a second, mirroring live detector cadence.
func NewMockDetMux(fixture []byte) *DetMux[*MockSource] {
	return New(NewMockSource(fixture, 500*time.Millisecond))
}
