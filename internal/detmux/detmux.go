// Package detmux provides an abstraction over a detection frame stream
// with the ability for multiple clients to subscribe to the
// newline-delimited JSON frames emitted by the external
// detector/tracker process.
package detmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"
)

// FrameSource is the minimal interface for a detection stream: a
// line-oriented byte stream that can be closed. This abstraction enables
// unit testing without a live detector process.
type FrameSource interface {
	Read(p []byte) (int, error)
	Close() error
}

// DetMux is a detection stream multiplexer that allows multiple clients
// to subscribe to frames from a single source.
type DetMux[T FrameSource] struct {
	source       T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	linesSeen    atomic.Int64
}

// DetMuxInterface defines the interface for the DetMux type.
type DetMuxInterface interface {
	// Subscribe creates a new channel for receiving frame lines from
	// the source. The channel ID identifies the channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads lines from the source and fans them out to
	// subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and the underlying source.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// New creates a DetMux instance backed by the given frame source.
func New[T FrameSource](source T) *DetMux[T] {
	return &DetMux[T]{
		source:      source,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *DetMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (m *DetMux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Monitor reads frame lines from the source and sends them to
// subscribers. A subscriber that cannot keep up misses lines rather than
// stalling the stream.
func (m *DetMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.source)
	scan.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer
	// loop can await lines and context cancellation together.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.linesSeen.Add(1)

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// skip a full subscriber so the stream keeps moving
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *DetMux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.source.Close()
}

// AttachAdminRoutes attaches a stream status endpoint under /debug/.
func (m *DetMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("detmux", "detection stream status", func(w http.ResponseWriter, r *http.Request) {
		m.subscriberMu.Lock()
		subs := len(m.subscribers)
		m.subscriberMu.Unlock()
		fmt.Fprintf(w, "lines seen: %d\nsubscribers: %d\n", m.linesSeen.Load(), subs)
	})
}
