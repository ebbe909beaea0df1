package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timone-gs/timone-link/internal/protocol"
)

const simBufferSize = 4096

// Sim ist ein In-Memory-Transport für Tests und den --sim Betrieb ohne
// angeschlossene Hardware. Eingehende Bytes werden über Inject eingespeist,
// ausgehende Frames landen in Writes bzw. im optionalen OnWrite-Hook.
type Sim struct {
	data    chan byte
	writes  chan []byte
	onWrite func([]byte)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	resets atomic.Int32
}

// NewSim erzeugt einen Simulations-Transport
func NewSim() *Sim {
	return &Sim{
		data:   make(chan byte, simBufferSize),
		writes: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// Inject speist eingehende Bytes ein (Device → Host Richtung)
func (s *Sim) Inject(p []byte) {
	for _, b := range p {
		select {
		case s.data <- b:
		case <-s.done:
			return
		}
	}
}

// OnWrite registriert einen Hook, der synchron für jedes geschriebene
// Frame aufgerufen wird (Auto-Responder in Tests)
func (s *Sim) OnWrite(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = fn
}

// Writes liefert die geschriebenen Frames in Schreib-Reihenfolge
func (s *Sim) Writes() <-chan []byte {
	return s.writes
}

func (s *Sim) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, 0, n)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for len(buf) < n {
		select {
		case b := <-s.data:
			buf = append(buf, b)
		case <-timer.C:
			return nil, fmt.Errorf("sim read %d/%d bytes: %w", len(buf), n, protocol.ErrTimeout)
		case <-s.done:
			return nil, protocol.ErrNotConnected
		}
	}
	return buf, nil
}

func (s *Sim) BytesAvailable() int {
	return len(s.data)
}

func (s *Sim) ResetInputBuffer() error {
	s.resets.Add(1)
	for {
		select {
		case <-s.data:
		default:
			return nil
		}
	}
}

// ResetCount zählt die ResetInputBuffer-Aufrufe (für Resync-Tests)
func (s *Sim) ResetCount() int {
	return int(s.resets.Load())
}

func (s *Sim) Write(p []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return protocol.ErrNotConnected
	}
	hook := s.onWrite
	s.mu.Unlock()

	frame := append([]byte(nil), p...)
	select {
	case s.writes <- frame:
	default:
		// Testpuffer voll, ältestes Frame verwerfen
		<-s.writes
		s.writes <- frame
	}

	if hook != nil {
		hook(frame)
	}
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
