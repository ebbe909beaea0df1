package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// SerialConfig beschreibt den seriellen Port zum Embedded-Board
type SerialConfig struct {
	Port string
	Baud int
}

// SerialTransport implementiert Transport über go.bug.st/serial.
// 8N1, keine Flusskontrolle (die Bibliothek setzt weder RTS/CTS noch
// XON/XOFF, was dem Protokoll entspricht).
type SerialTransport struct {
	port    serial.Port
	name    string
	writeMu sync.Mutex
	stash   []byte // von BytesAvailable vorgelesene Bytes
}

// OpenSerial öffnet den Port mit den Protokoll-Defaults
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}

	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	return &SerialTransport{port: port, name: cfg.Port}, nil
}

// Name gibt den Gerätepfad zurück
func (s *SerialTransport) Name() string {
	return s.name
}

func (s *SerialTransport) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, 0, n)

	// Zuerst aus dem Stash bedienen
	if len(s.stash) > 0 {
		take := n
		if take > len(s.stash) {
			take = len(s.stash)
		}
		buf = append(buf, s.stash[:take]...)
		s.stash = s.stash[take:]
	}

	deadline := time.Now().Add(timeout)
	for len(buf) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("serial read %d/%d bytes: %w", len(buf), n, protocol.ErrTimeout)
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		tmp := make([]byte, n-len(buf))
		rn, err := s.port.Read(tmp)
		if err != nil {
			return nil, fmt.Errorf("serial read: %w", err)
		}
		if rn == 0 {
			// go.bug.st/serial meldet Timeout als n=0 ohne Fehler
			return nil, fmt.Errorf("serial read %d/%d bytes: %w", len(buf), n, protocol.ErrTimeout)
		}
		buf = append(buf, tmp[:rn]...)
	}

	return buf, nil
}

func (s *SerialTransport) BytesAvailable() int {
	// Kurzer nicht-blockierender Sample-Read in den Stash
	if err := s.port.SetReadTimeout(time.Millisecond); err != nil {
		return len(s.stash)
	}
	tmp := make([]byte, 512)
	if rn, err := s.port.Read(tmp); err == nil && rn > 0 {
		s.stash = append(s.stash, tmp[:rn]...)
	}
	return len(s.stash)
}

func (s *SerialTransport) ResetInputBuffer() error {
	s.stash = nil
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	return nil
}

func (s *SerialTransport) Write(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	written := 0
	for written < len(p) {
		n, err := s.port.Write(p[written:])
		if err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
		written += n
	}
	return nil
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}
