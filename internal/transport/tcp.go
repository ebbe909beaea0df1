package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// TCPTransport spricht das serielle Protokoll über eine TCP-Verbindung,
// typischerweise zum Device-Simulator (cmd/simdevice) oder zu einem
// ser2net-Gateway.
type TCPTransport struct {
	conn    net.Conn
	writeMu sync.Mutex
	stash   []byte
}

// DialTCP stellt die Verbindung her
func DialTCP(address string, timeout time.Duration) (*TCPTransport, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &TCPTransport{conn: conn}, nil
}

func (t *TCPTransport) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, 0, n)

	if len(t.stash) > 0 {
		take := n
		if take > len(t.stash) {
			take = len(t.stash)
		}
		buf = append(buf, t.stash[:take]...)
		t.stash = t.stash[take:]
	}
	if len(buf) == n {
		return buf, nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	rest := make([]byte, n-len(buf))
	read, err := io.ReadFull(t.conn, rest)
	buf = append(buf, rest[:read]...)
	if err != nil {
		if isTimeout(err) {
			// Angelesene Bytes zurücklegen, kein stiller Short-Read
			t.stash = append(buf, t.stash...)
			return nil, fmt.Errorf("tcp read %d/%d bytes: %w", len(buf), n, protocol.ErrTimeout)
		}
		return nil, fmt.Errorf("tcp read: %w", err)
	}
	return buf, nil
}

func (t *TCPTransport) BytesAvailable() int {
	// Kurzer Sample-Read in den Stash, analog zum seriellen Transport
	if err := t.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return len(t.stash)
	}
	tmp := make([]byte, 512)
	if n, err := t.conn.Read(tmp); err == nil && n > 0 {
		t.stash = append(t.stash, tmp[:n]...)
	}
	return len(t.stash)
}

func (t *TCPTransport) ResetInputBuffer() error {
	t.stash = nil
	// Abfließen lassen bis die Leitung für einen Moment still ist
	tmp := make([]byte, 1024)
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond)); err != nil {
			return err
		}
		n, err := t.conn.Read(tmp)
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return fmt.Errorf("drain input: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

func (t *TCPTransport) Write(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
