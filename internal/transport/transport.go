package transport

import "time"

// Transport abstrahiert die Byte-Ebene der Verbindung zum Embedded-Board
// (serieller Port oder Simulation). Lesen darf nur von genau einem
// Goroutine-Besitzer erfolgen; Schreiben wird intern serialisiert.
type Transport interface {
	// ReadExact blockiert bis n Bytes gelesen sind oder der Timeout abläuft.
	// Bei Timeout kommt protocol.ErrTimeout, niemals ein stiller Short-Read.
	ReadExact(n int, timeout time.Duration) ([]byte, error)

	// BytesAvailable gibt die aktuell gepufferte Eingangsmenge zurück
	// (nicht-blockierend, für Health-Checks)
	BytesAvailable() int

	// ResetInputBuffer verwirft alle gepufferten Eingangs-Bytes —
	// das primäre Mittel zur Resynchronisation
	ResetInputBuffer() error

	// Write schreibt ein komplettes Frame atomar (nicht verschränkt)
	Write(p []byte) error

	Close() error
}
