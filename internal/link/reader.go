package link

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/transport"
)

// ReaderConfig bündelt die Fristen und Schwellwerte des Lese-Loops
type ReaderConfig struct {
	// ScanTimeout: Wartezeit auf den Start-Marker pro Iteration.
	// Kurz halten, damit der Loop regelmäßig ctx und Backlog prüfen kann.
	ScanTimeout time.Duration
	// ByteTimeout: Frist für Header- und Terminator-Bytes
	ByteTimeout time.Duration
	// FrameTimeout: Frist für die komplette Payload eines Frames
	FrameTimeout time.Duration
	// HealthInterval: Abstand der Backlog-Prüfung (0 = deaktiviert)
	HealthInterval time.Duration
	// BacklogThreshold: ab so vielen gepufferten Bytes wird der
	// Eingangspuffer verworfen statt aufzuholen
	BacklogThreshold int
}

// DefaultReaderConfig entspricht den Timing-Werten der Firmware-Doku
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		ScanTimeout:      200 * time.Millisecond,
		ByteTimeout:      250 * time.Millisecond,
		FrameTimeout:     1200 * time.Millisecond,
		HealthInterval:   3 * time.Second,
		BacklogThreshold: 1024,
	}
}

// TelemetryFunc empfängt autonome Telemetrie vom Reader
type TelemetryFunc func(protocol.Telemetry)

// Reader ist der EINZIGE Leser des Transports. Genau eine Goroutine führt
// Run aus; alle anderen Komponenten erhalten Frames ausschließlich über die
// PendingTable oder den Telemetry-Callback. Zwei unabhängige Leser auf
// demselben Port zerstören die Frame-Grenzen.
type Reader struct {
	transport transport.Transport
	pending   *PendingTable
	publish   TelemetryFunc
	logger    *zap.Logger
	cfg       ReaderConfig

	noiseBytes int // seit dem letzten Log verworfene Bytes
}

// NewReader erzeugt den Frame-Reader
func NewReader(tr transport.Transport, pending *PendingTable, publish TelemetryFunc, cfg ReaderConfig, logger *zap.Logger) *Reader {
	if publish == nil {
		publish = func(protocol.Telemetry) {}
	}
	return &Reader{
		transport: tr,
		pending:   pending,
		publish:   publish,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run betreibt den Lese-Loop bis ctx abläuft oder der Transport ausfällt.
// Strukturfehler (Desync, Timeouts mitten im Frame) werden lokal behoben,
// nur I/O-Fehler beenden den Loop.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("frame reader started")
	lastHealth := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("frame reader stopped")
			return ctx.Err()
		default:
		}

		if r.cfg.HealthInterval > 0 && time.Since(lastHealth) >= r.cfg.HealthInterval {
			r.checkBacklog()
			lastHealth = time.Now()
		}

		if err := r.readFrame(); err != nil {
			r.logger.Error("transport failure, reader exiting", zap.Error(err))
			return err
		}
	}
}

// readFrame verarbeitet höchstens ein Frame pro Aufruf. Rückgabefehler sind
// ausschließlich fatale I/O-Fehler; alles andere wird geloggt und behoben.
func (r *Reader) readFrame() error {
	// 1. Auf den Start-Marker warten; alles davor ist Rauschen
	start, err := r.transport.ReadExact(1, r.cfg.ScanTimeout)
	if errors.Is(err, protocol.ErrTimeout) {
		r.flushNoiseLog()
		return nil
	}
	if err != nil {
		return err
	}
	if start[0] != protocol.ResponseByte {
		r.noiseBytes++
		return nil
	}
	r.flushNoiseLog()

	// 2. Header: Peripheral-ID und Länge
	header, err := r.transport.ReadExact(2, r.cfg.ByteTimeout)
	if errors.Is(err, protocol.ErrTimeout) {
		r.logger.Warn("timeout reading frame header, rescanning")
		return nil
	}
	if err != nil {
		return err
	}
	peripheral, length, herr := protocol.DecodeResponseHeader([]byte{start[0], header[0], header[1]})
	if herr != nil {
		// Kann nach dem Marker-Check nicht auftreten, trotzdem nicht ignorieren
		r.logger.Warn("invalid frame header, rescanning", zap.Error(herr))
		return nil
	}

	// 3. Payload innerhalb der Frame-Frist
	var payload []byte
	if length > 0 {
		payload, err = r.transport.ReadExact(length, r.cfg.FrameTimeout)
		if errors.Is(err, protocol.ErrTimeout) {
			r.logger.Warn("timeout reading frame payload, rescanning",
				zap.String("peripheral", peripheral.String()),
				zap.Int("expected_bytes", length))
			return nil
		}
		if err != nil {
			return err
		}
	}

	// 4. Terminator prüfen; bei Desync den kompletten Puffer verwerfen.
	// Lieber ein paar Frames verlieren als verschoben weiterlesen.
	term, err := r.transport.ReadExact(1, r.cfg.ByteTimeout)
	if errors.Is(err, protocol.ErrTimeout) {
		r.logger.Warn("timeout reading frame terminator, rescanning",
			zap.String("peripheral", peripheral.String()))
		return nil
	}
	if err != nil {
		return err
	}
	if verr := protocol.ValidateTerminator(term[0]); verr != nil {
		r.logger.Warn("frame terminator mismatch, resynchronizing",
			zap.String("peripheral", peripheral.String()),
			zap.Error(verr))
		if rerr := r.transport.ResetInputBuffer(); rerr != nil {
			return rerr
		}
		return nil
	}

	// 5. Gültiges Frame: wartender Aufrufer oder autonome Telemetrie.
	// Bytes nach dem Terminator bleiben für die nächste Iteration liegen.
	frame := protocol.Frame{Peripheral: peripheral, Payload: payload}
	if r.pending.Deliver(frame) {
		r.logger.Debug("delivered awaited reply",
			zap.String("peripheral", peripheral.String()),
			zap.Int("payload_bytes", len(payload)))
		return nil
	}

	rec, derr := protocol.DecodePayload(peripheral, payload)
	if derr != nil {
		// Fehlerhafte autonome Frames dürfen den Loop nicht beenden
		r.logger.Warn("undecodable autonomous frame, publishing raw",
			zap.String("peripheral", peripheral.String()),
			zap.Error(derr))
		rec = protocol.NewRawTelemetry(payload)
	}
	r.publish(protocol.NewTelemetry(peripheral, rec))
	return nil
}

// checkBacklog setzt den Eingangspuffer zurück wenn der Reader nicht mehr
// hinterherkommt. Aufholen durch schnelleres Lesen riskiert nur weitere
// Verschiebung der Frame-Grenzen.
func (r *Reader) checkBacklog() {
	n := r.transport.BytesAvailable()
	if n <= r.cfg.BacklogThreshold {
		return
	}
	r.logger.Warn("input backlog exceeds threshold, resetting buffer",
		zap.Int("buffered_bytes", n),
		zap.Int("threshold", r.cfg.BacklogThreshold))
	if err := r.transport.ResetInputBuffer(); err != nil {
		r.logger.Error("failed to reset input buffer", zap.Error(err))
	}
}

func (r *Reader) flushNoiseLog() {
	if r.noiseBytes == 0 {
		return
	}
	r.logger.Debug("discarded noise before frame start",
		zap.Int("bytes", r.noiseBytes))
	r.noiseBytes = 0
}
