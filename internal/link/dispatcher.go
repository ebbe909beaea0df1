package link

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/transport"
)

// Dispatcher verschickt Commands und korreliert Antworten über die
// PendingTable. Er liest NIE selbst vom Transport — das ist allein Sache
// des Readers. Beliebig viele Goroutinen dürfen Send gleichzeitig aufrufen.
type Dispatcher struct {
	transport    transport.Transport
	pending      *PendingTable
	logger       *zap.Logger
	replyTimeout time.Duration
}

// NewDispatcher erzeugt den Command-Dispatcher. replyTimeout ist die
// Default-Frist für Send-Aufrufe mit timeout=0.
func NewDispatcher(tr transport.Transport, pending *PendingTable, replyTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if replyTimeout <= 0 {
		replyTimeout = 1200 * time.Millisecond
	}
	return &Dispatcher{
		transport:    tr,
		pending:      pending,
		logger:       logger,
		replyTimeout: replyTimeout,
	}
}

// Send schickt ein Command und blockiert bis zur dekodierten Antwort,
// Timeout oder ctx-Abbruch. Ein zweites Send auf dasselbe Peripheral
// verdrängt die offene Registrierung: der erste Aufrufer läuft in den
// Timeout, der zweite bekommt die nächste passende Antwort. Kein Auto-Retry.
func (d *Dispatcher) Send(ctx context.Context, peripheral protocol.PeripheralID, cmd protocol.CommandCode, data []byte, timeout time.Duration) (protocol.Record, error) {
	if timeout <= 0 {
		timeout = d.replyTimeout
	}

	frame, err := protocol.EncodeCommand(peripheral, cmd, data)
	if err != nil {
		return nil, err
	}

	// Registrieren VOR dem Schreiben, sonst kann eine schnelle Antwort
	// zwischen Write und Registrierung verloren gehen
	reg, prev := d.pending.InsertOrReplace(peripheral)
	if prev != nil {
		d.logger.Warn("superseding pending reply",
			zap.String("peripheral", peripheral.String()),
			zap.Duration("previous_age", prev.Age()))
	}

	if err := d.transport.Write(frame); err != nil {
		d.pending.Remove(reg)
		return nil, fmt.Errorf("write command %s to %s: %w", cmd, peripheral, err)
	}

	d.logger.Debug("command sent",
		zap.String("peripheral", peripheral.String()),
		zap.String("command", cmd.String()),
		zap.Int("data_bytes", len(data)))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-reg.ch:
		rec, derr := protocol.DecodePayload(reply.Peripheral, reply.Payload)
		if derr != nil {
			return nil, derr
		}
		return rec, nil
	case <-timer.C:
		d.pending.Remove(reg)
		return nil, fmt.Errorf("%s %s: %w", peripheral, cmd, protocol.ErrTimeout)
	case <-ctx.Done():
		d.pending.Remove(reg)
		return nil, ctx.Err()
	}
}
