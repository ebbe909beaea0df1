package hub

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/config"
	"github.com/timone-gs/timone-link/internal/link"
	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/transport"
	"github.com/timone-gs/timone-link/internal/types"
)

// TelemetrySubscriber empfängt jede autonom publizierte Telemetrie.
// Callbacks laufen auf der Reader-Goroutine und dürfen nicht blockieren.
type TelemetrySubscriber func(protocol.Telemetry)

// Hub ist die Kompositionswurzel des Kommunikations-Kerns: ein Transport,
// genau ein Reader, ein Dispatcher, optional ein Poller. Externe Schichten
// (REST, WebSocket, CLI) sprechen ausschließlich SendCommand und OnTelemetry.
type Hub struct {
	cfg        *config.Config
	logger     *zap.Logger
	transport  transport.Transport
	pending    *link.PendingTable
	reader     *link.Reader
	dispatcher *link.Dispatcher
	poller     *Poller

	subsMu sync.RWMutex
	subs   []TelemetrySubscriber

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	failed  chan error
}

// New verdrahtet den Kern. profiles bestimmt die Poll-Menge (darf leer sein
// wenn Polling deaktiviert ist).
func New(cfg *config.Config, tr transport.Transport, profiles []*types.PeripheralProfile, logger *zap.Logger) *Hub {
	h := &Hub{
		cfg:       cfg,
		logger:    logger,
		transport: tr,
		pending:   link.NewPendingTable(),
		failed:    make(chan error, 1),
	}

	// Nicht gesetzte Fristen fallen auf die Firmware-Defaults zurück
	readerCfg := link.DefaultReaderConfig()
	if cfg.Link.ScanTimeout > 0 {
		readerCfg.ScanTimeout = cfg.Link.ScanTimeout
	}
	if cfg.Link.ByteTimeout > 0 {
		readerCfg.ByteTimeout = cfg.Link.ByteTimeout
	}
	if cfg.Link.FrameTimeout > 0 {
		readerCfg.FrameTimeout = cfg.Link.FrameTimeout
	}
	if cfg.Link.HealthInterval > 0 {
		readerCfg.HealthInterval = cfg.Link.HealthInterval
	}
	if cfg.Link.BacklogThreshold > 0 {
		readerCfg.BacklogThreshold = cfg.Link.BacklogThreshold
	}
	h.reader = link.NewReader(tr, h.pending, h.publish, readerCfg, logger)
	h.dispatcher = link.NewDispatcher(tr, h.pending, cfg.Link.ReplyTimeout, logger)

	if cfg.Poll.Enabled {
		h.poller = NewPoller(h.dispatcher, profiles, cfg.Poll, h.publish, logger)
	}

	return h
}

// Start startet den Reader-Loop und — falls konfiguriert — Wakeup und Poller
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}
	h.running = true

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := h.reader.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// I/O-Ausfall: nach oben melden, Reconnect ist Sache des Betreibers
			select {
			case h.failed <- err:
			default:
			}
		}
	}()

	if h.cfg.Link.WakeupOnStart {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if _, err := h.Wakeup(ctx); err != nil {
				h.logger.Warn("wakeup on start failed", zap.Error(err))
			}
		}()
	}

	if h.poller != nil {
		if err := h.poller.Start(); err != nil {
			return err
		}
	}

	h.logger.Info("hub started",
		zap.Bool("polling", h.poller != nil),
		zap.Bool("wakeup_on_start", h.cfg.Link.WakeupOnStart))
	return nil
}

// Stop beendet Poller und Reader und schließt den Transport
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel := h.cancel
	h.mu.Unlock()

	if h.poller != nil {
		h.poller.Stop()
	}
	cancel()
	h.wg.Wait()

	if err := h.transport.Close(); err != nil {
		h.logger.Warn("transport close failed", zap.Error(err))
	}
	h.logger.Info("hub stopped")
}

// Failed meldet einen fatalen Transport-Ausfall des Reader-Loops
func (h *Hub) Failed() <-chan error {
	return h.failed
}

// SendCommand schickt ein Command und liefert die dekodierte Antwort.
// Beliebig viele Aufrufer gleichzeitig; Korrelation über die PendingTable.
func (h *Hub) SendCommand(ctx context.Context, peripheral protocol.PeripheralID, cmd protocol.CommandCode, data []byte) (protocol.Record, error) {
	return h.dispatcher.Send(ctx, peripheral, cmd, data, 0)
}

// Wakeup weckt das Board aus dem Low-Power-Zustand
func (h *Hub) Wakeup(ctx context.Context) (protocol.Record, error) {
	return h.SendCommand(ctx, protocol.PeripheralSystem, protocol.CmdSystemWakeup, nil)
}

// Sleep versetzt das Board in den Low-Power-Zustand
func (h *Hub) Sleep(ctx context.Context) (protocol.Record, error) {
	return h.SendCommand(ctx, protocol.PeripheralSystem, protocol.CmdSystemSleep, nil)
}

// OnTelemetry registriert einen Subscriber für autonome Telemetrie.
// Das ist die Übergabestelle an die Web/SSE-Schicht.
func (h *Hub) OnTelemetry(fn TelemetrySubscriber) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	h.subs = append(h.subs, fn)
}

func (h *Hub) publish(tm protocol.Telemetry) {
	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	for _, fn := range h.subs {
		fn(tm)
	}
}
