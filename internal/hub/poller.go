package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/config"
	"github.com/timone-gs/timone-link/internal/link"
	"github.com/timone-gs/timone-link/internal/peripherals"
	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/types"
)

// Poller fragt die konfigurierten Peripherals zyklisch über den Dispatcher
// ab. Er ist nur ein weiterer Schreiber — gelesen wird ausschließlich vom
// FrameReader. Da Send bis zur Antwort blockiert, brauchen die Commands
// keinen künstlichen Abstand zueinander. Erfragte Antworten gehen über
// publish an dieselben Subscriber wie autonome Telemetrie.
type Poller struct {
	dispatcher   *link.Dispatcher
	profiles     []*types.PeripheralProfile
	publish      link.TelemetryFunc
	interval     time.Duration
	startupDelay time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewPoller(dispatcher *link.Dispatcher, profiles []*types.PeripheralProfile, cfg config.PollConfig, publish link.TelemetryFunc, logger *zap.Logger) *Poller {
	if publish == nil {
		publish = func(protocol.Telemetry) {}
	}
	return &Poller{
		dispatcher:   dispatcher,
		profiles:     profiles,
		publish:      publish,
		interval:     cfg.Interval,
		startupDelay: cfg.StartupDelay,
		logger:       logger,
	}
}

// Start startet das zyklische Polling
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.running = true
	p.stopChan = make(chan struct{})
	p.wg.Add(1)

	go p.pollLoop()

	p.logger.Info("poller started",
		zap.Int("peripherals", len(p.profiles)),
		zap.Duration("interval", p.interval))

	return nil
}

// Stop stoppt das Polling
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info("poller stopped")
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	// Dem Board nach dem Start Zeit geben bevor der erste Zyklus läuft
	if p.startupDelay > 0 {
		select {
		case <-p.stopChan:
			return
		case <-time.After(p.startupDelay):
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollCycle()
	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.pollCycle()
		}
	}
}

func (p *Poller) pollCycle() {
	for _, profile := range p.profiles {
		select {
		case <-p.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		rec, err := p.dispatcher.Send(ctx, peripherals.PeripheralID(profile), peripherals.PollCommand(profile), nil, 0)
		cancel()
		if err != nil {
			// Ein stummes Peripheral beendet den Zyklus nicht
			p.logger.Warn("poll failed",
				zap.String("peripheral", profile.Name),
				zap.Error(err))
			continue
		}

		// Erfragte Telemetrie ist für die Subscriber genauso wertvoll wie
		// autonome — ohne Publish sähe die GUI im Poll-Betrieb fast nichts
		p.publish(protocol.NewTelemetry(peripherals.PeripheralID(profile), rec))
	}
}

// IsRunning gibt an ob der Poller läuft
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
