package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/api/rest"
	"github.com/timone-gs/timone-link/internal/api/websocket"
	"github.com/timone-gs/timone-link/internal/config"
	"github.com/timone-gs/timone-link/internal/hub"
	"github.com/timone-gs/timone-link/internal/interfaces"
	"github.com/timone-gs/timone-link/internal/peripherals"
	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/storage"
	"github.com/timone-gs/timone-link/internal/transport"
	"github.com/timone-gs/timone-link/internal/types"
)

// LifecycleManager verdrahtet Transport, Hub, Storage und die API-Schichten
// und fährt sie in der richtigen Reihenfolge hoch und runter.
type LifecycleManager struct {
	config   *config.Config
	storage  *storage.PostgresClient
	hub      *hub.Hub
	profiles []*types.PeripheralProfile
	logger   *zap.Logger

	restServer *rest.Server
	wsHub      *websocket.Hub

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) *LifecycleManager {
	return &LifecycleManager{
		config:       cfg,
		logger:       logger,
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}
}

// Start fährt das gesamte System hoch
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting timone-link")

	lm.setState(StateInitializing)

	loader, err := peripherals.NewProfileLoader(lm.config.Peripherals.SearchPaths)
	if err != nil {
		lm.setError(err)
		return fmt.Errorf("failed to create profile loader: %w", err)
	}

	lm.profiles, err = loader.LoadAll(lm.config.Poll.Peripherals)
	if err != nil {
		lm.setError(err)
		return fmt.Errorf("failed to load peripheral profiles: %w", err)
	}

	// Optionales Telemetrie-Archiv
	if lm.config.Database.Enabled {
		lm.storage, err = storage.NewPostgresClient(lm.config.Database)
		if err != nil {
			lm.setError(err)
			return fmt.Errorf("failed to connect database: %w", err)
		}
	}

	lm.setState(StateConnecting)

	tr, err := lm.openTransport()
	if err != nil {
		lm.setError(err)
		return fmt.Errorf("failed to open transport: %w", err)
	}

	lm.hub = hub.New(lm.config, tr, lm.profiles, lm.logger)

	// WebSocket-Hub vor dem Serial-Hub starten, damit kein Frame verloren geht
	lm.wsHub = websocket.NewHub(lm.logger)
	lm.wsHub.SetCommandSender(lm.hub)
	go lm.wsHub.Run()

	lm.hub.OnTelemetry(lm.wsHub.BroadcastTelemetry)
	if lm.storage != nil {
		lm.hub.OnTelemetry(lm.archiveTelemetry)
	}

	if err := lm.hub.Start(); err != nil {
		lm.setError(err)
		return fmt.Errorf("failed to start hub: %w", err)
	}

	// Fataler Transport-Ausfall kippt das System in den Fehlerzustand
	go func() {
		select {
		case err := <-lm.hub.Failed():
			lm.logger.Error("Serial link failed", zap.Error(err))
			lm.setError(err)
		case <-lm.shutdownChan:
		}
	}()

	if err := lm.startRESTServer(); err != nil {
		lm.setError(err)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("link_mode", lm.config.Serial.Mode),
		zap.Int("peripherals", len(lm.profiles)))

	return nil
}

func (lm *LifecycleManager) openTransport() (transport.Transport, error) {
	switch lm.config.Serial.Mode {
	case "tcp":
		return transport.DialTCP(lm.config.Serial.Address, 5*time.Second)
	case "serial", "":
		return transport.OpenSerial(transport.SerialConfig{
			Port: lm.config.Serial.Port,
			Baud: lm.config.Serial.Baud,
		})
	default:
		return nil, fmt.Errorf("unknown serial mode: %q", lm.config.Serial.Mode)
	}
}

// archiveTelemetry läuft auf der Reader-Goroutine und darf nicht blockieren,
// deshalb wird der Insert abgekoppelt
func (lm *LifecycleManager) archiveTelemetry(tm protocol.Telemetry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := lm.storage.SaveTelemetry(ctx, tm); err != nil {
			lm.logger.Warn("Failed to archive telemetry",
				zap.String("name", tm.Name),
				zap.Error(err))
		}
	}()
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub)
	return lm.restServer.Start()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		close(lm.shutdownChan)

		if lm.restServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("rest api shutdown failed: %w", err)
			}
			cancel()
		}

		// Hub stoppt Poller und Reader und schließt den Transport
		if lm.hub != nil {
			lm.hub.Stop()
		}

		if lm.storage != nil {
			lm.storage.Close()
		}

		lm.setState(StateStopped)
		lm.logger.Info("Graceful shutdown completed")
	})

	return shutdownErr
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	prev := lm.currentState
	lm.currentState = state
	lm.stateMu.Unlock()

	// Verbundene Clients sehen jeden Zustandswechsel des Links
	if lm.wsHub != nil && prev != state {
		lm.wsHub.Broadcast(websocket.NewLinkStateMessage(state.String(), prev.String()))
	}
}

func (lm *LifecycleManager) setError(err error) {
	lm.setState(StateError)
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return interfaces.SystemStatus{
		State:          lm.currentState.String(),
		LinkMode:       lm.config.Serial.Mode,
		Peripherals:    len(lm.profiles),
		PollingEnabled: lm.config.Poll.Enabled,
	}
}

// Hub returns the serial hub
func (lm *LifecycleManager) Hub() *hub.Hub {
	return lm.hub
}

// Profiles returns the loaded peripheral profiles
func (lm *LifecycleManager) Profiles() []*types.PeripheralProfile {
	return lm.profiles
}

// Storage returns the storage client (nil when archiving is disabled)
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.storage
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}
