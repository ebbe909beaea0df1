package interfaces

import (
	"context"

	"github.com/timone-gs/timone-link/internal/config"
	"github.com/timone-gs/timone-link/internal/hub"
	"github.com/timone-gs/timone-link/internal/storage"
	"github.com/timone-gs/timone-link/internal/types"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State          string `json:"state"`
	LinkMode       string `json:"link_mode"`
	Peripherals    int    `json:"peripherals"`
	PollingEnabled bool   `json:"polling_enabled"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.PostgresClient
	Hub() *hub.Hub
	Profiles() []*types.PeripheralProfile
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
