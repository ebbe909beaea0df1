package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TelemetryEntry ist eine archivierte Telemetrie-Zeile. Das dekodierte
// Record landet als JSONB in der Datenbank, damit unterschiedliche
// Payload-Typen in einer Tabelle liegen können.
type TelemetryEntry struct {
	ID         uuid.UUID       `json:"id"`
	Peripheral int             `json:"peripheral"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Record     json.RawMessage `json:"record"`
	ReceivedAt time.Time       `json:"received_at"`
}
