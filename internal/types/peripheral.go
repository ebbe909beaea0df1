package types

// PeripheralProfile beschreibt ein pollbares Peripheral des Embedded-Boards.
// Profile liegen als JSON in den konfigurierten Suchpfaden und werden gegen
// das eingebettete Schema validiert.
type PeripheralProfile struct {
	Name         string `json:"name"`
	PeripheralID uint8  `json:"peripheral_id"`
	PollCommand  uint8  `json:"poll_command"`
	Payload      string `json:"payload"` // erwartete Telemetrie-Art der Antwort
	Description  string `json:"description,omitempty"`
}
