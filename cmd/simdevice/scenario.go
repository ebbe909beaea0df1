package main

import "time"

// Scenario beschreibt das simulierte Board. Alle Felder haben Defaults,
// eine YAML-Datei überschreibt nur was sie nennt.
type Scenario struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SystemState       uint8         `yaml:"system_state"`

	Barometer BarometerScenario `yaml:"barometer"`
	Current   CurrentScenario   `yaml:"current"`
	Radio     RadioScenario     `yaml:"radio"`

	Corruption CorruptionScenario `yaml:"corruption"`
}

type BarometerScenario struct {
	PressurePa   float32 `yaml:"pressure_pa"`
	TemperatureC float32 `yaml:"temperature_c"`
	AltitudeM    float32 `yaml:"altitude_m"`
	Jitter       float32 `yaml:"jitter"` // relative Streuung pro Messung
}

type CurrentScenario struct {
	CurrentA float32 `yaml:"current_a"`
	VoltageV float32 `yaml:"voltage_v"`
	PowerW   float32 `yaml:"power_w"`
}

type RadioScenario struct {
	RSSI    int16   `yaml:"rssi"`
	SNR     float32 `yaml:"snr"`
	Payload string  `yaml:"payload"` // Hex-encoded
}

// CorruptionScenario lässt jeden n-ten Frame mit kaputtem Terminator raus,
// um die Resync-Logik des Hosts zu testen
type CorruptionScenario struct {
	Enabled bool `yaml:"enabled"`
	EveryN  int  `yaml:"every_n"`
}

func DefaultScenario() *Scenario {
	return &Scenario{
		HeartbeatInterval: 2 * time.Second,
		SystemState:       1,
		Barometer: BarometerScenario{
			PressurePa:   101325,
			TemperatureC: 21.5,
			AltitudeM:    120,
			Jitter:       0.001,
		},
		Current: CurrentScenario{
			CurrentA: 1.2,
			VoltageV: 12.1,
			PowerW:   14.5,
		},
		Radio: RadioScenario{
			RSSI: -92,
			SNR:  7.5,
		},
		Corruption: CorruptionScenario{
			EveryN: 20,
		},
	}
}
