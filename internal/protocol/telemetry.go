package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"
)

// Record ist ein dekodierter Telemetrie-Datensatz eines Peripherals
type Record interface {
	TelemetryKind() string
}

// Telemetry ist die Publish-Einheit des Hubs: ein dekodierter Datensatz
// plus Herkunft und Empfangszeitpunkt. Unveränderlich nach Erzeugung.
type Telemetry struct {
	Peripheral PeripheralID `json:"peripheral_id"`
	Name       string       `json:"peripheral_name"`
	Kind       string       `json:"kind"`
	Record     Record       `json:"data"`
	ReceivedAt time.Time    `json:"received_at"`
}

// NewTelemetry baut die Publish-Einheit für einen dekodierten Datensatz
func NewTelemetry(peripheral PeripheralID, rec Record) Telemetry {
	return Telemetry{
		Peripheral: peripheral,
		Name:       peripheral.String(),
		Kind:       rec.TelemetryKind(),
		Record:     rec,
		ReceivedAt: time.Now(),
	}
}

// Heartbeat entspricht WireHeartbeat_t (6 Bytes, little-endian)
type Heartbeat struct {
	Version       uint8  `json:"version"`
	UptimeSeconds uint32 `json:"uptime_seconds"`
	SystemState   uint8  `json:"system_state"`
}

func (h *Heartbeat) TelemetryKind() string { return "heartbeat" }

func (h *Heartbeat) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeHeartbeat)
	b[0] = h.Version
	binary.LittleEndian.PutUint32(b[1:5], h.UptimeSeconds)
	b[5] = h.SystemState
	return b, nil
}

// DecodeHeartbeat parst WireHeartbeat_t
func DecodeHeartbeat(payload []byte) (*Heartbeat, error) {
	if len(payload) != SizeHeartbeat {
		return nil, &DecodeError{Peripheral: PeripheralSystem, Expected: SizeHeartbeat, Actual: len(payload)}
	}
	return &Heartbeat{
		Version:       payload[0],
		UptimeSeconds: binary.LittleEndian.Uint32(payload[1:5]),
		SystemState:   payload[5],
	}, nil
}

// FullStatus entspricht WireStatus_t (20 Bytes, little-endian)
type FullStatus struct {
	Version       uint8  `json:"version"`
	UptimeSeconds uint32 `json:"uptime_seconds"`
	SystemState   uint8  `json:"system_state"`
	SensorFlags   uint8  `json:"sensor_flags"`
	PktCountLoRa  uint16 `json:"pkt_count_lora"`
	PktCount433   uint16 `json:"pkt_count_433"`
	WakeupTime    uint32 `json:"wakeup_time"`
	HeapFree      uint32 `json:"heap_free"`
	ChipRevision  uint8  `json:"chip_revision"`
}

func (s *FullStatus) TelemetryKind() string { return "status" }

func (s *FullStatus) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeStatus)
	b[0] = s.Version
	binary.LittleEndian.PutUint32(b[1:5], s.UptimeSeconds)
	b[5] = s.SystemState
	b[6] = s.SensorFlags
	binary.LittleEndian.PutUint16(b[7:9], s.PktCountLoRa)
	binary.LittleEndian.PutUint16(b[9:11], s.PktCount433)
	binary.LittleEndian.PutUint32(b[11:15], s.WakeupTime)
	binary.LittleEndian.PutUint32(b[15:19], s.HeapFree)
	b[19] = s.ChipRevision
	return b, nil
}

// DecodeFullStatus parst WireStatus_t
func DecodeFullStatus(payload []byte) (*FullStatus, error) {
	if len(payload) != SizeStatus {
		return nil, &DecodeError{Peripheral: PeripheralSystem, Expected: SizeStatus, Actual: len(payload)}
	}
	return &FullStatus{
		Version:       payload[0],
		UptimeSeconds: binary.LittleEndian.Uint32(payload[1:5]),
		SystemState:   payload[5],
		SensorFlags:   payload[6],
		PktCountLoRa:  binary.LittleEndian.Uint16(payload[7:9]),
		PktCount433:   binary.LittleEndian.Uint16(payload[9:11]),
		WakeupTime:    binary.LittleEndian.Uint32(payload[11:15]),
		HeapFree:      binary.LittleEndian.Uint32(payload[15:19]),
		ChipRevision:  payload[19],
	}, nil
}

// RadioLinkData entspricht WireLoRa_t / Wire433_t (74 Bytes, little-endian).
// Payload wird beim Dekodieren auf PayloadLength gekürzt.
type RadioLinkData struct {
	Version       uint8   `json:"version"`
	PacketCount   uint16  `json:"packet_count"`
	RSSI          int16   `json:"rssi"`
	SNR           float32 `json:"snr"`
	PayloadLength uint8   `json:"payload_length"`
	Payload       []byte  `json:"payload"`
}

func (r *RadioLinkData) TelemetryKind() string { return "radio" }

func (r *RadioLinkData) MarshalBinary() ([]byte, error) {
	if len(r.Payload) > RadioPayloadMax {
		return nil, &EncodingError{PayloadLen: len(r.Payload)}
	}
	b := make([]byte, SizeRadio)
	b[0] = r.Version
	binary.LittleEndian.PutUint16(b[1:3], r.PacketCount)
	binary.LittleEndian.PutUint16(b[3:5], uint16(r.RSSI))
	binary.LittleEndian.PutUint32(b[5:9], math.Float32bits(r.SNR))
	b[9] = r.PayloadLength
	copy(b[10:], r.Payload)
	return b, nil
}

// DecodeRadioLinkData parst WireLoRa_t bzw. Wire433_t (identisches Layout)
func DecodeRadioLinkData(peripheral PeripheralID, payload []byte) (*RadioLinkData, error) {
	if len(payload) != SizeRadio {
		return nil, &DecodeError{Peripheral: peripheral, Expected: SizeRadio, Actual: len(payload)}
	}
	r := &RadioLinkData{
		Version:       payload[0],
		PacketCount:   binary.LittleEndian.Uint16(payload[1:3]),
		RSSI:          int16(binary.LittleEndian.Uint16(payload[3:5])),
		SNR:           math.Float32frombits(binary.LittleEndian.Uint32(payload[5:9])),
		PayloadLength: payload[9],
	}
	n := int(r.PayloadLength)
	if n > RadioPayloadMax {
		n = RadioPayloadMax
	}
	// Nie nil: auch ein leeres Paket hat eine Payload, nur eine leere
	r.Payload = make([]byte, 0, n)
	r.Payload = append(r.Payload, payload[10:10+n]...)
	return r, nil
}

// BarometricReading entspricht WireBarometer_t (17 Bytes, little-endian)
type BarometricReading struct {
	Version      uint8   `json:"version"`
	Timestamp    uint32  `json:"timestamp"`
	PressurePa   float32 `json:"pressure_pa"`
	TemperatureC float32 `json:"temperature_c"`
	AltitudeM    float32 `json:"altitude_m"`
}

func (b *BarometricReading) TelemetryKind() string { return "barometer" }

func (b *BarometricReading) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SizeBarometer)
	buf[0] = b.Version
	binary.LittleEndian.PutUint32(buf[1:5], b.Timestamp)
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(b.PressurePa))
	binary.LittleEndian.PutUint32(buf[9:13], math.Float32bits(b.TemperatureC))
	binary.LittleEndian.PutUint32(buf[13:17], math.Float32bits(b.AltitudeM))
	return buf, nil
}

// DecodeBarometricReading parst WireBarometer_t
func DecodeBarometricReading(payload []byte) (*BarometricReading, error) {
	if len(payload) != SizeBarometer {
		return nil, &DecodeError{Peripheral: PeripheralBarometer, Expected: SizeBarometer, Actual: len(payload)}
	}
	return &BarometricReading{
		Version:      payload[0],
		Timestamp:    binary.LittleEndian.Uint32(payload[1:5]),
		PressurePa:   math.Float32frombits(binary.LittleEndian.Uint32(payload[5:9])),
		TemperatureC: math.Float32frombits(binary.LittleEndian.Uint32(payload[9:13])),
		AltitudeM:    math.Float32frombits(binary.LittleEndian.Uint32(payload[13:17])),
	}, nil
}

// CurrentVoltageReading entspricht WireCurrent_t (19 Bytes, little-endian)
type CurrentVoltageReading struct {
	Version   uint8   `json:"version"`
	Timestamp uint32  `json:"timestamp"`
	CurrentA  float32 `json:"current_a"`
	VoltageV  float32 `json:"voltage_v"`
	PowerW    float32 `json:"power_w"`
	RawADC    int16   `json:"raw_adc"`
}

func (c *CurrentVoltageReading) TelemetryKind() string { return "current" }

func (c *CurrentVoltageReading) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SizeCurrent)
	buf[0] = c.Version
	binary.LittleEndian.PutUint32(buf[1:5], c.Timestamp)
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(c.CurrentA))
	binary.LittleEndian.PutUint32(buf[9:13], math.Float32bits(c.VoltageV))
	binary.LittleEndian.PutUint32(buf[13:17], math.Float32bits(c.PowerW))
	binary.LittleEndian.PutUint16(buf[17:19], uint16(c.RawADC))
	return buf, nil
}

// DecodeCurrentVoltageReading parst WireCurrent_t
func DecodeCurrentVoltageReading(payload []byte) (*CurrentVoltageReading, error) {
	if len(payload) != SizeCurrent {
		return nil, &DecodeError{Peripheral: PeripheralCurrent, Expected: SizeCurrent, Actual: len(payload)}
	}
	return &CurrentVoltageReading{
		Version:   payload[0],
		Timestamp: binary.LittleEndian.Uint32(payload[1:5]),
		CurrentA:  math.Float32frombits(binary.LittleEndian.Uint32(payload[5:9])),
		VoltageV:  math.Float32frombits(binary.LittleEndian.Uint32(payload[9:13])),
		PowerW:    math.Float32frombits(binary.LittleEndian.Uint32(payload[13:17])),
		RawADC:    int16(binary.LittleEndian.Uint16(payload[17:19])),
	}, nil
}

// Acknowledgement: 1-Byte-Antwort des SYSTEM-Peripherals mit dem
// zurückgespiegelten Command-Byte (z.B. nach WAKEUP)
type Acknowledgement struct {
	Command CommandCode `json:"ack_command"`
}

func (a *Acknowledgement) TelemetryKind() string { return "ack" }

func (a *Acknowledgement) MarshalBinary() ([]byte, error) {
	return []byte{byte(a.Command)}, nil
}

// RawTelemetry: Fallback für unbekannte Peripherals oder nicht
// dekodierbare Payloads. Der Frame geht nicht verloren, nur die Deutung.
type RawTelemetry struct {
	PayloadHex string `json:"payload_hex"`
}

func (r *RawTelemetry) TelemetryKind() string { return "raw" }

// NewRawTelemetry verpackt eine Payload als Hex-String
func NewRawTelemetry(payload []byte) *RawTelemetry {
	return &RawTelemetry{PayloadHex: hex.EncodeToString(payload)}
}

// DecodePayload interpretiert eine Payload anhand der Peripheral-ID.
// SYSTEM-Antworten werden über die Payload-Größe unterschieden
// (6 → Heartbeat, 20 → FullStatus, 1 → Ack), wie von der Firmware definiert.
func DecodePayload(peripheral PeripheralID, payload []byte) (Record, error) {
	switch peripheral {
	case PeripheralSystem:
		switch len(payload) {
		case SizeHeartbeat:
			return DecodeHeartbeat(payload)
		case SizeStatus:
			return DecodeFullStatus(payload)
		case SizeAck:
			return &Acknowledgement{Command: CommandCode(payload[0])}, nil
		default:
			return nil, &DecodeError{Peripheral: peripheral, Expected: SizeStatus, Actual: len(payload)}
		}
	case PeripheralLoRa915, PeripheralLoRa433:
		return DecodeRadioLinkData(peripheral, payload)
	case PeripheralBarometer:
		return DecodeBarometricReading(payload)
	case PeripheralCurrent:
		return DecodeCurrentVoltageReading(payload)
	default:
		return nil, &DecodeError{Peripheral: peripheral, Expected: 0, Actual: len(payload)}
	}
}
