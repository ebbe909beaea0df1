package main

import (
	"encoding/hex"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// Device simuliert das Embedded-Board auf einer TCP-Verbindung: es
// beantwortet Command-Frames und schickt unaufgefordert Heartbeats.
type Device struct {
	scenario *Scenario
	conn     net.Conn
	logger   *zap.Logger

	writeMu    sync.Mutex
	started    time.Time
	frameCount int
	pktCount   uint16

	// awake wird von der Verbindungs-Goroutine geschaltet und vom
	// Heartbeat-Ticker gelesen
	awake atomic.Bool
}

func NewDevice(scenario *Scenario, conn net.Conn, logger *zap.Logger) *Device {
	d := &Device{
		scenario: scenario,
		conn:     conn,
		logger:   logger,
		started:  time.Now(),
	}
	d.awake.Store(true)
	return d
}

// Serve blockiert bis die Verbindung endet
func (d *Device) Serve() {
	defer d.conn.Close()

	done := make(chan struct{})
	go d.heartbeatLoop(done)
	defer close(done)

	buf := make([]byte, 0, 512)
	tmp := make([]byte, 256)

	for {
		n, err := d.conn.Read(tmp)
		if err != nil {
			if err != io.EOF {
				d.logger.Warn("Read failed", zap.Error(err))
			}
			return
		}
		buf = append(buf, tmp[:n]...)
		buf = d.consumeFrames(buf)
	}
}

// consumeFrames parst alle vollständigen Command-Frames aus buf und gibt
// den unverbrauchten Rest zurück
func (d *Device) consumeFrames(buf []byte) []byte {
	for {
		// Bis zum HELLO-Byte vorspulen
		start := -1
		for i, b := range buf {
			if b == protocol.HelloByte {
				start = i
				break
			}
		}
		if start < 0 {
			return buf[:0]
		}
		buf = buf[start:]

		// HELLO + Peripheral + Length
		if len(buf) < 3 {
			return buf
		}
		payloadLen := int(buf[2])
		total := 3 + payloadLen + 1
		if len(buf) < total {
			return buf
		}

		frame := buf[:total]
		buf = buf[total:]

		if frame[total-1] != protocol.GoodbyeByte || payloadLen < 1 {
			d.logger.Warn("Malformed command frame", zap.String("frame", hex.EncodeToString(frame)))
			continue
		}

		d.handleCommand(protocol.PeripheralID(frame[1]), protocol.CommandCode(frame[3]), frame[4:3+payloadLen])
	}
}

func (d *Device) handleCommand(peripheral protocol.PeripheralID, cmd protocol.CommandCode, data []byte) {
	d.logger.Debug("Command received",
		zap.String("peripheral", peripheral.String()),
		zap.String("command", cmd.String()))

	if peripheral == protocol.PeripheralSystem {
		d.handleSystemCommand(cmd)
		return
	}

	if !d.awake.Load() {
		// Ein schlafendes Board antwortet nicht
		return
	}

	var rec interface{ MarshalBinary() ([]byte, error) }
	switch peripheral {
	case protocol.PeripheralLoRa915, protocol.PeripheralLoRa433:
		rec = d.radioReading()
	case protocol.PeripheralBarometer:
		rec = d.barometerReading()
	case protocol.PeripheralCurrent:
		rec = d.currentReading()
	default:
		d.logger.Warn("Command for unknown peripheral", zap.String("peripheral", peripheral.String()))
		return
	}

	d.sendRecord(peripheral, rec)
}

func (d *Device) handleSystemCommand(cmd protocol.CommandCode) {
	switch cmd {
	case protocol.CmdSystemWakeup:
		d.awake.Store(true)
		d.sendRecord(protocol.PeripheralSystem, &protocol.Acknowledgement{Command: cmd})
	case protocol.CmdSystemSleep:
		d.awake.Store(false)
		d.sendRecord(protocol.PeripheralSystem, &protocol.Acknowledgement{Command: cmd})
	case protocol.CmdSystemReset:
		d.started = time.Now()
		d.sendRecord(protocol.PeripheralSystem, &protocol.Acknowledgement{Command: cmd})
	case protocol.CmdGetStatus, protocol.CmdGetAll:
		d.sendRecord(protocol.PeripheralSystem, d.statusReading())
	default:
		d.logger.Warn("Unknown system command", zap.String("command", cmd.String()))
	}
}

func (d *Device) heartbeatLoop(done chan struct{}) {
	if d.scenario.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(d.scenario.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if d.awake.Load() {
				d.sendRecord(protocol.PeripheralSystem, d.heartbeatReading())
			}
		}
	}
}

func (d *Device) sendRecord(peripheral protocol.PeripheralID, rec interface{ MarshalBinary() ([]byte, error) }) {
	payload, err := rec.MarshalBinary()
	if err != nil {
		d.logger.Error("Failed to marshal record", zap.Error(err))
		return
	}

	frame, err := protocol.EncodeResponse(peripheral, payload)
	if err != nil {
		d.logger.Error("Failed to encode response", zap.Error(err))
		return
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.frameCount++
	if d.scenario.Corruption.Enabled && d.scenario.Corruption.EveryN > 0 &&
		d.frameCount%d.scenario.Corruption.EveryN == 0 {
		// Terminator kaputt machen, der Host muss resyncen
		frame[len(frame)-1] = 0x00
		d.logger.Info("Sending corrupted frame", zap.Int("frame", d.frameCount))
	}

	if _, err := d.conn.Write(frame); err != nil {
		d.logger.Warn("Write failed", zap.Error(err))
	}
}

func (d *Device) uptime() uint32 {
	return uint32(time.Since(d.started).Seconds())
}

func (d *Device) heartbeatReading() *protocol.Heartbeat {
	return &protocol.Heartbeat{
		Version:       1,
		UptimeSeconds: d.uptime(),
		SystemState:   d.scenario.SystemState,
	}
}

func (d *Device) statusReading() *protocol.FullStatus {
	return &protocol.FullStatus{
		Version:       1,
		UptimeSeconds: d.uptime(),
		SystemState:   d.scenario.SystemState,
		SensorFlags:   0x0F,
		PktCountLoRa:  d.pktCount,
		PktCount433:   d.pktCount / 2,
		WakeupTime:    uint32(d.started.Unix()),
		HeapFree:      180_000,
		ChipRevision:  3,
	}
}

func (d *Device) barometerReading() *protocol.BarometricReading {
	s := d.scenario.Barometer
	return &protocol.BarometricReading{
		Version:      1,
		Timestamp:    d.uptime(),
		PressurePa:   jitter(s.PressurePa, s.Jitter),
		TemperatureC: jitter(s.TemperatureC, s.Jitter),
		AltitudeM:    jitter(s.AltitudeM, s.Jitter),
	}
}

func (d *Device) currentReading() *protocol.CurrentVoltageReading {
	s := d.scenario.Current
	return &protocol.CurrentVoltageReading{
		Version:   1,
		Timestamp: d.uptime(),
		CurrentA:  s.CurrentA,
		VoltageV:  s.VoltageV,
		PowerW:    s.PowerW,
		RawADC:    int16(rand.Intn(4096)),
	}
}

func (d *Device) radioReading() *protocol.RadioLinkData {
	d.pktCount++
	payload, err := hex.DecodeString(d.scenario.Radio.Payload)
	if err != nil || len(payload) > protocol.RadioPayloadMax {
		payload = nil
	}
	return &protocol.RadioLinkData{
		Version:       1,
		PacketCount:   d.pktCount,
		RSSI:          d.scenario.Radio.RSSI,
		SNR:           d.scenario.Radio.SNR,
		PayloadLength: uint8(len(payload)),
		Payload:       payload,
	}
}

func jitter(v, rel float32) float32 {
	if rel <= 0 {
		return v
	}
	return v * (1 + rel*(rand.Float32()*2-1))
}
