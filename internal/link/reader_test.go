package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/transport"
)

type linkTestEnv struct {
	t          *testing.T
	sim        *transport.Sim
	pending    *PendingTable
	dispatcher *Dispatcher
	telemetry  chan protocol.Telemetry
}

func newLinkTestEnv(t *testing.T) *linkTestEnv {
	env := &linkTestEnv{
		t:         t,
		sim:       transport.NewSim(),
		pending:   NewPendingTable(),
		telemetry: make(chan protocol.Telemetry, 16),
	}

	cfg := ReaderConfig{
		ScanTimeout:  10 * time.Millisecond,
		ByteTimeout:  100 * time.Millisecond,
		FrameTimeout: 300 * time.Millisecond,
	}
	reader := NewReader(env.sim, env.pending, func(tm protocol.Telemetry) {
		env.telemetry <- tm
	}, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go reader.Run(ctx)

	env.dispatcher = NewDispatcher(env.sim, env.pending, 500*time.Millisecond, zap.NewNop())

	t.Cleanup(func() {
		cancel()
		env.sim.Close()
	})
	return env
}

func (env *linkTestEnv) injectResponse(peripheral protocol.PeripheralID, payload []byte) {
	frame, err := protocol.EncodeResponse(peripheral, payload)
	require.NoError(env.t, err)
	env.sim.Inject(frame)
}

func (env *linkTestEnv) waitTelemetry(timeout time.Duration) protocol.Telemetry {
	select {
	case tm := <-env.telemetry:
		return tm
	case <-time.After(timeout):
		env.t.Fatal("no telemetry published in time")
		return protocol.Telemetry{}
	}
}

func (env *linkTestEnv) requireNoTelemetry(d time.Duration) {
	select {
	case tm := <-env.telemetry:
		env.t.Fatalf("unexpected telemetry: %s/%s", tm.Name, tm.Kind)
	case <-time.After(d):
	}
}

func TestReaderPublishesAutonomousTelemetry(t *testing.T) {
	env := newLinkTestEnv(t)

	hb := &protocol.Heartbeat{Version: 1, UptimeSeconds: 300, SystemState: 1}
	payload, err := hb.MarshalBinary()
	require.NoError(t, err)
	env.injectResponse(protocol.PeripheralSystem, payload)

	tm := env.waitTelemetry(time.Second)
	require.Equal(t, "heartbeat", tm.Kind)
	require.Equal(t, hb, tm.Record)
}

func TestReaderRoutesAwaitedReply(t *testing.T) {
	env := newLinkTestEnv(t)

	want := &protocol.RadioLinkData{
		Version:       1,
		PacketCount:   77,
		RSSI:          -90,
		SNR:           12.0,
		PayloadLength: 4,
		Payload:       []byte("ping"),
	}
	env.sim.OnWrite(func(frame []byte) {
		// GET_ALL an LORA_915 muss bit-exakt so aussehen
		require.Equal(t, []byte{0x7E, 0x01, 0x01, 0x00, 0x7F}, frame)
		payload, err := want.MarshalBinary()
		require.NoError(t, err)
		reply, err := protocol.EncodeResponse(protocol.PeripheralLoRa915, payload)
		require.NoError(t, err)
		require.Equal(t, byte(0x4A), reply[2]) // 74-Byte-Payload
		env.sim.Inject(reply)
	})

	rec, err := env.dispatcher.Send(context.Background(), protocol.PeripheralLoRa915, protocol.CmdGetAll, nil, 0)
	require.NoError(t, err)
	require.Equal(t, want, rec)

	// Die erwartete Antwort darf nicht zusätzlich als Telemetrie erscheinen
	env.requireNoTelemetry(50 * time.Millisecond)
}

func TestReaderResyncAfterCorruptTerminator(t *testing.T) {
	env := newLinkTestEnv(t)

	// Gültiger Header + Payload, aber falsches Terminator-Byte
	corrupt := []byte{0x7D, 0x03, 0x02, 0xAA, 0xBB, 0x00}
	env.sim.Inject(corrupt)

	require.Eventually(t, func() bool {
		return env.sim.ResetCount() >= 1
	}, time.Second, 5*time.Millisecond, "reader did not reset the input buffer")
	env.requireNoTelemetry(30 * time.Millisecond)

	// Nach dem Reset muss das nächste saubere Frame fehlerfrei ankommen
	br := &protocol.BarometricReading{Version: 1, Timestamp: 42, PressurePa: 101325, TemperatureC: 20, AltitudeM: 100}
	payload, err := br.MarshalBinary()
	require.NoError(t, err)
	env.injectResponse(protocol.PeripheralBarometer, payload)

	tm := env.waitTelemetry(time.Second)
	require.Equal(t, "barometer", tm.Kind)
	require.Equal(t, br, tm.Record)
}

func TestReaderRecoversFromNoiseRun(t *testing.T) {
	env := newLinkTestEnv(t)

	// Korruptes Barometer-Frame, dessen Müll in ein frisches Command
	// hineinläuft: 7D 03 11 <17 Bytes> 00 | 00 00 7E 01 01 00 7F
	garbage := []byte{0x7D, 0x03, 0x11}
	garbage = append(garbage, make([]byte, 17)...)
	garbage = append(garbage, 0x00, 0x00, 0x00, 0x7E, 0x01, 0x01, 0x00, 0x7F)
	env.sim.Inject(garbage)

	require.Eventually(t, func() bool {
		return env.sim.ResetCount() >= 1
	}, time.Second, 5*time.Millisecond)

	// Der Müll darf nicht als Frame fehlinterpretiert worden sein
	env.requireNoTelemetry(30 * time.Millisecond)

	// Saubere CURRENT-Response danach muss exakt dekodiert werden
	cv := &protocol.CurrentVoltageReading{
		Version:   1,
		Timestamp: 555,
		CurrentA:  2.5,
		VoltageV:  11.1,
		PowerW:    27.75,
		RawADC:    -100,
	}
	payload, err := cv.MarshalBinary()
	require.NoError(t, err)
	env.injectResponse(protocol.PeripheralCurrent, payload)

	tm := env.waitTelemetry(time.Second)
	require.Equal(t, protocol.PeripheralCurrent, tm.Peripheral)
	require.Equal(t, cv, tm.Record)
	env.requireNoTelemetry(30 * time.Millisecond)
}

func TestReaderPublishesRawOnDecodeFailure(t *testing.T) {
	env := newLinkTestEnv(t)

	// Strukturell gültig, aber falsche Payload-Größe fürs Barometer
	env.injectResponse(protocol.PeripheralBarometer, []byte{0x01, 0x02, 0x03})

	tm := env.waitTelemetry(time.Second)
	require.Equal(t, "raw", tm.Kind)
	require.Equal(t, &protocol.RawTelemetry{PayloadHex: "010203"}, tm.Record)
}

func TestReaderUnknownPeripheralGoesRaw(t *testing.T) {
	env := newLinkTestEnv(t)

	env.injectResponse(protocol.PeripheralAIM1, []byte{0xDE, 0xAD})

	tm := env.waitTelemetry(time.Second)
	require.Equal(t, protocol.PeripheralAIM1, tm.Peripheral)
	require.Equal(t, "raw", tm.Kind)
}

func TestReaderLeavesFollowingFrameUntouched(t *testing.T) {
	env := newLinkTestEnv(t)

	// Zwei Frames direkt hintereinander im Puffer
	hb := &protocol.Heartbeat{Version: 1, UptimeSeconds: 1, SystemState: 0}
	p1, err := hb.MarshalBinary()
	require.NoError(t, err)
	f1, err := protocol.EncodeResponse(protocol.PeripheralSystem, p1)
	require.NoError(t, err)

	cv := &protocol.CurrentVoltageReading{Version: 1, Timestamp: 2}
	p2, err := cv.MarshalBinary()
	require.NoError(t, err)
	f2, err := protocol.EncodeResponse(protocol.PeripheralCurrent, p2)
	require.NoError(t, err)

	env.sim.Inject(append(append([]byte{}, f1...), f2...))

	first := env.waitTelemetry(time.Second)
	require.Equal(t, "heartbeat", first.Kind)
	second := env.waitTelemetry(time.Second)
	require.Equal(t, "current", second.Kind)
	require.Equal(t, cv, second.Record)
}
