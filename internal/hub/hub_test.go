package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/config"
	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/transport"
	"github.com/timone-gs/timone-link/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Link: config.LinkConfig{
			ReplyTimeout: 500 * time.Millisecond,
			ScanTimeout:  10 * time.Millisecond,
			ByteTimeout:  100 * time.Millisecond,
			FrameTimeout: 300 * time.Millisecond,
		},
	}
}

// autoResponder beantwortet GET-Commands wie die echte Firmware
func autoResponder(t *testing.T, sim *transport.Sim) {
	t.Helper()
	sim.OnWrite(func(frame []byte) {
		require.GreaterOrEqual(t, len(frame), 5)
		peripheral := protocol.PeripheralID(frame[1])
		cmd := protocol.CommandCode(frame[3])

		var payload []byte
		var err error
		switch {
		case peripheral == protocol.PeripheralSystem && cmd == protocol.CmdSystemWakeup:
			payload = []byte{byte(protocol.CmdSystemWakeup)}
		case peripheral == protocol.PeripheralSystem:
			payload, err = (&protocol.FullStatus{Version: 1, UptimeSeconds: 12, SystemState: 2}).MarshalBinary()
		case peripheral == protocol.PeripheralBarometer:
			payload, err = (&protocol.BarometricReading{Version: 1, Timestamp: 7, PressurePa: 100000}).MarshalBinary()
		case peripheral == protocol.PeripheralCurrent:
			payload, err = (&protocol.CurrentVoltageReading{Version: 1, Timestamp: 8}).MarshalBinary()
		default:
			payload, err = (&protocol.RadioLinkData{Version: 1, PacketCount: 1, Payload: []byte{}}).MarshalBinary()
		}
		require.NoError(t, err)

		reply, err := protocol.EncodeResponse(peripheral, payload)
		require.NoError(t, err)
		sim.Inject(reply)
	})
}

func TestHubSendCommand(t *testing.T) {
	sim := transport.NewSim()
	autoResponder(t, sim)

	h := New(testConfig(), sim, nil, zap.NewNop())
	require.NoError(t, h.Start())
	defer h.Stop()

	rec, err := h.SendCommand(context.Background(), protocol.PeripheralBarometer, protocol.CmdGetAll, nil)
	require.NoError(t, err)
	require.Equal(t, "barometer", rec.TelemetryKind())
}

func TestHubWakeupOnStart(t *testing.T) {
	sim := transport.NewSim()
	autoResponder(t, sim)

	cfg := testConfig()
	cfg.Link.WakeupOnStart = true

	h := New(cfg, sim, nil, zap.NewNop())
	require.NoError(t, h.Start())
	defer h.Stop()

	select {
	case frame := <-sim.Writes():
		require.Equal(t, []byte{0x7E, 0x00, 0x01, 0x20, 0x7F}, frame)
	case <-time.After(time.Second):
		t.Fatal("no wakeup command written")
	}
}

func TestHubTelemetryFanout(t *testing.T) {
	sim := transport.NewSim()

	h := New(testConfig(), sim, nil, zap.NewNop())

	first := make(chan protocol.Telemetry, 1)
	second := make(chan protocol.Telemetry, 1)
	h.OnTelemetry(func(tm protocol.Telemetry) { first <- tm })
	h.OnTelemetry(func(tm protocol.Telemetry) { second <- tm })

	require.NoError(t, h.Start())
	defer h.Stop()

	hb := &protocol.Heartbeat{Version: 1, UptimeSeconds: 60, SystemState: 1}
	payload, err := hb.MarshalBinary()
	require.NoError(t, err)
	frame, err := protocol.EncodeResponse(protocol.PeripheralSystem, payload)
	require.NoError(t, err)
	sim.Inject(frame)

	for _, ch := range []chan protocol.Telemetry{first, second} {
		select {
		case tm := <-ch:
			require.Equal(t, "heartbeat", tm.Kind)
			require.Equal(t, hb, tm.Record)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive telemetry")
		}
	}
}

func TestHubPollingIssuesCommands(t *testing.T) {
	sim := transport.NewSim()
	autoResponder(t, sim)

	cfg := testConfig()
	cfg.Poll = config.PollConfig{
		Enabled:  true,
		Interval: 50 * time.Millisecond,
	}

	profiles := []*types.PeripheralProfile{
		{Name: "system", PeripheralID: 0x00, PollCommand: 0x01, Payload: "status"},
		{Name: "barometer", PeripheralID: 0x03, PollCommand: 0x00, Payload: "barometer"},
	}

	h := New(cfg, sim, profiles, zap.NewNop())
	require.NoError(t, h.Start())
	defer h.Stop()

	var mu sync.Mutex
	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := seen["system"] && seen["barometer"]
		mu.Unlock()
		if done {
			break
		}
		select {
		case frame := <-sim.Writes():
			mu.Lock()
			switch {
			case frame[1] == 0x00 && frame[3] == 0x01:
				seen["system"] = true
			case frame[1] == 0x03 && frame[3] == 0x00:
				seen["barometer"] = true
			}
			mu.Unlock()
		case <-deadline:
			t.Fatal("poller did not issue the expected commands")
		}
	}

	require.True(t, h.poller.IsRunning())
	h.Stop()
	require.False(t, h.poller.IsRunning())
}

func TestHubPollRepliesReachSubscribers(t *testing.T) {
	sim := transport.NewSim()
	autoResponder(t, sim)

	cfg := testConfig()
	cfg.Poll = config.PollConfig{
		Enabled:  true,
		Interval: 50 * time.Millisecond,
	}

	profiles := []*types.PeripheralProfile{
		{Name: "barometer", PeripheralID: 0x03, PollCommand: 0x00, Payload: "barometer"},
	}

	h := New(cfg, sim, profiles, zap.NewNop())

	received := make(chan protocol.Telemetry, 8)
	h.OnTelemetry(func(tm protocol.Telemetry) { received <- tm })

	require.NoError(t, h.Start())
	defer h.Stop()

	// Die erfragte Antwort muss wie autonome Telemetrie publiziert werden
	select {
	case tm := <-received:
		require.Equal(t, protocol.PeripheralBarometer, tm.Peripheral)
		require.Equal(t, "barometer", tm.Kind)
		reading, ok := tm.Record.(*protocol.BarometricReading)
		require.True(t, ok)
		require.Equal(t, float32(100000), reading.PressurePa)
	case <-time.After(2 * time.Second):
		t.Fatal("poll reply never reached telemetry subscribers")
	}
}

func TestHubStopIdempotent(t *testing.T) {
	sim := transport.NewSim()
	h := New(testConfig(), sim, nil, zap.NewNop())
	require.NoError(t, h.Start())
	h.Stop()
	h.Stop() // zweiter Stop darf nicht blockieren oder panicen
}
