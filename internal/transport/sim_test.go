package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timone-gs/timone-link/internal/protocol"
)

func TestSimReadExact(t *testing.T) {
	sim := NewSim()
	defer sim.Close()

	sim.Inject([]byte{0x01, 0x02, 0x03})

	got, err := sim.ReadExact(3, 100*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, got)
}

func TestSimReadExactTimeout(t *testing.T) {
	sim := NewSim()
	defer sim.Close()

	sim.Inject([]byte{0x01})

	_, err := sim.ReadExact(2, 20*time.Millisecond)
	require.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestSimReadAcrossInjects(t *testing.T) {
	sim := NewSim()
	defer sim.Close()

	go func() {
		sim.Inject([]byte{0xAA})
		time.Sleep(10 * time.Millisecond)
		sim.Inject([]byte{0xBB})
	}()

	got, err := sim.ReadExact(2, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, got)
}

func TestSimResetInputBuffer(t *testing.T) {
	sim := NewSim()
	defer sim.Close()

	sim.Inject([]byte{0x01, 0x02, 0x03})
	require.Equal(t, 3, sim.BytesAvailable())

	require.NoError(t, sim.ResetInputBuffer())
	require.Equal(t, 0, sim.BytesAvailable())

	_, err := sim.ReadExact(1, 10*time.Millisecond)
	require.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestSimWriteHook(t *testing.T) {
	sim := NewSim()
	defer sim.Close()

	var seen []byte
	sim.OnWrite(func(frame []byte) {
		seen = frame
	})

	require.NoError(t, sim.Write([]byte{0x7E, 0x00, 0x01, 0x20, 0x7F}))
	require.Equal(t, []byte{0x7E, 0x00, 0x01, 0x20, 0x7F}, seen)

	frame := <-sim.Writes()
	require.Equal(t, seen, frame)
}

func TestSimClosedRead(t *testing.T) {
	sim := NewSim()
	sim.Close()

	_, err := sim.ReadExact(1, time.Second)
	require.ErrorIs(t, err, protocol.ErrNotConnected)
}
