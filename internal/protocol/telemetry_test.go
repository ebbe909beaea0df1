package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := &Heartbeat{Version: 1, UptimeSeconds: 86400, SystemState: 2}

	b, err := hb.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SizeHeartbeat)

	decoded, err := DecodeHeartbeat(b)
	require.NoError(t, err)
	require.Equal(t, hb, decoded)
}

func TestFullStatusRoundTrip(t *testing.T) {
	st := &FullStatus{
		Version:       1,
		UptimeSeconds: 4294967295,
		SystemState:   3,
		SensorFlags:   0x0F,
		PktCountLoRa:  1234,
		PktCount433:   42,
		WakeupTime:    1700000000,
		HeapFree:      187000,
		ChipRevision:  3,
	}

	b, err := st.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SizeStatus)

	decoded, err := DecodeFullStatus(b)
	require.NoError(t, err)
	require.Equal(t, st, decoded)
}

func TestRadioLinkDataRoundTrip(t *testing.T) {
	rd := &RadioLinkData{
		Version:       1,
		PacketCount:   512,
		RSSI:          -90,
		SNR:           12.5,
		PayloadLength: 5,
		Payload:       []byte("hello"),
	}

	b, err := rd.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SizeRadio)

	decoded, err := DecodeRadioLinkData(PeripheralLoRa915, b)
	require.NoError(t, err)
	require.Equal(t, rd, decoded)
}

func TestRadioLinkDataEmptyPayloadRoundTrip(t *testing.T) {
	rd := &RadioLinkData{
		Version:     1,
		PacketCount: 1,
		RSSI:        -100,
		Payload:     []byte{},
	}

	b, err := rd.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeRadioLinkData(PeripheralLoRa915, b)
	require.NoError(t, err)
	require.NotNil(t, decoded.Payload)
	require.Equal(t, rd, decoded)
}

func TestRadioLinkDataTrimsPayload(t *testing.T) {
	// 64-Byte-Feld auf dem Draht, aber nur PayloadLength Bytes sind gültig
	raw := make([]byte, SizeRadio)
	raw[0] = 1
	raw[9] = 3
	copy(raw[10:], []byte("abcXXXX"))

	decoded, err := DecodeRadioLinkData(PeripheralLoRa433, raw)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), decoded.Payload)
}

func TestBarometricReadingRoundTrip(t *testing.T) {
	br := &BarometricReading{
		Version:      1,
		Timestamp:    123456,
		PressurePa:   101325.0,
		TemperatureC: 21.5,
		AltitudeM:    -12.25,
	}

	b, err := br.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SizeBarometer)

	decoded, err := DecodeBarometricReading(b)
	require.NoError(t, err)
	require.Equal(t, br, decoded)
}

func TestCurrentVoltageReadingRoundTrip(t *testing.T) {
	cv := &CurrentVoltageReading{
		Version:   1,
		Timestamp: 99999,
		CurrentA:  1.75,
		VoltageV:  12.6,
		PowerW:    22.05,
		RawADC:    -512,
	}

	b, err := cv.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SizeCurrent)

	decoded, err := DecodeCurrentVoltageReading(b)
	require.NoError(t, err)
	require.Equal(t, cv, decoded)
}

func TestDecodeLengthMismatch(t *testing.T) {
	for _, tc := range []struct {
		peripheral PeripheralID
		size       int
	}{
		{PeripheralLoRa915, SizeRadio},
		{PeripheralLoRa433, SizeRadio},
		{PeripheralBarometer, SizeBarometer},
		{PeripheralCurrent, SizeCurrent},
	} {
		_, err := DecodePayload(tc.peripheral, make([]byte, tc.size-1))
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr, "peripheral %s", tc.peripheral)
		require.Equal(t, tc.peripheral, decErr.Peripheral)
		require.Equal(t, tc.size, decErr.Expected)
		require.Equal(t, tc.size-1, decErr.Actual)
	}
}

func TestSystemDispatchBySize(t *testing.T) {
	rec, err := DecodePayload(PeripheralSystem, make([]byte, SizeHeartbeat))
	require.NoError(t, err)
	require.IsType(t, &Heartbeat{}, rec)

	rec, err = DecodePayload(PeripheralSystem, make([]byte, SizeStatus))
	require.NoError(t, err)
	require.IsType(t, &FullStatus{}, rec)

	rec, err = DecodePayload(PeripheralSystem, []byte{0x20})
	require.NoError(t, err)
	require.Equal(t, &Acknowledgement{Command: CmdSystemWakeup}, rec)

	_, err = DecodePayload(PeripheralSystem, make([]byte, 7))
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecodeUnknownPeripheral(t *testing.T) {
	_, err := DecodePayload(PeripheralAIM1, []byte{0x01, 0x02})
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, PeripheralAIM1, decErr.Peripheral)
}

func TestNewTelemetry(t *testing.T) {
	tm := NewTelemetry(PeripheralBarometer, &BarometricReading{Version: 1})
	require.Equal(t, "BAROMETER", tm.Name)
	require.Equal(t, "barometer", tm.Kind)
	require.False(t, tm.ReceivedAt.IsZero())
}
