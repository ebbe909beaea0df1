package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeCommandGetAll(t *testing.T) {
	frame, err := EncodeCommand(PeripheralLoRa915, CmdGetAll, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7E, 0x01, 0x01, 0x00, 0x7F}, frame)
}

func TestEncodeCommandWakeup(t *testing.T) {
	frame, err := EncodeCommand(PeripheralSystem, CmdSystemWakeup, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7E, 0x00, 0x01, 0x20, 0x7F}, frame)
}

func TestEncodeCommandWithData(t *testing.T) {
	frame, err := EncodeCommand(PeripheralSystem, CmdConfigure, []byte{0xAA, 0xBB})
	require.NoError(t, err)
	require.Equal(t, []byte{0x7E, 0x00, 0x03, 0x03, 0xAA, 0xBB, 0x7F}, frame)
}

func TestEncodeCommandTooLarge(t *testing.T) {
	_, err := EncodeCommand(PeripheralSystem, CmdConfigure, make([]byte, 255))
	require.Error(t, err)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, 256, encErr.PayloadLen)

	// 254 Datenbytes + Command-Byte = 255 passt gerade noch
	frame, err := EncodeCommand(PeripheralSystem, CmdConfigure, make([]byte, 254))
	require.NoError(t, err)
	require.Len(t, frame, 259)
}

func TestEncodeResponse(t *testing.T) {
	frame, err := EncodeResponse(PeripheralBarometer, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.Equal(t, []byte{0x7D, 0x03, 0x03, 0x01, 0x02, 0x03, 0x7F}, frame)
}

func TestDecodeResponseHeader(t *testing.T) {
	peripheral, length, err := DecodeResponseHeader([]byte{0x7D, 0x04, 0x13})
	require.NoError(t, err)
	require.Equal(t, PeripheralCurrent, peripheral)
	require.Equal(t, 19, length)
}

func TestDecodeResponseHeaderBadMarker(t *testing.T) {
	_, _, err := DecodeResponseHeader([]byte{0x7E, 0x04, 0x13})
	var frameErr *FramingError
	require.ErrorAs(t, err, &frameErr)
	require.Equal(t, byte(0x7E), frameErr.Got)
}

func TestValidateTerminator(t *testing.T) {
	require.NoError(t, ValidateTerminator(0x7F))

	err := ValidateTerminator(0x00)
	var desync *DesyncError
	require.ErrorAs(t, err, &desync)
	require.Equal(t, byte(0x00), desync.Got)
}

func TestPeripheralNames(t *testing.T) {
	require.Equal(t, "SYSTEM", PeripheralSystem.String())
	require.Equal(t, "LORA_433", PeripheralLoRa433.String())
	require.Equal(t, "AIM_2", PeripheralAIM2.String())
	require.Equal(t, "UNKNOWN_0x42", PeripheralID(0x42).String())
	require.False(t, PeripheralID(0x42).IsKnown())
}
