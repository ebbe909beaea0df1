package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout: keine (oder keine vollständige) Antwort innerhalb der Frist
	ErrTimeout = errors.New("timeout")
	// ErrNotConnected: Transport ist nicht geöffnet
	ErrNotConnected = errors.New("not connected")
)

// EncodingError: Command-Payload überschreitet das 1-Byte Length-Feld
type EncodingError struct {
	PayloadLen int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("payload too large for 1-byte length field: %d bytes", e.PayloadLen)
}

// FramingError: Start-Marker fehlt oder Header ist unvollständig
type FramingError struct {
	Msg string
	Got byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: %s (got 0x%02X)", e.Msg, e.Got)
}

// DesyncError: Terminator-Byte stimmt nicht, der Byte-Strom ist verschoben.
// Der Aufrufer muss den Eingangspuffer verwerfen und neu synchronisieren.
type DesyncError struct {
	Got byte
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("desync: expected terminator 0x%02X, got 0x%02X", GoodbyeByte, e.Got)
}

// DecodeError: strukturell gültiger Frame, aber Payload-Länge passt nicht
// zur erwarteten Wire-Struct des Peripherals
type DecodeError struct {
	Peripheral PeripheralID
	Expected   int
	Actual     int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: expected %d payload bytes, got %d",
		e.Peripheral, e.Expected, e.Actual)
}
