package protocol

// Frame ist eine vollständige, entpackte Nachricht vom Embedded-Board
type Frame struct {
	Peripheral PeripheralID
	Payload    []byte
}

// EncodeCommand baut das komplette Command-Frame
// Format: [HELLO][PERIPHERAL_ID][LENGTH][COMMAND][data...][GOODBYE]
func EncodeCommand(peripheral PeripheralID, cmd CommandCode, data []byte) ([]byte, error) {
	payloadLen := 1 + len(data) // Command-Byte + Daten
	if payloadLen > MaxPayloadLen {
		return nil, &EncodingError{PayloadLen: payloadLen}
	}

	frame := make([]byte, 0, payloadLen+4)
	frame = append(frame, HelloByte, byte(peripheral), byte(payloadLen), byte(cmd))
	frame = append(frame, data...)
	frame = append(frame, GoodbyeByte)

	return frame, nil
}

// EncodeResponse baut ein Response-Frame (Device-Seite, für Simulator und Tests)
// Format: [RESPONSE][PERIPHERAL_ID][LENGTH][data...][GOODBYE]
func EncodeResponse(peripheral PeripheralID, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, &EncodingError{PayloadLen: len(payload)}
	}

	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, ResponseByte, byte(peripheral), byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, GoodbyeByte)

	return frame, nil
}

// DecodeResponseHeader parst die ersten 3 Bytes eines Response-Frames
func DecodeResponseHeader(header []byte) (PeripheralID, int, error) {
	if len(header) < 3 {
		return 0, 0, &FramingError{Msg: "header too short"}
	}
	if header[0] != ResponseByte {
		return 0, 0, &FramingError{Msg: "missing response marker", Got: header[0]}
	}
	return PeripheralID(header[1]), int(header[2]), nil
}

// ValidateTerminator prüft das abschließende GOODBYE-Byte.
// Ein Fehler hier bedeutet Desynchronisation, kein Retry auf denselben Bytes.
func ValidateTerminator(b byte) error {
	if b != GoodbyeByte {
		return &DesyncError{Got: b}
	}
	return nil
}
