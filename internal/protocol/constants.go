package protocol

import "fmt"

// Framing-Bytes des Embedded-Protokolls
const (
	HelloByte    = 0x7E // Start Host → Device (Command)
	ResponseByte = 0x7D // Start Device → Host (Response, anders als HELLO wegen Echo)
	GoodbyeByte  = 0x7F // Ende jeder Nachricht
)

// PeripheralID adressiert einen logischen Endpunkt auf dem Embedded-Board
type PeripheralID uint8

const (
	PeripheralSystem    PeripheralID = 0x00
	PeripheralLoRa915   PeripheralID = 0x01
	PeripheralLoRa433   PeripheralID = 0x02
	PeripheralBarometer PeripheralID = 0x03
	PeripheralCurrent   PeripheralID = 0x04

	// Reserviert für zukünftige AIM-Module
	PeripheralAIM1 PeripheralID = 0x10
	PeripheralAIM2 PeripheralID = 0x11
	PeripheralAIM3 PeripheralID = 0x12
	PeripheralAIM4 PeripheralID = 0x13
)

var peripheralNames = map[PeripheralID]string{
	PeripheralSystem:    "SYSTEM",
	PeripheralLoRa915:   "LORA_915",
	PeripheralLoRa433:   "LORA_433",
	PeripheralBarometer: "BAROMETER",
	PeripheralCurrent:   "CURRENT",
	PeripheralAIM1:      "AIM_1",
	PeripheralAIM2:      "AIM_2",
	PeripheralAIM3:      "AIM_3",
	PeripheralAIM4:      "AIM_4",
}

func (p PeripheralID) String() string {
	if name, ok := peripheralNames[p]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%02X", uint8(p))
}

// IsKnown gibt an ob die ID einem bekannten Peripheral entspricht
func (p PeripheralID) IsKnown() bool {
	_, ok := peripheralNames[p]
	return ok
}

// CommandCode ist das erste Payload-Byte eines Command-Frames
type CommandCode uint8

// Generische Commands (alle Peripherals)
const (
	CmdGetAll    CommandCode = 0x00
	CmdGetStatus CommandCode = 0x01
	CmdReset     CommandCode = 0x02
	CmdConfigure CommandCode = 0x03
)

// System-Commands (nur PeripheralSystem)
const (
	CmdSystemWakeup CommandCode = 0x20
	CmdSystemSleep  CommandCode = 0x21
	CmdSystemReset  CommandCode = 0x22
)

func (c CommandCode) String() string {
	switch c {
	case CmdGetAll:
		return "GET_ALL"
	case CmdGetStatus:
		return "GET_STATUS"
	case CmdReset:
		return "RESET"
	case CmdConfigure:
		return "CONFIGURE"
	case CmdSystemWakeup:
		return "SYSTEM_WAKEUP"
	case CmdSystemSleep:
		return "SYSTEM_SLEEP"
	case CmdSystemReset:
		return "SYSTEM_RESET"
	default:
		return fmt.Sprintf("CMD_0x%02X", uint8(c))
	}
}

// MaxPayloadLen ist durch das 1-Byte Length-Feld begrenzt
const MaxPayloadLen = 255

// Feste Payload-Größen der Wire-Structs (Firmware config.h)
const (
	SizeHeartbeat = 6
	SizeStatus    = 20
	SizeRadio     = 74
	SizeBarometer = 17
	SizeCurrent   = 19
	SizeAck       = 1
)

// RadioPayloadMax ist die Kapazität des data-Feldes in WireLoRa_t
const RadioPayloadMax = 64
