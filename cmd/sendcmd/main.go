package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/timone-gs/timone-link/internal/link"
	"github.com/timone-gs/timone-link/internal/protocol"
	"github.com/timone-gs/timone-link/internal/transport"
)

var peripheralsByName = map[string]protocol.PeripheralID{
	"system":    protocol.PeripheralSystem,
	"lora_915":  protocol.PeripheralLoRa915,
	"lora_433":  protocol.PeripheralLoRa433,
	"barometer": protocol.PeripheralBarometer,
	"current":   protocol.PeripheralCurrent,
}

var commandsByName = map[string]protocol.CommandCode{
	"get_all":    protocol.CmdGetAll,
	"get_status": protocol.CmdGetStatus,
	"reset":      protocol.CmdReset,
	"configure":  protocol.CmdConfigure,
	"wakeup":     protocol.CmdSystemWakeup,
	"sleep":      protocol.CmdSystemSleep,
	"sys_reset":  protocol.CmdSystemReset,
}

func main() {
	mode := flag.String("mode", "serial", "transport mode: serial or tcp")
	port := flag.String("port", "/dev/ttyACM0", "serial port")
	baud := flag.Int("baud", 115200, "baud rate")
	addr := flag.String("addr", "127.0.0.1:9410", "TCP address (mode tcp)")
	peripheralArg := flag.String("peripheral", "system", "peripheral name or numeric ID")
	cmdArg := flag.String("cmd", "get_status", "command name or numeric code")
	dataArg := flag.String("data", "", "hex-encoded command data")
	timeout := flag.Duration("timeout", 2*time.Second, "reply timeout")
	flag.Parse()

	logger := zap.NewNop()

	peripheral, err := parsePeripheral(*peripheralArg)
	if err != nil {
		log.Fatal(err)
	}
	cmd, err := parseCommand(*cmdArg)
	if err != nil {
		log.Fatal(err)
	}

	var data []byte
	if *dataArg != "" {
		if data, err = hex.DecodeString(*dataArg); err != nil {
			log.Fatalf("invalid data: %v", err)
		}
	}

	tr, err := openTransport(*mode, *port, *baud, *addr)
	if err != nil {
		log.Fatalf("failed to open transport: %v", err)
	}
	defer tr.Close()

	// Gleiche Maschinerie wie der Hub: ein Reader, ein Dispatcher
	pending := link.NewPendingTable()
	reader := link.NewReader(tr, pending, func(tm protocol.Telemetry) {
		// Unaufgeforderte Telemetrie während des Wartens nur anzeigen
		fmt.Fprintf(os.Stderr, "# telemetry %s/%s\n", tm.Name, tm.Kind)
	}, link.DefaultReaderConfig(), logger)
	dispatcher := link.NewDispatcher(tr, pending, *timeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reader.Run(ctx)

	record, err := dispatcher.Send(ctx, peripheral, cmd, data, *timeout)
	if err != nil {
		log.Fatalf("command failed: %v", err)
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"peripheral": peripheral.String(),
		"command":    cmd.String(),
		"kind":       record.TelemetryKind(),
		"record":     record,
	}, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	fmt.Println(string(out))
}

func openTransport(mode, port string, baud int, addr string) (transport.Transport, error) {
	switch mode {
	case "tcp":
		return transport.DialTCP(addr, 5*time.Second)
	case "serial":
		return transport.OpenSerial(transport.SerialConfig{Port: port, Baud: baud})
	default:
		return nil, fmt.Errorf("unknown mode: %q", mode)
	}
}

func parsePeripheral(arg string) (protocol.PeripheralID, error) {
	if p, ok := peripheralsByName[strings.ToLower(arg)]; ok {
		return p, nil
	}
	n, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown peripheral: %q", arg)
	}
	return protocol.PeripheralID(n), nil
}

func parseCommand(arg string) (protocol.CommandCode, error) {
	if c, ok := commandsByName[strings.ToLower(arg)]; ok {
		return c, nil
	}
	n, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown command: %q", arg)
	}
	return protocol.CommandCode(n), nil
}
