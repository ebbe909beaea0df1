package main

import (
	"flag"
	"log"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	listenAddr := flag.String("listen", "127.0.0.1:9410", "TCP listen address")
	scenarioPath := flag.String("scenario", "", "path to scenario YAML (optional)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	scenario := DefaultScenario()
	if *scenarioPath != "" {
		data, err := os.ReadFile(*scenarioPath)
		if err != nil {
			logger.Fatal("Failed to read scenario", zap.Error(err))
		}
		if err := yaml.Unmarshal(data, scenario); err != nil {
			logger.Fatal("Failed to parse scenario", zap.Error(err))
		}
	}

	listener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}
	defer listener.Close()

	logger.Info("Device simulator listening",
		zap.String("address", *listenAddr),
		zap.Duration("heartbeat_interval", scenario.HeartbeatInterval),
		zap.Bool("corruption", scenario.Corruption.Enabled))

	// Ein Host zur Zeit, genau wie ein physischer Serial-Port
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error("Accept failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		logger.Info("Host connected", zap.String("remote_addr", conn.RemoteAddr().String()))
		device := NewDevice(scenario, conn, logger)
		device.Serve()
		logger.Info("Host disconnected")
	}
}
