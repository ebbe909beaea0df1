package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Serial      SerialConfig      `mapstructure:"serial"`
	Link        LinkConfig        `mapstructure:"link"`
	Poll        PollConfig        `mapstructure:"poll"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Peripherals PeripheralsConfig `mapstructure:"peripheral_profiles"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SerialConfig beschreibt die Verbindung zum Embedded-Board.
// mode "serial" spricht einen echten Port an, mode "tcp" verbindet sich
// mit dem Device-Simulator (cmd/simdevice).
type SerialConfig struct {
	Mode    string `mapstructure:"mode"`
	Port    string `mapstructure:"port"`
	Baud    int    `mapstructure:"baud"`
	Address string `mapstructure:"address"`
}

type LinkConfig struct {
	ReplyTimeout     time.Duration `mapstructure:"reply_timeout"`
	ScanTimeout      time.Duration `mapstructure:"scan_timeout"`
	ByteTimeout      time.Duration `mapstructure:"byte_timeout"`
	FrameTimeout     time.Duration `mapstructure:"frame_timeout"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`
	BacklogThreshold int           `mapstructure:"backlog_threshold"`
	WakeupOnStart    bool          `mapstructure:"wakeup_on_start"`
}

type PollConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	Peripherals  []string      `mapstructure:"peripherals"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type PeripheralsConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("serial.mode", "serial")
	viper.SetDefault("serial.port", "/dev/ttyACM0")
	viper.SetDefault("serial.baud", 115200)
	viper.SetDefault("serial.address", "127.0.0.1:9410")

	// Fristen aus der Firmware-Doku (~1-1.2s pro Antwort)
	viper.SetDefault("link.reply_timeout", "1200ms")
	viper.SetDefault("link.scan_timeout", "200ms")
	viper.SetDefault("link.byte_timeout", "250ms")
	viper.SetDefault("link.frame_timeout", "1200ms")
	viper.SetDefault("link.health_interval", "3s")
	viper.SetDefault("link.backlog_threshold", 1024)
	viper.SetDefault("link.wakeup_on_start", false)

	viper.SetDefault("poll.enabled", false)
	viper.SetDefault("poll.interval", "5s")
	viper.SetDefault("poll.startup_delay", "5s")
	viper.SetDefault("poll.peripherals", []string{"system", "lora_915", "lora_433", "barometer", "current"})

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.max_connections", 4)

	viper.SetDefault("peripheral_profiles.search_paths", []string{"configs/peripherals"})

	// Environment Variables automatisch binden (Viper Feature)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("TIMONE") // Environment Variables mit Prefix TIMONE_

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
