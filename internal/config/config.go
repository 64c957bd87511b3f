package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"handheld_rfid_go/internal/discovery"
	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/driver/serialscan"
	"handheld_rfid_go/internal/driver/st8508"
	"handheld_rfid_go/internal/session"
)

const (
	DriverSim    = "sim"
	DriverST8508 = "st8508"

	ScannerSim    = "sim"
	ScannerSerial = "serial"
	ScannerNone   = "none"
)

type Config struct {
	Driver  string        `yaml:"driver"`
	Reader  ReaderConfig  `yaml:"reader"`
	ST8508  ST8508Config  `yaml:"st8508"`
	Scanner ScannerConfig `yaml:"scanner"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

type ReaderConfig struct {
	// Prefix picks a reader when discovery returns several. Empty means the driver's family name.
	Prefix       string        `yaml:"prefix"`
	Transports   []string      `yaml:"transports"`
	Resume       string        `yaml:"resume"`
	TickInterval time.Duration `yaml:"tick_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Demo         bool          `yaml:"demo"`
}

type ST8508Config struct {
	Endpoints      []string      `yaml:"endpoints"`
	USBPorts       []string      `yaml:"usb_ports"`
	SerialPorts    []string      `yaml:"serial_ports"`
	Baud           int           `yaml:"baud"`
	Address        int           `yaml:"address"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	WatchInterval  time.Duration `yaml:"watch_interval"`
	// RSSI selects inventory frames that carry antenna and signal strength.
	RSSI           bool          `yaml:"rssi"`
}

type ScannerConfig struct {
	Driver  string              `yaml:"driver"`
	Devices []serialscan.Device `yaml:"devices"`
	Baud    int                 `yaml:"baud"`
	Trigger string              `yaml:"trigger"`
	Release string              `yaml:"release"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	st := st8508.DefaultConfig()
	sess := session.DefaultOptions()
	return Config{
		Driver: DriverSim,
		Reader: ReaderConfig{
			Transports:   transportNames(sess.Discovery.Transports),
			Resume:       string(sess.Resume),
			TickInterval: sess.TickInterval,
			BatchSize:    sess.BatchSize,
			Demo:         true,
		},
		ST8508: ST8508Config{
			USBPorts:       st.USBPorts,
			Baud:           st.Reader.Baud,
			Address:        int(st.Reader.Address),
			CommandTimeout: st.Reader.CommandTimeout,
			PollInterval:   st.Reader.PollInterval,
			WatchInterval:  st.WatchInterval,
		},
		Scanner: ScannerConfig{
			Driver:  ScannerSim,
			Baud:    9600,
			Trigger: `\x16T\r`,
			Release: `\x16U\r`,
		},
		HTTP: HTTPConfig{Enabled: true, Addr: "127.0.0.1:8099"},
		Log:  LogConfig{Level: "info", File: "handheld-rfid.log"},
	}
}

// Load builds the config from defaults, then the YAML file at path (optional,
// a missing file is fine), then RFID_* environment overrides, then overrides
// in order (command line flags).
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Driver = strings.ToLower(envOr("RFID_DRIVER", cfg.Driver))

	cfg.Reader.Prefix = envOr("RFID_READER_PREFIX", cfg.Reader.Prefix)
	cfg.Reader.Transports = envList("RFID_TRANSPORTS", cfg.Reader.Transports)
	cfg.Reader.Resume = strings.ToLower(envOr("RFID_RESUME", cfg.Reader.Resume))
	cfg.Reader.TickInterval = envDurationMS("RFID_TICK_MS", cfg.Reader.TickInterval)
	cfg.Reader.BatchSize = envInt("RFID_BATCH_SIZE", cfg.Reader.BatchSize)
	cfg.Reader.Demo = envBool("RFID_DEMO", cfg.Reader.Demo)

	cfg.ST8508.Endpoints = envList("RFID_ST8508_ENDPOINTS", cfg.ST8508.Endpoints)
	cfg.ST8508.USBPorts = envList("RFID_ST8508_USB_PORTS", cfg.ST8508.USBPorts)
	cfg.ST8508.SerialPorts = envList("RFID_ST8508_SERIAL_PORTS", cfg.ST8508.SerialPorts)
	cfg.ST8508.Baud = envInt("RFID_ST8508_BAUD", cfg.ST8508.Baud)
	cfg.ST8508.Address = envInt("RFID_ST8508_ADDRESS", cfg.ST8508.Address)
	cfg.ST8508.CommandTimeout = envDurationMS("RFID_ST8508_COMMAND_TIMEOUT_MS", cfg.ST8508.CommandTimeout)
	cfg.ST8508.PollInterval = envDurationMS("RFID_ST8508_POLL_MS", cfg.ST8508.PollInterval)
	cfg.ST8508.WatchInterval = envDurationMS("RFID_ST8508_WATCH_MS", cfg.ST8508.WatchInterval)
	cfg.ST8508.RSSI = envBool("RFID_ST8508_RSSI", cfg.ST8508.RSSI)

	cfg.Scanner.Driver = strings.ToLower(envOr("RFID_SCANNER_DRIVER", cfg.Scanner.Driver))
	if ports := envList("RFID_SCANNER_PORTS", nil); len(ports) > 0 {
		cfg.Scanner.Devices = parseDevices(ports)
	}
	cfg.Scanner.Baud = envInt("RFID_SCANNER_BAUD", cfg.Scanner.Baud)
	cfg.Scanner.Trigger = envOr("RFID_SCANNER_TRIGGER", cfg.Scanner.Trigger)
	cfg.Scanner.Release = envOr("RFID_SCANNER_RELEASE", cfg.Scanner.Release)

	cfg.HTTP.Enabled = envBool("RFID_HTTP_ENABLED", cfg.HTTP.Enabled)
	cfg.HTTP.Addr = envOr("RFID_HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Log.Level = strings.ToLower(envOr("RFID_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.File = envOr("RFID_LOG_FILE", cfg.Log.File)
}

// parseDevices reads "path" or "path=name" entries.
func parseDevices(entries []string) []serialscan.Device {
	out := make([]serialscan.Device, 0, len(entries))
	for _, e := range entries {
		path, name, _ := strings.Cut(e, "=")
		out = append(out, serialscan.Device{Path: strings.TrimSpace(path), Name: strings.TrimSpace(name)})
	}
	return out
}

func (c *Config) normalize() error {
	switch c.Driver {
	case DriverSim, DriverST8508:
	default:
		return fmt.Errorf("unknown driver %q (want sim or st8508)", c.Driver)
	}
	switch c.Scanner.Driver {
	case ScannerSim, ScannerSerial, ScannerNone:
	case "":
		c.Scanner.Driver = ScannerNone
	default:
		return fmt.Errorf("unknown scanner driver %q (want sim, serial or none)", c.Scanner.Driver)
	}
	if _, err := c.TransportOrder(); err != nil {
		return err
	}
	if len(c.Reader.Transports) == 0 {
		c.Reader.Transports = transportNames(driver.DefaultTransportOrder)
	}

	switch session.ResumePolicy(c.Reader.Resume) {
	case session.ResumeRediscover, session.ResumeCached:
	default:
		c.Reader.Resume = string(session.ResumeRediscover)
	}
	if strings.TrimSpace(c.Reader.Prefix) == "" {
		c.Reader.Prefix = discovery.DefaultPrefix
		if c.Driver == DriverST8508 {
			c.Reader.Prefix = st8508.DefaultConfig().NamePrefix
		}
	}
	if c.Reader.TickInterval < 100*time.Millisecond {
		c.Reader.TickInterval = time.Second
	}
	if c.Reader.BatchSize < 1 {
		c.Reader.BatchSize = session.DefaultOptions().BatchSize
	}

	def := st8508.DefaultConfig()
	if c.ST8508.Baud <= 0 {
		c.ST8508.Baud = def.Reader.Baud
	}
	if c.ST8508.Address < 0 || c.ST8508.Address > 0xFF {
		c.ST8508.Address = int(def.Reader.Address)
	}
	if c.ST8508.CommandTimeout < 100*time.Millisecond {
		c.ST8508.CommandTimeout = def.Reader.CommandTimeout
	}
	if c.ST8508.PollInterval < 20*time.Millisecond {
		c.ST8508.PollInterval = def.Reader.PollInterval
	}
	if c.ST8508.WatchInterval < 250*time.Millisecond {
		c.ST8508.WatchInterval = def.WatchInterval
	}

	if c.Scanner.Baud <= 0 {
		c.Scanner.Baud = 9600
	}
	if !c.HTTP.Enabled {
		c.HTTP.Addr = ""
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

// TransportOrder parses the configured transport names.
func (c Config) TransportOrder() ([]driver.Transport, error) {
	out := make([]driver.Transport, 0, len(c.Reader.Transports))
	for _, raw := range c.Reader.Transports {
		t, ok := driver.ParseTransport(raw)
		if !ok {
			return nil, fmt.Errorf("unknown transport %q", raw)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	if order, err := c.TransportOrder(); err == nil && len(order) > 0 {
		opts.Discovery.Transports = order
	}
	opts.Discovery.Prefix = c.Reader.Prefix
	opts.TickInterval = c.Reader.TickInterval
	opts.BatchSize = c.Reader.BatchSize
	opts.Resume = session.ResumePolicy(c.Reader.Resume)
	return opts
}

func (c Config) ST8508Config() st8508.Config {
	cfg := st8508.DefaultConfig()
	cfg.Endpoints = c.ST8508.Endpoints
	cfg.USBPorts = c.ST8508.USBPorts
	cfg.SerialPorts = c.ST8508.SerialPorts
	cfg.WatchInterval = c.ST8508.WatchInterval
	cfg.Reader.Baud = c.ST8508.Baud
	cfg.Reader.Address = byte(c.ST8508.Address)
	cfg.Reader.CommandTimeout = c.ST8508.CommandTimeout
	cfg.Reader.PollInterval = c.ST8508.PollInterval
	cfg.Reader.InventoryRSSI = c.ST8508.RSSI
	return cfg
}

func (c Config) SerialScannerConfig() serialscan.Config {
	return serialscan.Config{
		Devices:        c.Scanner.Devices,
		Baud:           c.Scanner.Baud,
		TriggerCommand: c.Scanner.Trigger,
		ReleaseCommand: c.Scanner.Release,
	}
}

func transportNames(ts []driver.Transport) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, string(t))
	}
	return out
}

func envOr(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envDurationMS(key string, fallback time.Duration) time.Duration {
	ms := envInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
