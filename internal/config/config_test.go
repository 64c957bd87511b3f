package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/driver/serialscan"
	"handheld_rfid_go/internal/session"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DriverSim, cfg.Driver)
	assert.Equal(t, "RFD", cfg.Reader.Prefix)
	assert.Equal(t, time.Second, cfg.Reader.TickInterval)
	assert.Equal(t, 100, cfg.Reader.BatchSize)
	assert.Equal(t, string(session.ResumeRediscover), cfg.Reader.Resume)

	order, err := cfg.TransportOrder()
	require.NoError(t, err)
	assert.Equal(t, driver.DefaultTransportOrder, order)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "rfid.yaml", `
driver: st8508
reader:
  transports: [tcp, serial]
  resume: cached
  tick_interval: 500ms
  batch_size: 25
st8508:
  endpoints: ["192.168.1.50:6000"]
  baud: 115200
scanner:
  driver: serial
  devices:
    - path: /dev/ttyACM0
      name: RFD40-hand
`)
	t.Setenv("RFID_BATCH_SIZE", "40")
	t.Setenv("RFID_HTTP_ADDR", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverST8508, cfg.Driver)
	assert.Equal(t, "ST8508", cfg.Reader.Prefix, "driver family is the default prefix")
	assert.Equal(t, 500*time.Millisecond, cfg.Reader.TickInterval)
	assert.Equal(t, 40, cfg.Reader.BatchSize)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)

	opts := cfg.SessionOptions()
	assert.Equal(t, []driver.Transport{driver.TransportTCP, driver.TransportSerial}, opts.Discovery.Transports)
	assert.Equal(t, session.ResumeCached, opts.Resume)
	assert.Equal(t, 40, opts.BatchSize)

	st := cfg.ST8508Config()
	assert.Equal(t, []string{"192.168.1.50:6000"}, st.Endpoints)
	assert.Equal(t, 115200, st.Reader.Baud)

	sc := cfg.SerialScannerConfig()
	assert.Equal(t, []serialscan.Device{{Path: "/dev/ttyACM0", Name: "RFD40-hand"}}, sc.Devices)
	assert.Equal(t, 9600, sc.Baud)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("RFID_DRIVER", "zebra")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zebra")
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("RFID_TRANSPORTS", "tcp,carrier-pigeon")
	_, err := Load("")
	require.Error(t, err)
}

func TestNormalizeClampsValues(t *testing.T) {
	t.Setenv("RFID_TICK_MS", "5")
	t.Setenv("RFID_BATCH_SIZE", "0")
	t.Setenv("RFID_RESUME", "sometimes")
	t.Setenv("RFID_HTTP_ENABLED", "off")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Reader.TickInterval)
	assert.Equal(t, 100, cfg.Reader.BatchSize)
	assert.Equal(t, string(session.ResumeRediscover), cfg.Reader.Resume)
	assert.Empty(t, cfg.HTTP.Addr)
}

func TestScannerPortsFromEnv(t *testing.T) {
	t.Setenv("RFID_SCANNER_PORTS", "/dev/ttyACM0=left, /dev/ttyACM1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []serialscan.Device{
		{Path: "/dev/ttyACM0", Name: "left"},
		{Path: "/dev/ttyACM1"},
	}, cfg.Scanner.Devices)
}

func TestST8508RSSIReachesReaderOptions(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.ST8508Config().Reader.InventoryRSSI)

	t.Setenv("RFID_ST8508_RSSI", "true")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.ST8508.RSSI)
	assert.True(t, cfg.ST8508Config().Reader.InventoryRSSI)
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := writeFile(t, ".env", `
# comment
export RFID_DOTENV_A="quoted value"
RFID_DOTENV_B='single'
RFID_DOTENV_C=from-file
not a pair
`)
	t.Setenv("RFID_DOTENV_C", "from-env")
	t.Setenv("RFID_DOTENV_A", "")
	require.NoError(t, os.Unsetenv("RFID_DOTENV_A"))
	t.Setenv("RFID_DOTENV_B", "")
	require.NoError(t, os.Unsetenv("RFID_DOTENV_B"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "quoted value", os.Getenv("RFID_DOTENV_A"))
	assert.Equal(t, "single", os.Getenv("RFID_DOTENV_B"))
	assert.Equal(t, "from-env", os.Getenv("RFID_DOTENV_C"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestTrimEnvQuotes(t *testing.T) {
	assert.Equal(t, "abc", trimEnvQuotes(`"abc"`))
	assert.Equal(t, "abc", trimEnvQuotes(`'abc'`))
	assert.Equal(t, `"abc'`, trimEnvQuotes(`"abc'`))
	assert.Equal(t, `"`, trimEnvQuotes(`"`))
}

func TestOverridesWinOverEnv(t *testing.T) {
	t.Setenv("RFID_DRIVER", "sim")
	cfg, err := Load("", func(c *Config) { c.Driver = DriverST8508 })
	require.NoError(t, err)
	assert.Equal(t, DriverST8508, cfg.Driver)
	assert.Equal(t, "ST8508", cfg.Reader.Prefix)
}
