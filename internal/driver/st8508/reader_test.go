package st8508

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/protocol/reader18"
)

// fakeReader answers reader18 commands on a TCP listener.
type fakeReader struct {
	ln net.Listener

	mu     sync.Mutex
	power  []byte
	conn   net.Conn
	silent bool
}

func startFake(t *testing.T) *fakeReader {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeReader{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeReader) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.handle(conn)
	}
}

func (f *fakeReader) handle(conn net.Conn) {
	defer conn.Close()
	for {
		head := make([]byte, 1)
		if _, err := io.ReadFull(conn, head); err != nil {
			return
		}
		rest := make([]byte, int(head[0]))
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}
		cmd := rest[1]
		payload := rest[2 : len(rest)-2]

		f.mu.Lock()
		silent := f.silent
		f.mu.Unlock()
		if silent {
			continue
		}

		var resp []byte
		switch cmd {
		case reader18.CmdGetReaderInfo:
			resp = reader18.BuildResponse(0, cmd, reader18.StatusSuccess, []byte{3, 1, 0x0C, 0, 0x3E, 0, 30, 10})
		case reader18.CmdInventory:
			resp = reader18.BuildResponse(0, cmd, reader18.StatusInventoryDone, []byte{
				2,
				4, 0xE2, 0x00, 0x00, 0x01,
				4, 0xE2, 0x00, 0x00, 0x02,
			})
		case reader18.CmdSetOutputPower:
			f.mu.Lock()
			f.power = append(f.power, payload...)
			f.mu.Unlock()
			resp = reader18.BuildResponse(0, cmd, reader18.StatusSuccess, nil)
		default:
			resp = reader18.BuildResponse(0, cmd, reader18.StatusCmdError, nil)
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func (f *fakeReader) dropClient() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
}

func testReader(f *fakeReader) *Reader {
	opts := DefaultOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.CommandTimeout = 300 * time.Millisecond
	return NewReader(driver.DeviceDescriptor{
		Name:      "ST8508-test",
		Address:   f.ln.Addr().String(),
		Transport: driver.TransportTCP,
	}, opts, nil)
}

func TestReaderInventoryFlow(t *testing.T) {
	f := startFake(t)
	r := testReader(f)

	require.NoError(t, r.Connect())
	t.Cleanup(func() { _ = r.Disconnect() })
	assert.True(t, r.IsConnected())
	assert.Equal(t, "3.1", r.Info().Version)

	reads := make(chan struct{}, 64)
	require.NoError(t, r.Subscribe(func(ev driver.Event) {
		if _, ok := ev.(driver.ReadEvent); ok {
			select {
			case reads <- struct{}{}:
			default:
			}
		}
	}))

	require.NoError(t, r.StartInventory())
	require.NoError(t, r.StartInventory(), "second start is a no-op")
	select {
	case <-reads:
	case <-time.After(2 * time.Second):
		t.Fatal("no read event")
	}
	require.NoError(t, r.StopInventory())

	tags := r.PullReadTags(100)
	require.GreaterOrEqual(t, len(tags), 2)
	assert.Equal(t, "E2000001", tags[0].TagID)
	assert.Equal(t, "E2000002", tags[1].TagID)

	var failure *driver.OperationFailure
	assert.ErrorAs(t, r.StopInventory(), &failure)
}

func TestReaderSetAntennaConfigWritesPower(t *testing.T) {
	f := startFake(t)
	r := testReader(f)
	require.NoError(t, r.Connect())
	t.Cleanup(func() { _ = r.Disconnect() })

	require.NoError(t, r.SetAntennaConfig(driver.DefaultAntennaConfig()))
	f.mu.Lock()
	assert.Equal(t, []byte{27}, f.power)
	f.mu.Unlock()

	bad := driver.DefaultAntennaConfig()
	bad.Session = "S9"
	var usage *driver.UsageError
	assert.ErrorAs(t, r.SetAntennaConfig(bad), &usage)
}

func TestReaderCommandTimeout(t *testing.T) {
	f := startFake(t)
	r := testReader(f)
	require.NoError(t, r.Connect())
	t.Cleanup(func() { _ = r.Disconnect() })

	f.mu.Lock()
	f.silent = true
	f.mu.Unlock()

	err := r.SetAntennaConfig(driver.DefaultAntennaConfig())
	assert.True(t, errors.Is(err, driver.ErrTimeout), "got %v", err)
}

func TestReaderReportsLinkLoss(t *testing.T) {
	f := startFake(t)
	r := testReader(f)
	require.NoError(t, r.Connect())

	lost := make(chan driver.DisconnectionEvent, 1)
	require.NoError(t, r.Subscribe(func(ev driver.Event) {
		if d, ok := ev.(driver.DisconnectionEvent); ok {
			lost <- d
		}
	}))

	f.dropClient()
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("link loss not reported")
	}
	require.Eventually(t, func() bool { return !r.IsConnected() }, time.Second, 5*time.Millisecond)
}

func TestReaderIntentionalDisconnectIsQuiet(t *testing.T) {
	f := startFake(t)
	r := testReader(f)
	require.NoError(t, r.Connect())

	events := make(chan driver.Event, 4)
	require.NoError(t, r.Subscribe(func(ev driver.Event) { events <- ev }))

	require.NoError(t, r.Disconnect())
	assert.False(t, r.IsConnected())
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after disconnect: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.ErrorIs(t, r.Disconnect(), driver.ErrNotConnected)
	require.NoError(t, r.Dispose())
}

func TestReaderConnectRefused(t *testing.T) {
	r := NewReader(driver.DeviceDescriptor{Name: "x", Address: "127.0.0.1:1", Transport: driver.TransportTCP}, DefaultOptions(), nil)
	err := r.Connect()
	var failure *driver.OperationFailure
	assert.ErrorAs(t, err, &failure)

	r = NewReader(driver.DeviceDescriptor{Name: "x", Address: "no-port", Transport: driver.TransportTCP}, DefaultOptions(), nil)
	var usage *driver.UsageError
	assert.ErrorAs(t, r.Connect(), &usage)
}

func TestEnumeratorTransports(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoints = []string{"10.0.0.5:6000", "10.0.0.6:6000", " "}
	cfg.SerialPorts = []string{"/dev/ttyS1"}
	e := NewEnumerator(cfg)
	e.listPorts = func() ([]string, error) {
		return []string{"/dev/ttyUSB1", "/dev/ttyS0", "/dev/ttyS1", "/dev/ttyUSB0"}, nil
	}
	e.probe = func(ctx context.Context, address string, timeout time.Duration) error {
		if address == "10.0.0.6:6000" {
			return errors.New("refused")
		}
		return nil
	}

	usb, err := e.Available(context.Background(), driver.TransportUSB)
	require.NoError(t, err)
	require.Len(t, usb, 2)
	assert.Equal(t, "ST8508-ttyUSB0", usb[0].Name)
	assert.Equal(t, "/dev/ttyUSB0", usb[0].Address)

	ser, err := e.Available(context.Background(), driver.TransportSerial)
	require.NoError(t, err)
	require.Len(t, ser, 1)
	assert.Equal(t, "/dev/ttyS1", ser[0].Address)

	tcp, err := e.Available(context.Background(), driver.TransportTCP)
	require.NoError(t, err)
	require.Len(t, tcp, 1)
	assert.Equal(t, "ST8508-10.0.0.5:6000", tcp[0].Name)

	all, err := e.Available(context.Background(), driver.TransportAll)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	bt, err := e.Available(context.Background(), driver.TransportBluetooth)
	require.NoError(t, err)
	assert.Empty(t, bt)
}

type watchRecorder struct {
	mu       sync.Mutex
	appeared []string
	gone     []string
}

func (w *watchRecorder) DeviceAppeared(d driver.DeviceDescriptor) {
	w.mu.Lock()
	w.appeared = append(w.appeared, d.Address)
	w.mu.Unlock()
}

func (w *watchRecorder) DeviceDisappeared(d driver.DeviceDescriptor) {
	w.mu.Lock()
	w.gone = append(w.gone, d.Address)
	w.mu.Unlock()
}

func TestEnumeratorWatchReportsHotplug(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WatchInterval = 5 * time.Millisecond
	e := NewEnumerator(cfg)

	var mu sync.Mutex
	ports := []string{"/dev/ttyUSB0"}
	e.listPorts = func() ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), ports...), nil
	}

	w := &watchRecorder{}
	e.Watch(w)
	t.Cleanup(func() { _ = e.Dispose() })
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	ports = []string{"/dev/ttyACM0"}
	mu.Unlock()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.appeared) == 1 && len(w.gone) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/dev/ttyACM0"}, w.appeared)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, w.gone)
}

func inventoryFrame(t *testing.T, data []byte) reader18.Frame {
	t.Helper()
	frames, _ := reader18.ParseFrames(reader18.BuildResponse(0, reader18.CmdInventory, reader18.StatusInventoryDone, data))
	require.Len(t, frames, 1)
	return frames[0]
}

func TestReaderTagRSSIFollowsFrameLayout(t *testing.T) {
	desc := driver.DeviceDescriptor{Name: "ST8508-test", Address: "127.0.0.1:6000", Transport: driver.TransportTCP}

	opts := DefaultOptions()
	opts.InventoryRSSI = true
	withRSSI := NewReader(desc, opts, nil)
	withRSSI.handleFrame(inventoryFrame(t, []byte{0x01, 1, 2, 0xE2, 0x01, 0xC5}), make(chan reader18.Frame, 1))
	assert.Equal(t, []driver.TagRecord{{TagID: "E201", PeakRSSI: -59}}, withRSSI.PullReadTags(10))

	plain := NewReader(desc, DefaultOptions(), nil)
	plain.handleFrame(inventoryFrame(t, []byte{1, 2, 0xE2, 0x01}), make(chan reader18.Frame, 1))
	assert.Equal(t, []driver.TagRecord{{TagID: "E201"}}, plain.PullReadTags(10))
}
