// Package reader is the byte link to a reader: a TCP socket or a serial line,
// with a read loop that hands raw chunks to the driver.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

type Kind string

const (
	KindTCP    Kind = "tcp"
	KindSerial Kind = "serial"
)

const DefaultBaudRate = 57600

// Endpoint describes a reachable reader address.
type Endpoint struct {
	Kind Kind
	Host string
	Port int
	// Device and Baud apply to serial endpoints.
	Device string
	Baud   int
}

// ParseEndpoint accepts "host:port" for TCP or a device path for serial.
func ParseEndpoint(kind Kind, address string, baud int) (Endpoint, error) {
	address = strings.TrimSpace(address)
	switch kind {
	case KindTCP:
		host, portText, err := net.SplitHostPort(address)
		if err != nil {
			return Endpoint{}, fmt.Errorf("parse tcp endpoint %q: %w", address, err)
		}
		port, err := strconv.Atoi(portText)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("parse tcp endpoint %q: bad port", address)
		}
		return Endpoint{Kind: KindTCP, Host: host, Port: port}, nil
	case KindSerial:
		if address == "" {
			return Endpoint{}, fmt.Errorf("serial endpoint needs a device path")
		}
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		return Endpoint{Kind: KindSerial, Device: address, Baud: baud}, nil
	default:
		return Endpoint{}, fmt.Errorf("unknown endpoint kind %q", kind)
	}
}

func (e Endpoint) Address() string {
	if e.Kind == KindSerial {
		return e.Device
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) valid() bool {
	switch e.Kind {
	case KindSerial:
		return e.Device != ""
	default:
		return e.Host != "" && e.Port > 0
	}
}

// Packet is raw bytes received from the reader.
type Packet struct {
	When time.Time
	Data []byte
}

// Dialer opens the underlying stream for an endpoint.
type Dialer func(ctx context.Context, endpoint Endpoint, timeout time.Duration) (io.ReadWriteCloser, error)

// DefaultDialer dials TCP with net.Dialer and opens serial lines 8N1.
func DefaultDialer(ctx context.Context, endpoint Endpoint, timeout time.Duration) (io.ReadWriteCloser, error) {
	switch endpoint.Kind {
	case KindSerial:
		port, err := serial.Open(endpoint.Device, &serial.Mode{
			BaudRate: endpoint.Baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", endpoint.Device, err)
		}
		return port, nil
	default:
		dialer := net.Dialer{Timeout: timeout}
		return dialer.DialContext(ctx, "tcp", endpoint.Address())
	}
}

type session struct {
	endpoint Endpoint
	conn     io.ReadWriteCloser
	packets  chan Packet
	errs     chan error
	done     chan struct{}
}

// Client manages a single reader link.
type Client struct {
	dial Dialer

	mu      sync.RWMutex
	writeMu sync.Mutex
	session *session
}

func NewClient() *Client {
	return &Client{dial: DefaultDialer}
}

// NewClientWithDialer is NewClient with a custom stream opener.
func NewClientWithDialer(dial Dialer) *Client {
	if dial == nil {
		dial = DefaultDialer
	}
	return &Client{dial: dial}
}

func (c *Client) Connect(ctx context.Context, endpoint Endpoint, timeout time.Duration) error {
	if !endpoint.valid() {
		return fmt.Errorf("invalid endpoint")
	}

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx, endpoint, timeout)
	if err != nil {
		return err
	}

	s := &session{
		endpoint: endpoint,
		conn:     conn,
		packets:  make(chan Packet, 256),
		errs:     make(chan error, 32),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("already connected")
	}
	c.session = s
	c.mu.Unlock()

	go c.readLoop(s)
	return nil
}

func (c *Client) readLoop(s *session) {
	defer func() {
		close(s.packets)
		close(s.errs)
		close(s.done)

		c.mu.Lock()
		if c.session == s {
			c.session = nil
		}
		c.mu.Unlock()
	}()

	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.packets <- Packet{When: time.Now(), Data: data}:
			default:
			}
		}
		if err != nil {
			select {
			case s.errs <- err:
			default:
			}
			return
		}
		if n == 0 && s.endpoint.Kind == KindSerial {
			// a serial read returning nothing without error means the port went away
			select {
			case s.errs <- io.EOF:
			default:
			}
			return
		}
	}
}

func (c *Client) Disconnect() error {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s == nil {
		return nil
	}

	err := s.conn.Close()

	select {
	case <-s.done:
	case <-time.After(1200 * time.Millisecond):
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

func (c *Client) Endpoint() (Endpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Endpoint{}, false
	}
	return c.session.endpoint, true
}

func (c *Client) Packets() <-chan Packet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	return c.session.packets
}

func (c *Client) Errors() <-chan error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	return c.session.errs
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// SendRaw writes one packet. Writes are serialized.
func (c *Client) SendRaw(data []byte, timeout time.Duration) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}

	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d, ok := s.conn.(writeDeadliner); ok && timeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(timeout))
	}
	_, err := s.conn.Write(data)
	return err
}
