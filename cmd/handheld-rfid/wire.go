package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/config"
	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/driver/serialscan"
	"handheld_rfid_go/internal/driver/sim"
	"handheld_rfid_go/internal/driver/st8508"
	"handheld_rfid_go/internal/httpapi"
	"handheld_rfid_go/internal/session"
	"handheld_rfid_go/internal/tui"
	"handheld_rfid_go/internal/ui"
)

const simReaderName = "RFD4031-SIM"

type app struct {
	cfg        config.Config
	screen     *ui.Screen
	dispatcher *ui.Dispatcher
	session    *session.Session
	scanner    driver.ScannerSDK
	hub        *httpapi.Broadcaster
	notifier   *tui.Notifier
}

func buildApp(cfg config.Config, withTUI bool) (*app, error) {
	factory, err := enumeratorFactory(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, screen: ui.NewScreen(nil)}
	sinks := ui.Tee{a.screen}
	if cfg.HTTP.Addr != "" {
		a.hub = httpapi.NewBroadcaster(a.screen.Snapshot, 16)
		sinks = append(sinks, a.hub)
	}
	if withTUI {
		a.notifier = tui.NewNotifier(a.screen)
		sinks = append(sinks, a.notifier)
	}
	a.dispatcher = ui.NewDispatcher(sinks)
	a.screen.SetPoster(a.dispatcher)

	a.scanner = scannerSDK(cfg)
	a.session = session.New(factory, a.scanner, a.dispatcher, cfg.SessionOptions())
	a.screen.SetController(a.session)
	return a, nil
}

func (a *app) start(ctx context.Context) {
	a.dispatcher.Start(ctx)
	a.session.Start(ctx)
	a.session.ConnectAsync()
}

func (a *app) stop() {
	a.session.Close()
	if c, ok := a.scanner.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Str("component", "app").Err(err).Msg("close scanner")
		}
	}
	a.dispatcher.Close()
	if a.hub != nil {
		a.hub.Close()
	}
}

func (a *app) server() *httpapi.Server {
	if a.cfg.HTTP.Addr == "" {
		return nil
	}
	return httpapi.New(a.cfg.HTTP.Addr, a.session, a.screen, a.hub)
}

func enumeratorFactory(cfg config.Config) (driver.EnumeratorFactory, error) {
	switch cfg.Driver {
	case config.DriverSim:
		return simEnumerator(cfg).Factory(), nil
	case config.DriverST8508:
		return st8508.Factory(cfg.ST8508Config()), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func simEnumerator(cfg config.Config) *sim.Enumerator {
	enum := sim.NewEnumerator()
	enum.SetDemo(cfg.Reader.Demo)
	transports, _ := cfg.TransportOrder()
	if len(transports) == 0 {
		transports = driver.DefaultTransportOrder
	}
	enum.SetDevices(transports[0], sim.Device{Name: simReaderName, Address: "sim://0"})
	return enum
}

// scannerSDK returns nil when no scanner is configured.
func scannerSDK(cfg config.Config) driver.ScannerSDK {
	switch cfg.Scanner.Driver {
	case config.ScannerSim:
		sc := sim.NewScanner(driver.ScannerInfo{ID: 1, Name: simReaderName + " scanner"})
		sc.SetDemo(cfg.Reader.Demo)
		return sc
	case config.ScannerSerial:
		return serialscan.New(cfg.SerialScannerConfig())
	default:
		return nil
	}
}
