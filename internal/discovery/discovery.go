// Package discovery walks reader transports in order and picks one device.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/driver"
)

// DefaultPrefix is the hardware family prefix used to break ties between devices.
const DefaultPrefix = "RFD"

type Options struct {
	Transports []driver.Transport
	Prefix     string
}

func DefaultOptions() Options {
	return Options{
		Transports: append([]driver.Transport(nil), driver.DefaultTransportOrder...),
		Prefix:     DefaultPrefix,
	}
}

// Result is the outcome of an enumeration pass.
type Result struct {
	Transport driver.Transport
	Devices   []driver.DeviceDescriptor
}

// Enumerate tries each transport in order and returns the first non-empty list.
// Lists are not merged across transports. A transport that errors is logged and skipped.
func Enumerate(ctx context.Context, e driver.Enumerator, transports []driver.Transport) (Result, error) {
	if e == nil {
		return Result{}, &driver.UsageError{Op: "discover", Info: "no enumerator"}
	}
	if len(transports) == 0 {
		transports = driver.DefaultTransportOrder
	}

	for _, transport := range transports {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		devices, err := e.Available(ctx, transport)
		if err != nil {
			log.Warn().Str("component", "discovery").Str("transport", string(transport)).Err(err).Msg("enumeration failed")
			continue
		}
		log.Debug().Str("component", "discovery").Str("transport", string(transport)).Int("devices", len(devices)).Msg("enumerated")
		if len(devices) > 0 {
			return Result{Transport: transport, Devices: devices}, nil
		}
	}
	return Result{}, driver.ErrNotFound
}

// Select applies the tie-break: a single device wins outright, otherwise the
// first device whose name starts with prefix, otherwise nothing.
func Select(devices []driver.DeviceDescriptor, prefix string) (driver.DeviceDescriptor, bool) {
	switch len(devices) {
	case 0:
		return driver.DeviceDescriptor{}, false
	case 1:
		return devices[0], true
	}
	if prefix == "" {
		return driver.DeviceDescriptor{}, false
	}
	for _, d := range devices {
		if strings.HasPrefix(d.Name, prefix) {
			return d, true
		}
	}
	return driver.DeviceDescriptor{}, false
}

// Find runs Enumerate and Select. It returns driver.ErrNotFound when nothing qualifies.
func Find(ctx context.Context, e driver.Enumerator, opts Options) (driver.DeviceDescriptor, error) {
	res, err := Enumerate(ctx, e, opts.Transports)
	if err != nil {
		return driver.DeviceDescriptor{}, err
	}
	desc, ok := Select(res.Devices, opts.Prefix)
	if !ok {
		return driver.DeviceDescriptor{}, fmt.Errorf("%d devices on %s, none matching %q: %w",
			len(res.Devices), res.Transport, opts.Prefix, driver.ErrNotFound)
	}
	log.Info().Str("component", "discovery").Str("device", desc.Name).Str("transport", string(res.Transport)).Msg("selected reader")
	return desc, nil
}
