package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribePrefersStatusDescription(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("connect: %w", &OperationFailure{Op: "connect", Description: "Region not set"})
	assert.Equal(t, "Region not set", Describe(err))
}

func TestDescribeUsageAndSentinels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bad power", Describe(&UsageError{Op: "x", Info: "bad power"}))
	assert.Equal(t, "reader not found", Describe(fmt.Errorf("discover: %w", ErrNotFound)))
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}

func TestFailKeepsExistingFailure(t *testing.T) {
	t.Parallel()

	inner := &OperationFailure{Op: "start", Description: "busy"}
	require.Same(t, inner, Fail("wrap", inner))

	wrapped := Fail("stop", errors.New("link down"))
	var failure *OperationFailure
	require.ErrorAs(t, wrapped, &failure)
	assert.Equal(t, "stop", failure.Op)
	assert.Equal(t, "link down", failure.Description)
	assert.NoError(t, Fail("noop", nil))
}

func TestDefaultAntennaConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultAntennaConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MaxPowerIndex, cfg.TransmitPowerIndex)
	assert.Equal(t, SessionS0, cfg.Session)

	cfg.TransmitPowerIndex = 400
	var usage *UsageError
	require.ErrorAs(t, cfg.Validate(), &usage)
}

func TestParseTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Transport
		ok   bool
	}{
		{"RE_SERIAL", TransportSerial, true},
		{" usb ", TransportUSB, true},
		{"bt", TransportBluetooth, true},
		{"carrier-pigeon", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTransport(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
