package driver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means discovery produced no usable device.
	ErrNotFound = errors.New("reader not found")
	// ErrTimeout means a device did not answer a command in time. Connect is never bounded.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotConnected is returned by handle operations that need an open link.
	ErrNotConnected = errors.New("not connected")
)

// UsageError reports a caller mistake such as an invalid configuration.
type UsageError struct {
	Op   string
	Info string
}

func (e *UsageError) Error() string {
	if e.Op == "" {
		return "invalid usage: " + e.Info
	}
	return fmt.Sprintf("%s: invalid usage: %s", e.Op, e.Info)
}

// OperationFailure reports that the device rejected a request.
type OperationFailure struct {
	Op          string
	Description string
	Err         error
}

func (e *OperationFailure) Error() string {
	msg := e.Description
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *OperationFailure) Unwrap() error { return e.Err }

// Fail wraps err as an OperationFailure for op.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var failure *OperationFailure
	if errors.As(err, &failure) {
		return err
	}
	return &OperationFailure{Op: op, Description: err.Error(), Err: err}
}

// Describe turns any driver error into the text shown to an operator.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var failure *OperationFailure
	if errors.As(err, &failure) {
		if d := strings.TrimSpace(failure.Description); d != "" {
			return d
		}
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return usage.Info
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "reader not found"
	case errors.Is(err, ErrTimeout):
		return "timed out"
	}
	return err.Error()
}
