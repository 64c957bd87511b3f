//go:build deadlock

// Package syncutil holds the lock types shared by the session and driver packages.
// This file is compiled with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

func init() {
	// a hardware connect can legitimately hold the session lock for a while
	deadlock.Opts.DeadlockTimeout = 2 * time.Minute
}

// Mutex reports lock-order inversions and long waits.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex reports lock-order inversions and long waits.
type RWMutex struct {
	deadlock.RWMutex
}
