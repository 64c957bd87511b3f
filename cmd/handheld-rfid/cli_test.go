package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "none.yaml"),
		"--env-file", filepath.Join(dir, "none.env"),
		"--log-level", "error",
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestScanWithSimDriver(t *testing.T) {
	t.Setenv("RFID_TRANSPORTS", "serial,tcp")
	out, err := executeCLI(t, "--driver", "sim", "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "serial       1 device(s)")
	assert.Contains(t, out, "tcp          none")
	assert.Contains(t, out, "selected: "+simReaderName)
}

func TestScanJSON(t *testing.T) {
	out, err := executeCLI(t, "--driver", "sim", "scan", "--json")
	require.NoError(t, err)

	var report scanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "sim", report.Driver)
	assert.Equal(t, simReaderName, report.Selected)
}

func TestUnknownDriverFails(t *testing.T) {
	_, err := executeCLI(t, "--driver", "zebra", "scan")
	require.Error(t, err)
}
