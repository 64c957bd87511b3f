package ui

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handheld_rfid_go/internal/driver"
)

type fakeController struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeController) SetInventory(running bool) {
	f.mu.Lock()
	f.calls = append(f.calls, running)
	f.mu.Unlock()
}

func TestScreenUniqueCountIgnoresDuplicateBatch(t *testing.T) {
	t.Parallel()

	s := NewScreen(nil)
	s.Handle(ReaderStatus{Text: "Connected: RFD40-A (120 ms)", Connected: true})
	s.Handle(TagBatch{Tags: []driver.TagRecord{{TagID: "E200000000000001", PeakRSSI: -42}}})
	s.Handle(TagBatch{Tags: []driver.TagRecord{{TagID: "E200000000000001", PeakRSSI: -40}}})

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.UniqueTags)
	require.Len(t, snap.Tags, 1)
	assert.Equal(t, "E200000000000001 (RSSI: -42)", FormatTag(snap.Tags[0]))
	assert.Equal(t, "Connected: RFD40-A (120 ms) | Unique Tags: 1", snap.StatusLine())
}

func TestScreenCountMatchesDistinctSinceRestart(t *testing.T) {
	t.Parallel()

	s := NewScreen(nil)
	batches := [][]string{
		{"A", "B", "A"},
		{"B", "C"},
		{"C", "D", "A"},
	}
	for _, ids := range batches {
		var batch []driver.TagRecord
		for _, id := range ids {
			batch = append(batch, driver.TagRecord{TagID: id})
		}
		s.Handle(TagBatch{Tags: batch})
	}
	assert.Equal(t, 4, s.Snapshot().UniqueTags)

	s.StartInventory()
	assert.Equal(t, 0, s.Snapshot().UniqueTags)

	s.Handle(TagBatch{Tags: []driver.TagRecord{{TagID: "A"}, {TagID: "E"}}})
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.UniqueTags)
	assert.Equal(t, "E", snap.Tags[0].TagID, "newest tag is listed first")
}

func TestScreenTriggerDrivesInventory(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{}
	s := NewScreen(ctl)
	s.Handle(TagBatch{Tags: []driver.TagRecord{{TagID: "OLD"}}})

	s.Handle(Trigger{Pressed: true})
	snap := s.Snapshot()
	assert.True(t, snap.InventoryRunning)
	assert.Equal(t, 0, snap.UniqueTags, "press clears the list")

	s.Handle(Trigger{Pressed: false})
	assert.False(t, s.Snapshot().InventoryRunning)
	assert.Equal(t, []bool{true, false}, ctl.calls)
}

func TestScreenScanButtonBarcodeAndToasts(t *testing.T) {
	t.Parallel()

	s := NewScreen(nil)
	s.Handle(ScanButtonState{Enabled: true})
	s.Handle(Barcode{Text: "0123456789"})
	for i := 0; i < 7; i++ {
		s.Handle(Toast{Text: "t"})
	}
	s.Handle(ReaderStatus{Text: "Disconnected"})

	snap := s.Snapshot()
	assert.True(t, snap.ScanEnabled)
	assert.Equal(t, "0123456789", snap.LastBarcode)
	assert.Len(t, snap.Toasts, maxToasts)
	assert.False(t, snap.Connected)
	assert.Equal(t, "Disconnected", snap.StatusLine())
}
