package tags

import (
	"fmt"
	"sync"
	"testing"

	"handheld_rfid_go/internal/driver"
)

func TestObserveDropsDuplicatesAcrossBatches(t *testing.T) {
	s := New()

	first := s.Observe([]driver.TagRecord{
		{TagID: "E20000000001", PeakRSSI: -42},
		{TagID: "E20000000001", PeakRSSI: -40},
		{TagID: "E20000000002", PeakRSSI: -55},
	})
	if len(first) != 2 {
		t.Fatalf("expected 2 fresh tags, got %d", len(first))
	}

	second := s.Observe([]driver.TagRecord{{TagID: "E20000000001", PeakRSSI: -41}})
	if len(second) != 0 {
		t.Fatalf("expected duplicate batch to be empty, got %+v", second)
	}
	if s.Size() != 2 {
		t.Fatalf("unexpected size: %d", s.Size())
	}
	if !s.Has("E20000000002") {
		t.Fatalf("expected lookup to hit")
	}
}

func TestObserveSkipsBlankAndResetClears(t *testing.T) {
	s := New()
	if got := s.Observe([]driver.TagRecord{{TagID: "  "}}); len(got) != 0 {
		t.Fatalf("blank id must be ignored: %+v", got)
	}

	s.Observe([]driver.TagRecord{{TagID: "A1"}})
	s.Reset()
	if s.Size() != 0 || s.Has("A1") {
		t.Fatalf("reset did not clear the set")
	}
	if got := s.Observe([]driver.TagRecord{{TagID: "A1"}}); len(got) != 1 {
		t.Fatalf("tag should be fresh again after reset")
	}
}

func TestObserveKeepsIDsAsReported(t *testing.T) {
	s := New()
	got := s.Observe([]driver.TagRecord{{TagID: "e200"}, {TagID: "E200"}, {TagID: " E200"}})
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct ids, got %+v", got)
	}
	if got[0].TagID != "e200" || got[2].TagID != " E200" {
		t.Fatalf("ids were rewritten: %+v", got)
	}
	if s.Has("E200 ") {
		t.Fatalf("unexpected hit for a different id")
	}
}

func TestObserveConcurrentBatchesReportEachIDOnce(t *testing.T) {
	s := New()
	const workers, perWorker = 8, 200

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				got := s.Observe([]driver.TagRecord{{TagID: fmt.Sprintf("E2%04d", i)}})
				_ = s.Has(fmt.Sprintf("E2%04d", i))
				mu.Lock()
				fresh += len(got)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if fresh != perWorker {
		t.Fatalf("expected %d fresh reports, got %d", perWorker, fresh)
	}
	if s.Size() != perWorker {
		t.Fatalf("unexpected size: %d", s.Size())
	}
}
