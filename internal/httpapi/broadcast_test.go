package httpapi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"handheld_rfid_go/internal/ui"
)

// addIdleClient registers a client without a connection or write pump.
func addIdleClient(b *Broadcaster, buffer int) *client {
	c := &client{send: make(chan []byte, buffer)}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

func TestHandleSurvivesConcurrentRemoval(t *testing.T) {
	b := NewBroadcaster(nil, 1<<20)
	clients := make([]*client, 0, 2000)
	for i := 0; i < 2000; i++ {
		clients = append(clients, addIdleClient(b, 256))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, c := range clients {
			b.RemoveClient(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Handle(ui.Toast{Text: "Reader disappeared: RFD40-A"})
		}
	}()
	wg.Wait()

	assert.Zero(t, b.ClientCount())
}

func TestHandleSurvivesClose(t *testing.T) {
	b := NewBroadcaster(nil, 1<<20)
	for i := 0; i < 500; i++ {
		addIdleClient(b, 256)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.Handle(ui.Trigger{Pressed: i%2 == 0})
		}
	}()
	b.Close()
	<-done

	assert.Zero(t, b.ClientCount())
}

func TestSlowClientIsDropped(t *testing.T) {
	b := NewBroadcaster(nil, 4)
	slow := addIdleClient(b, 1)
	fast := addIdleClient(b, 8)

	b.Handle(ui.Barcode{Text: "0123456789"})
	b.Handle(ui.Barcode{Text: "9876543210"})

	assert.Equal(t, 1, b.ClientCount())
	_, open := <-slow.send
	assert.True(t, open, "queued frame is still readable")
	_, open = <-slow.send
	assert.False(t, open, "slow client channel is closed")
	assert.Len(t, fast.send, 2)
}
