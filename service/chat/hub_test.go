package chat

import (
	"sync"
	"testing"
)

// A user disconnecting while a message is being delivered to them must not
// take the hub down. Run with -race to catch lock regressions.
func TestDeliverSurvivesConcurrentDisconnects(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	const userID = 7
	payload := []byte(`{"type":"message","content":"hi"}`)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.deliver(userID, payload)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		client := &Client{
			hub:    hub,
			send:   make(chan []byte, 1),
			userID: userID,
		}
		hub.register <- client
		hub.unregister <- client
	}

	close(stop)
	wg.Wait()

	// The user's last connection is gone, so delivery reports nobody online.
	if hub.deliver(userID, payload) {
		t.Fatal("expected no connections after all clients unregistered")
	}
}

func TestDeliverFansOutToAllConnections(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	const userID = 3
	first := &Client{hub: hub, send: make(chan []byte, 1), userID: userID}
	second := &Client{hub: hub, send: make(chan []byte, 1), userID: userID}
	hub.register <- first
	hub.register <- second

	// Synchronize with the hub goroutine before asserting.
	sentinel := &Client{hub: hub, send: make(chan []byte, 1), userID: userID}
	hub.register <- sentinel
	hub.unregister <- sentinel

	payload := []byte(`{"type":"message","content":"hello"}`)
	if !hub.deliver(userID, payload) {
		t.Fatal("expected delivery to registered connections")
	}

	for i, client := range []*Client{first, second} {
		select {
		case got := <-client.send:
			if string(got) != string(payload) {
				t.Errorf("connection %d received %q, want %q", i, got, payload)
			}
		default:
			t.Errorf("connection %d received nothing", i)
		}
	}
}
