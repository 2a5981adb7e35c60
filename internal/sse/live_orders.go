package sse

import (
	"context"
	"sync"

	"ms-ordering/internal/models"
)

// LiveOrderEmitter fans newly placed orders out to the SSE streams of the
// owning canteen's dashboard.
type LiveOrderEmitter struct {
	clients map[string][]chan models.OrderWithItems // canteenID -> subscriber channels
	mu      sync.RWMutex
}

func NewLiveOrderEmitter() *LiveOrderEmitter {
	return &LiveOrderEmitter{
		clients: make(map[string][]chan models.OrderWithItems),
	}
}

// Subscribe registers a client for a canteen's live orders. The returned
// channel is closed and removed when ctx is done.
func (e *LiveOrderEmitter) Subscribe(ctx context.Context, canteenID string) chan models.OrderWithItems {
	clientChan := make(chan models.OrderWithItems, 10)

	e.mu.Lock()
	e.clients[canteenID] = append(e.clients[canteenID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(canteenID, clientChan)
	}()

	return clientChan
}

// EmitOrderPlaced broadcasts to every subscriber of the order's canteen.
// Sends are non-blocking: a slow client misses the event rather than stalling
// the reconciliation path.
func (e *LiveOrderEmitter) EmitOrderPlaced(order models.OrderWithItems) {
	// Sends happen under the read lock: removeClient closes channels under the
	// write lock, so a channel can never be closed mid-broadcast.
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[order.CanteenID] {
		select {
		case clientChan <- order:
		default:
			// Channel buffer full, skip this client.
		}
	}
}

func (e *LiveOrderEmitter) removeClient(canteenID string, clientChan chan models.OrderWithItems) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[canteenID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[canteenID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[canteenID]) == 0 {
		delete(e.clients, canteenID)
	}
}

// ClientCount reports the number of live subscribers for a canteen.
func (e *LiveOrderEmitter) ClientCount(canteenID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[canteenID])
}
