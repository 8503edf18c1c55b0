package relay

import (
	"sync"
	"time"

	"telecall/internal/core/domain"
)

// room holds the live connections of one consultation.
type room struct {
	id       domain.ConsultationID
	openedAt time.Time

	mu      sync.RWMutex
	clients map[domain.ConnectionID]*client
}

func newRoom(id domain.ConsultationID) *room {
	return &room{
		id:       id,
		openedAt: time.Now(),
		clients:  make(map[domain.ConnectionID]*client),
	}
}

func (r *room) add(cl *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[cl.connID] = cl
}

// remove drops one connection and reports how many remain.
func (r *room) remove(id domain.ConnectionID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	return len(r.clients)
}

func (r *room) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// broadcast sends to every client except the excluded connection.
// Failed sends are skipped; the read loop of the broken connection
// handles its own teardown.
func (r *room) broadcast(msg domain.SignalMessage, except domain.ConnectionID) {
	r.mu.RLock()
	targets := make([]*client, 0, len(r.clients))
	for id, cl := range r.clients {
		if id != except {
			targets = append(targets, cl)
		}
	}
	r.mu.RUnlock()

	for _, cl := range targets {
		cl.send(msg)
	}
}
