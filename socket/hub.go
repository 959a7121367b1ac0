package socket

import (
	"sync"
	"sync/atomic"

	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"
	"naskahsync/pkg/metrics"
)

// Subscription is one session's interest in one document. Events is closed
// when the subscription ends; Err then tells a normal unsubscribe apart from
// a subscriber that was dropped for falling behind.
type Subscription struct {
	ID     string
	DocID  string
	UserID string

	events chan model.ChangeEvent
	hub    *Hub
	lost   atomic.Bool
	closed bool // guarded by the room lock
}

func (s *Subscription) Events() <-chan model.ChangeEvent {
	return s.events
}

// Err returns apperr.ErrSubscriptionLost if the hub dropped the subscriber.
// The client recovers by subscribing again and receiving a fresh snapshot.
func (s *Subscription) Err() error {
	if s.lost.Load() {
		return apperr.ErrSubscriptionLost
	}
	return nil
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// room is the subscriber registry of a single document. Its lock orders every
// publish and registration for that document.
type room struct {
	mu   sync.Mutex
	seq  uint64
	subs map[*Subscription]struct{}
}

// Hub fans committed change events out to the subscribers of each document.
// Documents never share a room lock, so fan-out for different documents
// proceeds in parallel.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*room
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		rooms:  make(map[string]*room),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber whose first event is snap. The caller must
// hold the document's write lock while building snap and calling Subscribe,
// so no event is both reflected in the snapshot and delivered afterwards.
func (h *Hub) Subscribe(id, docID, userID string, snap model.Snapshot) *Subscription {
	sub := &Subscription{
		ID:     id,
		DocID:  docID,
		UserID: userID,
		events: make(chan model.ChangeEvent, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	r, ok := h.rooms[docID]
	if !ok {
		r = &room{subs: make(map[*Subscription]struct{})}
		h.rooms[docID] = r
	}
	r.mu.Lock()
	h.mu.Unlock()

	sub.events <- model.ChangeEvent{
		Type:       model.EventSnapshot,
		DocumentID: docID,
		Seq:        r.seq,
		Snapshot:   &snap,
	}
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	logger.Sugar.Debugf("Subscription %s for user %s joined doc %s", id, userID, docID)
	return sub
}

// Unsubscribe removes sub and closes its event channel. Empty rooms are
// released so closed sessions never leak registry entries.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[sub.DocID]
	if !ok {
		return
	}
	r.mu.Lock()
	removed := r.removeLocked(sub)
	empty := len(r.subs) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, sub.DocID)
		logger.Sugar.Infof("Closed and cleaned up empty room: %s", sub.DocID)
	}
	if removed {
		metrics.ActiveSubscriptions.Dec()
	}
}

// Publish delivers ev to every current subscriber of ev.DocumentID in the
// order Publish is called. A subscriber whose buffer is full is dropped rather
// than allowed to stall the document.
func (h *Hub) Publish(ev model.ChangeEvent) {
	h.mu.Lock()
	r, ok := h.rooms[ev.DocumentID]
	if !ok {
		h.mu.Unlock()
		return
	}
	r.mu.Lock()
	h.mu.Unlock()

	r.seq++
	ev.Seq = r.seq
	var dropped []*Subscription
	for sub := range r.subs {
		select {
		case sub.events <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		logger.Sugar.Warnf("Subscription %s (user %s) fell behind on doc %s; dropping.", sub.ID, sub.UserID, sub.DocID)
		sub.lost.Store(true)
		r.removeLocked(sub)
		metrics.ActiveSubscriptions.Dec()
		metrics.DroppedSubscriptions.Inc()
	}
	r.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
}

// Subscribers returns the number of live subscriptions to docID.
func (h *Hub) Subscribers(docID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[docID]
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Rooms returns the number of documents with at least one subscriber.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

func (r *room) removeLocked(sub *Subscription) bool {
	if sub.closed {
		return false
	}
	sub.closed = true
	delete(r.subs, sub)
	close(sub.events)
	return true
}
