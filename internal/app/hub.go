package app

import (
	"context"
	"sync"
)

// Hub fans record changes out to in-process subscriptions.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[*Subscription]struct{})}
}

var _ ChangeNotifier = (*Hub)(nil)

// Subscription is a cancellable registration on a Hub. Its callback runs on a
// dedicated goroutine, once per notification, in notification order.
type Subscription struct {
	hub    *Hub
	userID int64
	fn     func(ctx context.Context)

	mu      sync.Mutex
	pending int
	wake    chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Subscribe registers fn for changes to userID's records. The subscription
// ends when ctx is done or Cancel is called.
func (h *Hub) Subscribe(ctx context.Context, userID int64, fn func(ctx context.Context)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		hub:     h,
		userID:  userID,
		fn:      fn,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()

	go s.run()
	return s
}

// RecordsChanged queues a delivery on every subscription of userID.
func (h *Hub) RecordsChanged(_ context.Context, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[userID] {
		s.enqueue()
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.userID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.userID)
	}
}

func (s *Subscription) enqueue() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		return false
	}
	s.pending--
	return true
}

func (s *Subscription) run() {
	defer close(s.stopped)
	defer s.hub.remove(s)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for s.next() {
			if s.ctx.Err() != nil {
				return
			}
			s.fn(s.ctx)
		}
	}
}

// Cancel unregisters the subscription and drops pending deliveries. A
// callback already running finishes. Safe to call more than once and from
// inside the callback.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
	s.cancel()
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.stopped
}
