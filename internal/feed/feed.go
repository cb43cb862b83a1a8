// Package feed is an in-process change feed: writers publish events and
// subscribers receive the ones matching their topic.
package feed

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 64

// Hub fans published events out to matching subscribers.
//
// Publish never blocks: a subscriber whose queue is full is dropped and its
// subscription ends with [shared.ErrSubscriptionClosed].
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	buffer int
	logger *log.Logger
}

// NewHub creates a hub. buffer <= 0 uses [DefaultBuffer].
func NewHub(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		subs:   map[*subscription]struct{}{},
		buffer: buffer,
		logger: shared.WithLogger(logger, "component", "feed"),
	}
}

// Subscribe registers a subscriber for topic. The subscription ends when ctx is
// done, when it is closed, or when it falls behind.
func (h *Hub) Subscribe(ctx context.Context, topic models.Topic) (models.Subscription, error) {
	return h.SubscribeAs(ctx, "", topic)
}

// SubscribeAs registers a subscriber that only receives events published for
// owner. An empty owner receives events of every owner.
func (h *Hub) SubscribeAs(ctx context.Context, owner string, topic models.Topic) (models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &subscription{
		hub:    h,
		owner:  owner,
		topic:  topic,
		events: make(chan models.Event, h.buffer),
		ended:  make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.end(s, ctx.Err())
			case <-s.ended:
			}
		}()
	}
	return s, nil
}

// Publish delivers e to every matching subscriber that is not scoped to an owner.
func (h *Hub) Publish(e models.Event) {
	h.PublishAs("", e)
}

// PublishAs delivers e, a change to rows owned by owner, to matching
// subscribers of that owner and to unscoped subscribers.
func (h *Hub) PublishAs(owner string, e models.Event) {
	h.mu.Lock()
	var slow []*subscription
	for s := range h.subs {
		if s.owner != "" && s.owner != owner {
			continue
		}
		if !s.topic.Matches(e) {
			continue
		}
		select {
		case s.events <- e:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.Unlock()

	for _, s := range slow {
		h.logger.Warn("dropping slow subscriber", "topic", s.topic)
		h.end(s, shared.ErrSubscriptionClosed)
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.end(s, shared.ErrSubscriptionClosed)
	}
}

// end removes s and closes its channel once. err is what Err reports afterwards.
func (h *Hub) end(s *subscription, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.events)
	close(s.ended)
}

type subscription struct {
	hub    *Hub
	owner  string
	topic  models.Topic
	events chan models.Event
	ended  chan struct{}

	mu  sync.Mutex
	err error
}

func (s *subscription) Events() <-chan models.Event { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.hub.end(s, nil)
	return nil
}
