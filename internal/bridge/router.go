package bridge

import (
	"strings"
	"sync"
)

const (
	defaultSubscriberCapacity = 32
	defaultBacklogLimit       = 16
	defaultDedupeWindow       = 256

	// AllNotifications subscribes to every notification name.
	AllNotifications = "*"
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router fans notifications out to subscribers by name. Notifications that
// arrive before anyone subscribes are kept in a bounded backlog.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[string]map[*subscriber]struct{}
	backlog      map[string][]Notification
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
}

// Subscription represents an active subscription.
type Subscription struct {
	Notifications <-chan Notification
	cancel        func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[string]map[*subscriber]struct{}{},
		backlog:      map[string][]Notification{},
		recentIDs:    map[string]struct{}{},
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
		logger:       nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop messages.
func RouterWithLogger(logger Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(cap int) RouterOption {
	return func(r *Router) {
		if cap > 0 {
			r.channelSize = cap
		}
	}
}

// RouterWithBacklogLimit overrides the backlog size for pre-subscription buffering.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// Subscribe registers for notifications with the given name, or every name
// with AllNotifications.
func (r *Router) Subscribe(name string) Subscription {
	key := normalizeName(name)
	sub := newSubscriber(r.channelSize, r.logger)
	var backlog []Notification
	r.mu.Lock()
	if r.subscribers[key] == nil {
		r.subscribers[key] = map[*subscriber]struct{}{}
	}
	r.subscribers[key][sub] = struct{}{}
	if key == AllNotifications {
		for name, queued := range r.backlog {
			backlog = append(backlog, queued...)
			delete(r.backlog, name)
		}
	} else if queued := r.backlog[key]; len(queued) > 0 {
		backlog = append(backlog, queued...)
		delete(r.backlog, key)
	}
	r.mu.Unlock()
	for _, n := range backlog {
		sub.deliver(n)
	}
	return Subscription{
		Notifications: sub.channel(),
		cancel: func() {
			r.removeSubscriber(key, sub)
		},
	}
}

// HandleNotification satisfies Processor.
func (r *Router) HandleNotification(n Notification) error {
	r.Route(n)
	return nil
}

// Route delivers n to matching subscribers or buffers it.
func (r *Router) Route(n Notification) {
	if n.ID != "" && r.isDuplicate(n.ID) {
		return
	}
	key := normalizeName(n.Name)
	if key == "" {
		return
	}
	r.mu.RLock()
	subs := r.snapshotSubscribers(key)
	subs = append(subs, r.snapshotSubscribers(AllNotifications)...)
	r.mu.RUnlock()
	if len(subs) == 0 {
		r.bufferNotification(key, n)
		return
	}
	for _, sub := range subs {
		sub.deliver(n)
	}
}

func (r *Router) snapshotSubscribers(key string) []*subscriber {
	live := r.subscribers[key]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(key string, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.subscribers[key]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.subscribers, key)
		}
	}
	sub.close()
}

func (r *Router) bufferNotification(key string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.backlog[key]
	if len(queue) >= r.backlogLimit {
		queue = queue[1:]
		r.logger.Printf("bridge: backlog drop for %s (limit %d)", key, r.backlogLimit)
	}
	r.backlog[key] = append(queue, n)
}

func (r *Router) isDuplicate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentIDs[id]; ok {
		return true
	}
	r.recentIDs[id] = struct{}{}
	r.recentOrder = append(r.recentOrder, id)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Notification
	logger Logger
	closed bool
}

func newSubscriber(capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan Notification, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan Notification {
	return s.ch
}

// deliver drops the oldest queued notification when the buffer is full.
func (s *subscriber) deliver(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- n:
			return
		default:
		}
		select {
		case dropped := <-s.ch:
			s.logger.Printf("bridge: dropped notification %s (queue overflow)", dropped.ID)
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
