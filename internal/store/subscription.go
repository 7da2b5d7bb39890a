package store

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// Subscription is a handle on a realtime query. Snapshots are delivered in
// order on the channel returned by Snapshots. The channel is closed once the
// subscription ends, after which Err reports a backend failure, if any.
// Close is idempotent and must be called on every exit path of the consumer.
type Subscription struct {
	ch     chan Snapshot
	ctx    context.Context
	cancel context.CancelFunc
	signal chan struct{}

	mu      sync.Mutex
	pending []Snapshot
	err     error
}

func newSubscription(parent context.Context) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		ch:     make(chan Snapshot),
		ctx:    ctx,
		cancel: cancel,
		signal: make(chan struct{}, 1),
	}
}

func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.ch
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Subscription) Close() {
	s.cancel()
}

// push queues a snapshot without blocking the producer.
func (s *Subscription) push(snap Snapshot) {
	s.mu.Lock()
	s.pending = append(s.pending, snap)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cancel()
}

// run pumps queued snapshots to the consumer until the subscription ends.
// cleanup runs before the channel is closed.
func (s *Subscription) run(cleanup func()) {
	defer func() {
		if cleanup != nil {
			cleanup()
		}
		close(s.ch)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.ch <- next:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// diffDocuments computes the changes from prev (indexed by id) to next and
// returns the index of next for the following round.
func diffDocuments(prev map[string]*Document, next []*Document) ([]Change, map[string]*Document) {
	changes := make([]Change, 0)
	index := make(map[string]*Document, len(next))

	for _, doc := range next {
		index[doc.ID] = doc
		old, ok := prev[doc.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: Added, Doc: doc})
		case !reflect.DeepEqual(old.Data, doc.Data):
			changes = append(changes, Change{Kind: Modified, Doc: doc})
		}
	}

	removed := make([]string, 0)
	for id := range prev {
		if _, ok := index[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		changes = append(changes, Change{Kind: Removed, Doc: prev[id]})
	}

	return changes, index
}
