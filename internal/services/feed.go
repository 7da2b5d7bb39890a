package services

import (
	"github.com/yourusername/friendchat-service/internal/store"
)

// Feed turns the snapshots of a store subscription into decoded values. The
// channel returned by Updates is closed when the subscription ends.
type Feed[T any] struct {
	sub *store.Subscription
	out chan T
}

func newFeed[T any](sub *store.Subscription, decode func([]*store.Document) T) *Feed[T] {
	f := &Feed[T]{sub: sub, out: make(chan T)}
	go func() {
		defer close(f.out)
		for snap := range sub.Snapshots() {
			select {
			case f.out <- decode(snap.Docs):
			case <-sub.Done():
				return
			}
		}
	}()
	return f
}

func (f *Feed[T]) Updates() <-chan T {
	return f.out
}

// Err reports why the feed ended, nil after Close.
func (f *Feed[T]) Err() error {
	return f.sub.Err()
}

func (f *Feed[T]) Close() {
	f.sub.Close()
}
