package presence

import (
	"context"
	"sync"

	"github.com/yourusername/friendchat-service/internal/models"
)

// Store holds one PresenceRecord per user and pushes every write to the
// watchers of that user.
type Store interface {
	// Get reports false when the user has never published a record.
	Get(ctx context.Context, userID string) (models.PresenceRecord, bool, error)
	Set(ctx context.Context, userID string, rec models.PresenceRecord) error
	// Watch delivers the current record, if any, and then every later write.
	Watch(ctx context.Context, userID string) (*Watcher, error)
	ListOnline(ctx context.Context) (map[string]models.PresenceRecord, error)
}

// Watcher receives the latest record of one user. Slow readers skip
// intermediate values and always see the newest one.
type Watcher struct {
	ch      chan models.PresenceRecord
	done    chan struct{}
	once    sync.Once
	release func()
}

func newWatcher(release func()) *Watcher {
	return &Watcher{
		ch:      make(chan models.PresenceRecord, 1),
		done:    make(chan struct{}),
		release: release,
	}
}

func (w *Watcher) Updates() <-chan models.PresenceRecord {
	return w.ch
}

// Done is closed once the watcher is closed.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) Close() {
	w.once.Do(func() {
		if w.release != nil {
			w.release()
		}
		close(w.done)
	})
}

func (w *Watcher) offer(rec models.PresenceRecord) {
	for {
		select {
		case <-w.done:
			return
		case w.ch <- rec:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

// hub fans writes out to in-process watchers.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[*Watcher]struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*Watcher]struct{})}
}

func (h *hub) subscribe(ctx context.Context, userID string) *Watcher {
	var w *Watcher
	w = newWatcher(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers[userID], w)
		if len(h.watchers[userID]) == 0 {
			delete(h.watchers, userID)
		}
	})

	h.mu.Lock()
	if h.watchers[userID] == nil {
		h.watchers[userID] = make(map[*Watcher]struct{})
	}
	h.watchers[userID][w] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-w.done:
		}
	}()
	return w
}

func (h *hub) publish(userID string, rec models.PresenceRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[userID] {
		w.offer(rec)
	}
}

func (h *hub) count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[userID])
}
