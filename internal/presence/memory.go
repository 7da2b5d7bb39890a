package presence

import (
	"context"
	"sync"

	"github.com/yourusername/friendchat-service/internal/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.PresenceRecord
	hub     *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.PresenceRecord),
		hub:     newHub(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (models.PresenceRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	return rec, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, userID string, rec models.PresenceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// hold the write lock while publishing so watchers see writes in order
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = rec
	m.hub.publish(userID, rec)
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context, userID string) (*Watcher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w := m.hub.subscribe(ctx, userID)
	if rec, ok := m.records[userID]; ok {
		w.offer(rec)
	}
	return w, nil
}

func (m *MemoryStore) ListOnline(ctx context.Context) (map[string]models.PresenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.PresenceRecord)
	for id, rec := range m.records {
		if rec.State == models.PresenceOnline {
			out[id] = rec
		}
	}
	return out, nil
}
