package presence

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/pkg/logger"
)

type deferredWrite struct {
	userID string
	state  models.PresenceState
}

// DisconnectRegistry holds the writes to perform when a connection drops.
// The timestamp of a deferred write is taken when it fires.
type DisconnectRegistry struct {
	mu    sync.Mutex
	hooks map[string]deferredWrite
	store Store
	now   func() time.Time
}

func NewDisconnectRegistry(store Store) *DisconnectRegistry {
	return &DisconnectRegistry{
		hooks: make(map[string]deferredWrite),
		store: store,
		now:   time.Now,
	}
}

// Register replaces any write already registered for connID.
func (r *DisconnectRegistry) Register(connID, userID string, state models.PresenceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[connID] = deferredWrite{userID: userID, state: state}
}

// Cancel drops the write registered for connID without performing it.
func (r *DisconnectRegistry) Cancel(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.hooks[connID]
	delete(r.hooks, connID)
	return ok
}

// Fire performs and removes the write registered for connID. A hook fires
// at most once.
func (r *DisconnectRegistry) Fire(ctx context.Context, connID string) error {
	r.mu.Lock()
	hook, ok := r.hooks[connID]
	delete(r.hooks, connID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	rec := models.PresenceRecord{State: hook.state, LastChanged: r.now().UnixMilli()}
	if err := r.store.Set(ctx, hook.userID, rec); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"user_id": hook.userID,
			"conn_id": connID,
		}).Error("Failed to run disconnect write")
		return err
	}
	return nil
}

// Live reports whether userID has at least one registered connection.
func (r *DisconnectRegistry) Live(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hook := range r.hooks {
		if hook.userID == userID {
			return true
		}
	}
	return false
}
