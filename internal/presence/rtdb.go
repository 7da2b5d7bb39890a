package presence

import (
	"context"
	"sync"

	"firebase.google.com/go/v4/db"
	"github.com/pkg/errors"

	"github.com/yourusername/friendchat-service/internal/models"
)

const statusPath = "status"

// RTDBStore keeps presence records in the Firebase Realtime Database under
// status/{userId}. The Admin SDK has no streaming listener, so watchers are
// served by an in-process fan-out of the writes made through this store.
type RTDBStore struct {
	client *db.Client
	mu     sync.Mutex
	hub    *hub
}

func NewRTDBStore(client *db.Client) *RTDBStore {
	return &RTDBStore{client: client, hub: newHub()}
}

func (s *RTDBStore) ref(userID string) *db.Ref {
	return s.client.NewRef(statusPath).Child(userID)
}

func (s *RTDBStore) Get(ctx context.Context, userID string) (models.PresenceRecord, bool, error) {
	var rec models.PresenceRecord
	if err := s.ref(userID).Get(ctx, &rec); err != nil {
		return rec, false, errors.Wrapf(err, "get presence of %s", userID)
	}
	return rec, rec.State != "", nil
}

func (s *RTDBStore) Set(ctx context.Context, userID string, rec models.PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ref(userID).Set(ctx, rec); err != nil {
		return errors.Wrapf(err, "set presence of %s", userID)
	}
	s.hub.publish(userID, rec)
	return nil
}

func (s *RTDBStore) Watch(ctx context.Context, userID string) (*Watcher, error) {
	rec, ok, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.hub.subscribe(ctx, userID)
	if ok {
		w.offer(rec)
	}
	return w, nil
}

func (s *RTDBStore) ListOnline(ctx context.Context) (map[string]models.PresenceRecord, error) {
	records := make(map[string]models.PresenceRecord)
	q := s.client.NewRef(statusPath).OrderByChild("state").EqualTo(string(models.PresenceOnline))
	if err := q.Get(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "list online presence")
	}
	return records, nil
}
