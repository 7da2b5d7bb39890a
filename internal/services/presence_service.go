package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/presence"
	"github.com/yourusername/friendchat-service/pkg/logger"
)

// PresenceService publishes online/offline state per user. Every live
// connection keeps a deferred offline write in the registry, so a dropped
// connection ends offline without client action.
//
// Online records carry a heartbeat that the sweep refreshes for the sessions
// of this process. With staleAfter set, the sweep only takes offline records
// whose heartbeat is older than that, so instances sharing one presence store
// leave each other's users alone. A zero staleAfter assumes a single
// instance: every online record without a local connection is stale.
type PresenceService struct {
	store      presence.Store
	registry   *presence.DisconnectRegistry
	staleAfter time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[*PresenceSession]struct{}
}

func NewPresenceService(store presence.Store, registry *presence.DisconnectRegistry, staleAfter time.Duration) *PresenceService {
	return &PresenceService{
		store:      store,
		registry:   registry,
		staleAfter: staleAfter,
		now:        time.Now,
		sessions:   make(map[*PresenceSession]struct{}),
	}
}

// PresenceSession tracks one realtime connection of a user
type PresenceSession struct {
	svc    *PresenceService
	userID string

	mu          sync.Mutex
	connID      string
	closed      bool
	onlineSince int64
}

func (s *PresenceService) Open(userID string) *PresenceSession {
	return &PresenceSession{svc: s, userID: userID}
}

func (s *PresenceService) record(state models.PresenceState) models.PresenceRecord {
	now := s.now().UnixMilli()
	rec := models.PresenceRecord{State: state, LastChanged: now}
	if state == models.PresenceOnline {
		rec.Heartbeat = now
	}
	return rec
}

func (s *PresenceService) track(p *PresenceSession, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live {
		s.sessions[p] = struct{}{}
	} else {
		delete(s.sessions, p)
	}
}

func (s *PresenceService) liveSessions() []*PresenceSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PresenceSession, 0, len(s.sessions))
	for p := range s.sessions {
		out = append(out, p)
	}
	return out
}

// Connected registers the deferred offline write and then publishes online.
// Each call replaces the registration of the previous connection and
// reopens a closed session.
func (p *PresenceSession) Connected(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = false

	if p.connID != "" {
		p.svc.registry.Cancel(p.connID)
	}
	p.connID = uuid.NewString()
	p.svc.registry.Register(p.connID, p.userID, models.PresenceOffline)
	p.svc.track(p, true)

	rec := p.svc.record(models.PresenceOnline)
	p.onlineSince = rec.LastChanged
	if err := p.svc.store.Set(ctx, p.userID, rec); err != nil {
		logger.Log.WithError(err).WithField("user_id", p.userID).Error("Failed to publish online presence")
		return err
	}
	logger.Log.WithFields(logrus.Fields{
		"user_id": p.userID,
		"conn_id": p.connID,
	}).Debug("Presence online")
	return nil
}

// heartbeat republishes online with a fresh heartbeat while the session
// holds a connection. It runs under the session lock so that it cannot land
// after the offline write of Close or Dropped.
func (p *PresenceSession) heartbeat(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connID == "" {
		return nil
	}
	return p.svc.store.Set(ctx, p.userID, models.PresenceRecord{
		State:       models.PresenceOnline,
		LastChanged: p.onlineSince,
		Heartbeat:   p.svc.now().UnixMilli(),
	})
}

// Dropped handles an ungraceful loss of the connection by running its
// deferred write
func (p *PresenceSession) Dropped(ctx context.Context) error {
	p.mu.Lock()
	connID := p.connID
	p.connID = ""
	p.mu.Unlock()
	p.svc.track(p, false)

	if connID == "" {
		return nil
	}
	return p.svc.registry.Fire(ctx, connID)
}

// Close ends the session and publishes offline right away. Errors are
// logged only; the deferred write is consumed either way.
func (p *PresenceSession) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	connID := p.connID
	p.connID = ""
	p.mu.Unlock()
	p.svc.track(p, false)

	if connID == "" {
		return
	}
	if err := p.svc.store.Set(ctx, p.userID, p.svc.record(models.PresenceOffline)); err != nil {
		logger.Log.WithError(err).WithField("user_id", p.userID).Warn("Failed to publish offline presence, running deferred write")
		_ = p.svc.registry.Fire(ctx, connID)
		return
	}
	p.svc.registry.Cancel(connID)
}

// StatusFeed streams the presence of one user
type StatusFeed struct {
	watcher *presence.Watcher
	out     chan models.UserStatus
}

func (f *StatusFeed) Updates() <-chan models.UserStatus {
	return f.out
}

func (f *StatusFeed) Close() {
	f.watcher.Close()
}

// WatchStatus subscribes to the presence of targetID. Any number of
// watchers may follow the same user.
func (s *PresenceService) WatchStatus(ctx context.Context, targetID string) (*StatusFeed, error) {
	w, err := s.store.Watch(ctx, targetID)
	if err != nil {
		return nil, err
	}

	f := &StatusFeed{watcher: w, out: make(chan models.UserStatus, 1)}
	go func() {
		defer close(f.out)
		for {
			select {
			case <-w.Done():
				return
			case rec := <-w.Updates():
				select {
				case f.out <- rec.Status(targetID):
				case <-w.Done():
					return
				}
			}
		}
	}()
	return f, nil
}

// GetStatus returns the current presence of userID
func (s *PresenceService) GetStatus(ctx context.Context, userID string) (models.UserStatus, error) {
	rec, _, err := s.store.Get(ctx, userID)
	if err != nil {
		return models.UserStatus{}, err
	}
	return rec.Status(userID), nil
}

// SweepStale refreshes the heartbeat of every session served here, then
// publishes offline for each online record that has no live connection on
// this server and whose heartbeat is older than staleAfter. It returns how
// many records were taken offline.
func (s *PresenceService) SweepStale(ctx context.Context) (int, error) {
	for _, p := range s.liveSessions() {
		if err := p.heartbeat(ctx); err != nil {
			logger.Log.WithError(err).WithField("user_id", p.userID).Warn("Failed to refresh presence heartbeat")
		}
	}

	online, err := s.store.ListOnline(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	swept := 0
	for userID, rec := range online {
		if s.registry.Live(userID) {
			continue
		}
		if s.staleAfter > 0 && now.Sub(rec.ActiveAt()) < s.staleAfter {
			continue
		}
		if err := s.store.Set(ctx, userID, s.record(models.PresenceOffline)); err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("Failed to sweep stale presence")
			continue
		}
		swept++
	}
	if swept > 0 {
		logger.Log.WithField("count", swept).Info("Swept stale presence records")
	}
	return swept, nil
}
