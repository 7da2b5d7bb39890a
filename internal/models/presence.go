package models

import "time"

type PresenceState string

const (
	PresenceOnline  PresenceState = "online"
	PresenceOffline PresenceState = "offline"
)

// PresenceRecord is stored at status/{userId}. LastChanged and Heartbeat
// are milliseconds since the epoch. Heartbeat is refreshed while an online
// record is held by a live connection.
type PresenceRecord struct {
	State       PresenceState `json:"state"`
	LastChanged int64         `json:"last_changed"`
	Heartbeat   int64         `json:"heartbeat,omitempty"`
}

// ActiveAt is the last time the record was written or kept alive
func (r PresenceRecord) ActiveAt() time.Time {
	ms := r.LastChanged
	if r.Heartbeat > ms {
		ms = r.Heartbeat
	}
	return time.UnixMilli(ms)
}

// UserStatus is the view of a presence record handed to watchers
type UserStatus struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// Status converts the record for userID
func (r PresenceRecord) Status(userID string) UserStatus {
	s := UserStatus{UserID: userID, IsOnline: r.State == PresenceOnline}
	if r.LastChanged > 0 {
		t := time.UnixMilli(r.LastChanged).UTC()
		s.LastSeen = &t
	}
	return s
}
