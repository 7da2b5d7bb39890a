package repository

import (
	"context"
	"time"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/store"
)

type FriendRepository struct {
	store store.DocumentStore
}

func NewFriendRepository(s store.DocumentStore) *FriendRepository {
	return &FriendRepository{store: s}
}

func (r *FriendRepository) NewRequestID() string {
	return r.store.NewID(FriendRequestsCollection)
}

// GetRequest retrieves a friend request by ID, nil if it does not exist
func (r *FriendRepository) GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	doc, err := getDoc(ctx, r.store, FriendRequestsCollection, requestID)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeRequest(doc)
}

// FindPendingRequest returns the pending request from -> to, nil if there is none
func (r *FriendRepository) FindPendingRequest(ctx context.Context, from, to string) (*models.FriendRequest, error) {
	q := store.NewQuery(FriendRequestsCollection).
		Where("from", store.OpEqual, from).
		Where("to", store.OpEqual, to).
		Where("status", store.OpEqual, models.RequestPending).
		Take(1)
	requests, err := r.queryRequests(ctx, q)
	if err != nil || len(requests) == 0 {
		return nil, err
	}
	return requests[0], nil
}

// GetPendingReceived retrieves pending requests addressed to userID
func (r *FriendRepository) GetPendingReceived(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	return r.queryRequests(ctx, store.NewQuery(FriendRequestsCollection).
		Where("to", store.OpEqual, userID).
		Where("status", store.OpEqual, models.RequestPending))
}

// GetPendingSent retrieves pending requests sent by userID
func (r *FriendRepository) GetPendingSent(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	return r.queryRequests(ctx, store.NewQuery(FriendRequestsCollection).
		Where("from", store.OpEqual, userID).
		Where("status", store.OpEqual, models.RequestPending))
}

// GetRequestsBetween retrieves every request between the pair in both
// directions, whatever its status
func (r *FriendRepository) GetRequestsBetween(ctx context.Context, a, b string) ([]*models.FriendRequest, error) {
	var all []*models.FriendRequest
	for _, dir := range [][2]string{{a, b}, {b, a}} {
		requests, err := r.queryRequests(ctx, store.NewQuery(FriendRequestsCollection).
			Where("from", store.OpEqual, dir[0]).
			Where("to", store.OpEqual, dir[1]))
		if err != nil {
			return nil, err
		}
		all = append(all, requests...)
	}
	return all, nil
}

func (r *FriendRepository) queryRequests(ctx context.Context, q store.Query) ([]*models.FriendRequest, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	requests := make([]*models.FriendRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := decodeRequest(doc)
		if err != nil {
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// GetFriendship retrieves the friendship of a pair, nil if they are not friends
func (r *FriendRepository) GetFriendship(ctx context.Context, pairID string) (*models.Friendship, error) {
	doc, err := getDoc(ctx, r.store, FriendsCollection, pairID)
	if err != nil || doc == nil {
		return nil, err
	}
	var friendship models.Friendship
	if err := doc.DataTo(&friendship); err != nil {
		return nil, err
	}
	friendship.FriendshipID = doc.ID
	return &friendship, nil
}

// GetFriendships retrieves every friendship userID belongs to
func (r *FriendRepository) GetFriendships(ctx context.Context, userID string) ([]*models.Friendship, error) {
	docs, err := r.store.Query(ctx, store.NewQuery(FriendsCollection).
		Where("users", store.OpArrayContains, userID))
	if err != nil {
		return nil, err
	}

	friendships := make([]*models.Friendship, 0, len(docs))
	for _, doc := range docs {
		var friendship models.Friendship
		if err := doc.DataTo(&friendship); err != nil {
			continue
		}
		friendship.FriendshipID = doc.ID
		friendships = append(friendships, &friendship)
	}
	return friendships, nil
}

// SetNickname stores viewerID's nickname for the other member; empty clears it
func (r *FriendRepository) SetNickname(ctx context.Context, pairID, viewerID, nickname string, now time.Time) error {
	return r.store.Update(ctx, FriendsCollection, pairID,
		store.Update{Path: "nicknames." + viewerID, Value: nickname},
		store.Update{Path: "updatedAt", Value: now},
	)
}

// StageCreateRequest adds the request and its pair lock to b. The lock is
// create-if-absent, so a concurrent pending request fails the batch.
func (r *FriendRepository) StageCreateRequest(b store.Batch, pairID string, req *models.FriendRequest) {
	b.Create(FriendRequestsCollection, req.RequestID, store.Encode(req))
	b.Create(PendingRequestsCollection, pairID, store.Encode(&models.PendingRequestLock{
		RequestID: req.RequestID,
		From:      req.From,
		To:        req.To,
		CreatedAt: req.CreatedAt,
	}))
}

// StageResolveRequest moves a pending request to its final status and
// releases the pair lock
func (r *FriendRepository) StageResolveRequest(b store.Batch, pairID, requestID string, status models.RequestStatus, at time.Time) {
	field := "rejectedAt"
	if status == models.RequestAccepted {
		field = "acceptedAt"
	}
	b.Update(FriendRequestsCollection, requestID,
		store.Update{Path: "status", Value: status},
		store.Update{Path: field, Value: at},
	)
	b.Delete(PendingRequestsCollection, pairID)
}

func (r *FriendRepository) StageCreateFriendship(b store.Batch, friendship *models.Friendship) {
	b.Create(FriendsCollection, friendship.FriendshipID, store.Encode(friendship))
}

// StageRemovePair deletes the friendship, the lock and the given requests
func (r *FriendRepository) StageRemovePair(b store.Batch, pairID string, requests []*models.FriendRequest) {
	b.Delete(FriendsCollection, pairID)
	b.Delete(PendingRequestsCollection, pairID)
	for _, req := range requests {
		b.Delete(FriendRequestsCollection, req.RequestID)
	}
}

func decodeRequest(doc *store.Document) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := doc.DataTo(&req); err != nil {
		return nil, err
	}
	req.RequestID = doc.ID
	return &req, nil
}
