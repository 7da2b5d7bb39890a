package services

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/store"
	"github.com/yourusername/friendchat-service/pkg/logger"
	"github.com/yourusername/friendchat-service/pkg/utils"
)

// FriendService runs the friend request state machine and owns friendships.
// Every action commits as one batch.
type FriendService struct {
	store         store.DocumentStore
	friendRepo    *repository.FriendRepository
	notifications *NotificationService
	now           func() time.Time
}

func NewFriendService(s store.DocumentStore, friendRepo *repository.FriendRepository, notifications *NotificationService) *FriendService {
	return &FriendService{
		store:         s,
		friendRepo:    friendRepo,
		notifications: notifications,
		now:           time.Now,
	}
}

// SendFriendRequest creates a pending request from -> to and notifies the recipient
func (s *FriendService) SendFriendRequest(ctx context.Context, from, to string, fromSnapshot, toSnapshot models.UserSnapshot) (string, error) {
	if from == "" || to == "" {
		return "", errors.Wrap(ErrInvalidArgument, "both users are required")
	}
	if from == to {
		return "", errors.Wrap(ErrInvalidArgument, "cannot send a friend request to yourself")
	}

	pairID := utils.PairID(from, to)
	friendship, err := s.friendRepo.GetFriendship(ctx, pairID)
	if err != nil {
		return "", err
	}
	if friendship != nil {
		return "", ErrAlreadyFriends
	}

	for _, dir := range [][2]string{{from, to}, {to, from}} {
		pending, err := s.friendRepo.FindPendingRequest(ctx, dir[0], dir[1])
		if err != nil {
			return "", err
		}
		if pending != nil {
			return "", ErrDuplicateRequest
		}
	}

	req := &models.FriendRequest{
		RequestID:    s.friendRepo.NewRequestID(),
		From:         from,
		To:           to,
		Status:       models.RequestPending,
		FromUserData: fromSnapshot,
		ToUserData:   toSnapshot,
		CreatedAt:    s.now(),
	}

	b := s.store.Batch()
	s.friendRepo.StageCreateRequest(b, pairID, req)
	notification := s.notifications.StageFriendRequest(b, req)
	if err := b.Commit(ctx); err != nil {
		if store.IsAlreadyExists(err) {
			return "", ErrDuplicateRequest
		}
		return "", err
	}

	logger.Log.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"from":       from,
		"to":         to,
	}).Info("Friend request sent")

	s.notifications.Deliver(ctx, notification)
	return req.RequestID, nil
}

// loadPending fetches a request that userID may resolve
func (s *FriendService) loadPending(ctx context.Context, requestID, userID string) (*models.FriendRequest, error) {
	req, err := s.friendRepo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.Wrapf(ErrNotFound, "friend request %s", requestID)
	}
	if req.To != userID {
		return nil, errors.Wrap(ErrUnauthorized, "only the recipient can answer a friend request")
	}
	if req.Status != models.RequestPending {
		return nil, ErrInvalidTransition
	}
	return req, nil
}

// AcceptFriendRequest creates the friendship and resolves the request
func (s *FriendService) AcceptFriendRequest(ctx context.Context, requestID, acceptingUserID string) error {
	req, err := s.loadPending(ctx, requestID, acceptingUserID)
	if err != nil {
		return err
	}

	now := s.now()
	pairID := utils.PairID(req.From, req.To)
	users := []string{req.From, req.To}
	sort.Strings(users)
	friendship := &models.Friendship{
		FriendshipID: pairID,
		Users:        users,
		UserDetails: map[string]models.UserSnapshot{
			req.From: req.FromUserData,
			req.To:   req.ToUserData,
		},
		Nicknames: map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	b := s.store.Batch()
	s.friendRepo.StageCreateFriendship(b, friendship)
	s.friendRepo.StageResolveRequest(b, pairID, req.RequestID, models.RequestAccepted, now)
	if err := s.notifications.StageRequestHandled(ctx, b, req.RequestID); err != nil {
		return err
	}
	notification := s.notifications.StageFriendAccepted(b, req)

	if err := b.Commit(ctx); err != nil {
		switch {
		case store.IsAlreadyExists(err):
			return ErrAlreadyFriends
		case store.IsNotFound(err):
			return errors.Wrapf(ErrNotFound, "friend request %s", requestID)
		}
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"request_id":    req.RequestID,
		"friendship_id": pairID,
	}).Info("Friend request accepted")

	s.notifications.Deliver(ctx, notification)
	return nil
}

// RejectFriendRequest resolves the request as rejected. The pair may send
// again afterwards.
func (s *FriendService) RejectFriendRequest(ctx context.Context, requestID, rejectingUserID string) error {
	req, err := s.loadPending(ctx, requestID, rejectingUserID)
	if err != nil {
		return err
	}

	b := s.store.Batch()
	s.friendRepo.StageResolveRequest(b, utils.PairID(req.From, req.To), req.RequestID, models.RequestRejected, s.now())
	if err := s.notifications.StageRequestHandled(ctx, b, req.RequestID); err != nil {
		return err
	}

	if err := b.Commit(ctx); err != nil {
		if store.IsNotFound(err) {
			return errors.Wrapf(ErrNotFound, "friend request %s", requestID)
		}
		return err
	}

	logger.Log.WithField("request_id", req.RequestID).Info("Friend request rejected")
	return nil
}

// CheckIfFriends checks whether a friendship exists for the pair
func (s *FriendService) CheckIfFriends(ctx context.Context, a, b string) (bool, error) {
	friendship, err := s.friendRepo.GetFriendship(ctx, utils.PairID(a, b))
	if err != nil {
		return false, err
	}
	return friendship != nil, nil
}

// GetFriendshipStatus describes the relation between a and b as seen by a
func (s *FriendService) GetFriendshipStatus(ctx context.Context, a, b string) (models.FriendshipStatus, error) {
	friends, err := s.CheckIfFriends(ctx, a, b)
	if err != nil {
		return "", err
	}
	if friends {
		return models.StatusFriends, nil
	}

	sent, err := s.friendRepo.FindPendingRequest(ctx, a, b)
	if err != nil {
		return "", err
	}
	if sent != nil {
		return models.StatusRequestSent, nil
	}

	received, err := s.friendRepo.FindPendingRequest(ctx, b, a)
	if err != nil {
		return "", err
	}
	if received != nil {
		return models.StatusRequestReceived, nil
	}
	return models.StatusNotFriends, nil
}

// RemoveFriend deletes the friendship together with every request and
// notification the pair exchanged
func (s *FriendService) RemoveFriend(ctx context.Context, a, c string) error {
	pairID := utils.PairID(a, c)
	friendship, err := s.friendRepo.GetFriendship(ctx, pairID)
	if err != nil {
		return err
	}
	if friendship == nil {
		return errors.Wrapf(ErrNotFound, "friendship %s", pairID)
	}

	requests, err := s.friendRepo.GetRequestsBetween(ctx, a, c)
	if err != nil {
		return err
	}

	b := s.store.Batch()
	s.friendRepo.StageRemovePair(b, pairID, requests)
	if err := s.notifications.StageDeleteBetween(ctx, b, a, c); err != nil {
		return err
	}
	if err := b.Commit(ctx); err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"friendship_id": pairID,
		"writes":        b.Len(),
	}).Info("Friend removed")
	return nil
}

// SetFriendNickname stores viewer's private name for friend. An empty name
// clears it.
func (s *FriendService) SetFriendNickname(ctx context.Context, viewer, friend, nickname string) error {
	nickname, err := utils.NormalizeNickname(nickname)
	if err != nil {
		return errors.Wrap(ErrInvalidArgument, err.Error())
	}

	pairID := utils.PairID(viewer, friend)
	friendship, err := s.friendRepo.GetFriendship(ctx, pairID)
	if err != nil {
		return err
	}
	if friendship == nil {
		return ErrNotFriends
	}

	if err := s.friendRepo.SetNickname(ctx, pairID, viewer, nickname, s.now()); err != nil {
		if store.IsNotFound(err) {
			return ErrNotFriends
		}
		return err
	}
	return nil
}

// GetFriendNickname returns viewer's private name for friend, empty if unset
func (s *FriendService) GetFriendNickname(ctx context.Context, viewer, friend string) (string, error) {
	friendship, err := s.friendRepo.GetFriendship(ctx, utils.PairID(viewer, friend))
	if err != nil {
		return "", err
	}
	if friendship == nil {
		return "", ErrNotFriends
	}
	return friendship.Nicknames[viewer], nil
}

// GetFriends returns the friends of userID with the viewer's nicknames
func (s *FriendService) GetFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	friendships, err := s.friendRepo.GetFriendships(ctx, userID)
	if err != nil {
		return nil, err
	}

	friends := make([]models.Friend, 0, len(friendships))
	for _, f := range friendships {
		other := f.Other(userID)
		details := f.UserDetails[other]
		friends = append(friends, models.Friend{
			FriendshipID: f.FriendshipID,
			UserID:       other,
			Name:         details.Name,
			Image:        details.Image,
			Nickname:     f.Nicknames[userID],
			Since:        f.CreatedAt,
		})
	}
	sort.SliceStable(friends, func(i, j int) bool {
		return friends[i].Name < friends[j].Name
	})
	return friends, nil
}

// GetPendingRequests returns the pending requests userID received, newest first
func (s *FriendService) GetPendingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	requests, err := s.friendRepo.GetPendingReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortRequests(requests)
	return requests, nil
}

// GetSentRequests returns the pending requests userID sent, newest first
func (s *FriendService) GetSentRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	requests, err := s.friendRepo.GetPendingSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortRequests(requests)
	return requests, nil
}

func sortRequests(requests []*models.FriendRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}
