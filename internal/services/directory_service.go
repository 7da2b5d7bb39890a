package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/store"
)

const (
	directoryLimit    = 100
	anonymousName     = "Anonymous"
	anonymousFullName = "Anonymous User"
)

// DirectoryService keeps the profiles of authenticated users
type DirectoryService struct {
	userRepo *repository.UserRepository
	now      func() time.Time
}

func NewDirectoryService(userRepo *repository.UserRepository) *DirectoryService {
	return &DirectoryService{userRepo: userRepo, now: time.Now}
}

// RecordIdentity upserts the profile of an authenticated identity. createdAt
// and the push token of an existing user are kept.
func (s *DirectoryService) RecordIdentity(ctx context.Context, identity models.Identity) (*models.User, error) {
	if identity.ID == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "identity has no id")
	}

	now := s.now()
	user := &models.User{
		UserID:       identity.ID,
		Username:     identity.Username,
		FullName:     identity.DisplayName,
		ImageURL:     identity.AvatarURL,
		EmailAddress: identity.Email,
		CreatedAt:    now,
		LastSeenAt:   now,
	}

	created, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if !created {
		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// ListUsers returns up to 100 users, newest first, without the caller
func (s *DirectoryService) ListUsers(ctx context.Context, callerID string) ([]models.DirectoryUser, error) {
	users, err := s.userRepo.ListUsers(ctx, directoryLimit+1)
	if err != nil {
		return nil, err
	}

	out := make([]models.DirectoryUser, 0, len(users))
	for _, u := range users {
		if u.UserID == callerID {
			continue
		}
		if len(out) == directoryLimit {
			break
		}
		entry := models.DirectoryUser{
			ID:           u.UserID,
			Username:     u.Username,
			FullName:     u.FullName,
			ImageURL:     u.ImageURL,
			EmailAddress: u.EmailAddress,
			CreatedAt:    u.CreatedAt,
		}
		if entry.Username == "" {
			entry.Username = anonymousName
		}
		if entry.FullName == "" {
			entry.FullName = anonymousFullName
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *DirectoryService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Wrapf(ErrNotFound, "user %s", userID)
	}
	return user, nil
}

// Snapshot returns the {name,image} copy of a user's profile
func (s *DirectoryService) Snapshot(ctx context.Context, userID string) (models.UserSnapshot, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return models.UserSnapshot{}, err
	}
	return user.Snapshot(), nil
}

// Participant returns the chat participant details of a user
func (s *DirectoryService) Participant(ctx context.Context, userID string) (models.ParticipantDetail, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return models.ParticipantDetail{}, err
	}
	snap := user.Snapshot()
	return models.ParticipantDetail{ID: userID, Name: snap.Name, Image: snap.Image}, nil
}

// UpdatePushToken stores the device token used for push delivery
func (s *DirectoryService) UpdatePushToken(ctx context.Context, userID, token string) error {
	if token == "" {
		return errors.Wrap(ErrInvalidArgument, "fcm token cannot be empty")
	}
	err := s.userRepo.UpdateFCMToken(ctx, userID, token, s.now())
	if store.IsNotFound(err) {
		return errors.Wrapf(ErrNotFound, "user %s", userID)
	}
	return err
}
