package repository

import (
	"context"
	"time"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/store"
)

type UserRepository struct {
	store store.DocumentStore
}

func NewUserRepository(s store.DocumentStore) *UserRepository {
	return &UserRepository{store: s}
}

// CreateUser creates the user unless it already exists. It reports false
// when the user was already there.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (bool, error) {
	err := r.store.Create(ctx, UsersCollection, user.UserID, store.Encode(user))
	if store.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateProfile refreshes the identity fields and lastSeenAt of an existing user
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	return r.store.Update(ctx, UsersCollection, user.UserID,
		store.Update{Path: "username", Value: user.Username},
		store.Update{Path: "fullName", Value: user.FullName},
		store.Update{Path: "imageUrl", Value: user.ImageURL},
		store.Update{Path: "emailAddress", Value: user.EmailAddress},
		store.Update{Path: "lastSeenAt", Value: user.LastSeenAt},
	)
}

// GetUserByID retrieves a user by their ID, nil if unknown
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	doc, err := getDoc(ctx, r.store, UsersCollection, userID)
	if err != nil || doc == nil {
		return nil, err
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	user.UserID = doc.ID
	return &user, nil
}

// ListUsers retrieves up to limit users, newest first
func (r *UserRepository) ListUsers(ctx context.Context, limit int) ([]*models.User, error) {
	docs, err := r.store.Query(ctx, store.NewQuery(UsersCollection).
		Order("createdAt", store.Desc).
		Take(limit))
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(docs))
	for _, doc := range docs {
		var user models.User
		if err := doc.DataTo(&user); err != nil {
			continue
		}
		user.UserID = doc.ID
		users = append(users, &user)
	}
	return users, nil
}

// UpdateFCMToken updates the user's FCM token
func (r *UserRepository) UpdateFCMToken(ctx context.Context, userID, fcmToken string, now time.Time) error {
	return r.store.Update(ctx, UsersCollection, userID,
		store.Update{Path: "fcmToken", Value: fcmToken},
		store.Update{Path: "lastSeenAt", Value: now},
	)
}
