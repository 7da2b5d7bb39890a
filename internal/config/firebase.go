package config

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/yourusername/friendchat-service/pkg/logger"
)

// Firebase holds the Admin SDK clients. Clients the configuration does not
// need are left nil.
type Firebase struct {
	App       *firebase.App
	Firestore *firestore.Client
	Auth      *auth.Client
	Database  *db.Client
	Messaging *messaging.Client
}

// InitFirebase initializes the Firebase Admin SDK and the clients cfg selects
func InitFirebase(ctx context.Context, cfg *Config) (*Firebase, error) {
	if _, err := os.Stat(cfg.FirebaseCredentialsPath); err != nil {
		return nil, errors.Wrapf(err, "firebase credentials not found at %s", cfg.FirebaseCredentialsPath)
	}

	var appConfig *firebase.Config
	if cfg.FirebaseDatabaseURL != "" {
		appConfig = &firebase.Config{DatabaseURL: cfg.FirebaseDatabaseURL}
	}
	app, err := firebase.NewApp(ctx, appConfig, option.WithCredentialsFile(cfg.FirebaseCredentialsPath))
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	fb := &Firebase{App: app}
	logger.Log.Info("Firebase app initialized")

	if cfg.StoreBackend == StoreFirestore {
		if fb.Firestore, err = app.Firestore(ctx); err != nil {
			return nil, errors.Wrap(err, "initializing firestore")
		}
		logger.Log.Info("Firestore client initialized")
	}

	if cfg.AuthMode == AuthFirebase {
		if fb.Auth, err = app.Auth(ctx); err != nil {
			fb.Close()
			return nil, errors.Wrap(err, "initializing auth")
		}
		logger.Log.Info("Firebase Auth client initialized")
	}

	if cfg.PresenceBackend == PresenceRTDB {
		if fb.Database, err = app.Database(ctx); err != nil {
			fb.Close()
			return nil, errors.Wrap(err, "initializing realtime database")
		}
		logger.Log.Info("Realtime Database client initialized")
	}

	if cfg.PushEnabled {
		if fb.Messaging, err = app.Messaging(ctx); err != nil {
			fb.Close()
			return nil, errors.Wrap(err, "initializing messaging")
		}
		logger.Log.Info("Firebase Messaging client initialized")
	}

	return fb, nil
}

// Close closes Firebase connections. A Firestore client handed to the
// document store is closed by the store instead.
func (f *Firebase) Close() {
	if f.Firestore != nil {
		f.Firestore.Close()
		logger.Log.Info("Firestore connection closed")
	}
}
