package services

import (
	"context"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/yourusername/friendchat-service/internal/models"
)

// VerifiedIdentity is an identity plus the expiry of the token that proved it
type VerifiedIdentity struct {
	models.Identity
	ExpiresAt time.Time
}

// IdentityVerifier turns a bearer token into the identity it vouches for
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*VerifiedIdentity, error)
}

// FirebaseVerifier verifies Firebase Auth ID tokens
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*VerifiedIdentity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, errors.Wrap(ErrUnauthorized, err.Error())
	}

	claim := func(name string) string {
		s, _ := tok.Claims[name].(string)
		return s
	}
	return &VerifiedIdentity{
		Identity: models.Identity{
			ID:          tok.UID,
			Username:    claim("username"),
			DisplayName: claim("name"),
			AvatarURL:   claim("picture"),
			Email:       claim("email"),
		},
		ExpiresAt: time.Unix(tok.Expires, 0),
	}, nil
}

// IdentityClaims is the payload of tokens accepted by JWTVerifier
type IdentityClaims struct {
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret. The subject
// is the user id.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*VerifiedIdentity, error) {
	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token is invalid")
		}
		return nil, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(ErrUnauthorized, "token has no subject")
	}

	expiresAt := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &VerifiedIdentity{
		Identity: models.Identity{
			ID:          claims.Subject,
			Username:    claims.Username,
			DisplayName: claims.Name,
			AvatarURL:   claims.Picture,
			Email:       claims.Email,
		},
		ExpiresAt: expiresAt,
	}, nil
}

// Issue signs a token for identity valid for ttl
func (v *JWTVerifier) Issue(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Username: identity.Username,
		Name:     identity.DisplayName,
		Picture:  identity.AvatarURL,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type cachedIdentity struct {
	identity *VerifiedIdentity
}

// IdentityCache remembers verified tokens until they expire so that each
// token is verified once
type IdentityCache struct {
	verifier IdentityVerifier
	tokens   map[string]cachedIdentity
	mu       sync.RWMutex
	stop     chan struct{}
	once     sync.Once
}

// NewIdentityCache wraps verifier and starts the janitor that evicts
// expired tokens every interval
func NewIdentityCache(verifier IdentityVerifier, interval time.Duration) *IdentityCache {
	c := &IdentityCache{
		verifier: verifier,
		tokens:   make(map[string]cachedIdentity),
		stop:     make(chan struct{}),
	}
	go c.cleanupExpiredTokens(interval)
	return c
}

func (c *IdentityCache) Verify(ctx context.Context, token string) (*VerifiedIdentity, error) {
	c.mu.RLock()
	entry, exists := c.tokens[token]
	c.mu.RUnlock()
	if exists {
		if time.Now().Before(entry.identity.ExpiresAt) {
			return entry.identity, nil
		}
		c.forget(token)
	}

	identity, err := c.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tokens[token] = cachedIdentity{identity: identity}
	c.mu.Unlock()
	return identity, nil
}

func (c *IdentityCache) forget(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, token)
}

func (c *IdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

// Close stops the janitor
func (c *IdentityCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *IdentityCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, entry := range c.tokens {
		if now.After(entry.identity.ExpiresAt) {
			delete(c.tokens, token)
		}
	}
}

func (c *IdentityCache) cleanupExpiredTokens(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.evictExpired(now)
		}
	}
}
