// Package session owns the persisted token pair and the identity derived from
// it. Exactly one session is active at a time; the absence of a valid session
// means the portal is unauthenticated.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/farganamar/evv-portal/internal/model"
)

var ErrNoSession = errors.New("session: no valid session")

type identityClaims struct {
	UserID     string   `json:"user_id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	IsVerified bool     `json:"is_verified"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

// Store persists the token pair to a single well-known file and keeps the
// in-memory session state. It is not safe for concurrent use; the portal runs
// one logical thread of control.
type Store struct {
	path   string
	tokens *model.AuthTokens
	user   *model.User
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Establish records a freshly issued token pair, decodes the identity from
// the access token and persists the pair. A prior session is only replaced
// once the new pair decodes; on error existing state is left untouched.
func (s *Store) Establish(tokens model.AuthTokens) error {
	user, err := DecodeIdentity(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("session: decode identity: %w", err)
	}
	if err := s.persist(tokens); err != nil {
		return err
	}
	s.tokens = &tokens
	s.user = user
	return nil
}

// Restore reads the persisted pair. A pair whose expiry is not strictly in
// the future is discarded eagerly, storage included, and ErrNoSession is
// returned. The check is a pure wall-clock comparison at call time.
func (s *Store) Restore() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoSession
		}
		return fmt.Errorf("session: read storage: %w", err)
	}
	var tokens model.AuthTokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		_ = os.Remove(s.path)
		return ErrNoSession
	}
	if !tokens.ExpiresAt.After(time.Now()) {
		_ = os.Remove(s.path)
		return ErrNoSession
	}
	user, err := DecodeIdentity(tokens.AccessToken)
	if err != nil {
		_ = os.Remove(s.path)
		return ErrNoSession
	}
	s.tokens = &tokens
	s.user = user
	return nil
}

// Clear deletes the persisted pair and drops in-memory state. Callers
// typically send the user back to login afterward.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
	s.tokens = nil
	s.user = nil
}

func (s *Store) Authenticated() bool {
	return s.tokens != nil
}

// AccessToken returns the raw access token, or "" when unauthenticated.
func (s *Store) AccessToken() string {
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}

func (s *Store) Tokens() *model.AuthTokens {
	return s.tokens
}

func (s *Store) User() *model.User {
	return s.user
}

func (s *Store) persist(tokens model.AuthTokens) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: create storage dir: %w", err)
		}
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("session: encode tokens: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("session: write storage: %w", err)
	}
	return nil
}

// DecodeIdentity extracts the user claims from an access token without
// verifying the signature. The portal holds no verification key; the server
// re-validates the token on every call, so the decoded identity is used for
// display only.
func DecodeIdentity(accessToken string) (*model.User, error) {
	claims := &identityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return &model.User{
		UserID:     claims.UserID,
		Username:   claims.Username,
		Email:      claims.Email,
		IsVerified: claims.IsVerified,
		Roles:      claims.Roles,
	}, nil
}
