package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/farganamar/evv-portal/internal/model"
)

func testToken(t *testing.T, userID, username string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":     userID,
		"username":    username,
		"email":       username + "@demo.local",
		"is_verified": true,
		"roles":       []string{"caregiver"},
		"sub":         userID,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func writeTokens(t *testing.T, path string, tokens model.AuthTokens) {
	t.Helper()
	raw, err := json.Marshal(tokens)
	if err != nil {
		t.Fatalf("marshal tokens: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write tokens: %v", err)
	}
}

func TestRestoreExpiredPairDiscardsStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_tokens.json")
	writeTokens(t, path, model.AuthTokens{
		AccessToken: testToken(t, "u-1", "alice"),
		ExpiresAt:   time.Now().Add(-time.Minute),
		IssuedAt:    time.Now().Add(-time.Hour),
	})

	store := NewStore(path)
	if err := store.Restore(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if store.Authenticated() {
		t.Fatalf("expected unauthenticated store")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected storage to be cleared, stat err: %v", err)
	}
}

func TestRestoreValidPairDecodesIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_tokens.json")
	writeTokens(t, path, model.AuthTokens{
		AccessToken:  testToken(t, "u-7", "bob"),
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		IssuedAt:     time.Now(),
	})

	store := NewStore(path)
	if err := store.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !store.Authenticated() {
		t.Fatalf("expected authenticated store")
	}
	user := store.User()
	if user == nil || user.UserID != "u-7" || user.Username != "bob" {
		t.Fatalf("unexpected identity: %+v", user)
	}
	if user.Email != "bob@demo.local" || !user.IsVerified {
		t.Fatalf("unexpected identity details: %+v", user)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "caregiver" {
		t.Fatalf("unexpected roles: %v", user.Roles)
	}
}

func TestRestoreGarbageStorageYieldsNoSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_tokens.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewStore(path)
	if err := store.Restore(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestEstablishPersistsAndClearRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth_tokens.json")
	store := NewStore(path)

	tokens := model.AuthTokens{
		AccessToken: testToken(t, "u-2", "carol"),
		ExpiresAt:   time.Now().Add(time.Hour),
		IssuedAt:    time.Now(),
	}
	if err := store.Establish(tokens); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if store.AccessToken() != tokens.AccessToken {
		t.Fatalf("access token not held in memory")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected persisted pair: %v", err)
	}

	restored := NewStore(path)
	if err := restored.Restore(); err != nil {
		t.Fatalf("restore after establish: %v", err)
	}
	if restored.User().Username != "carol" {
		t.Fatalf("expected carol, got %s", restored.User().Username)
	}

	store.Clear()
	if store.Authenticated() || store.User() != nil {
		t.Fatalf("expected cleared state")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected storage removed, stat err: %v", err)
	}
}

func TestEstablishBadTokenLeavesPriorSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_tokens.json")
	store := NewStore(path)

	good := model.AuthTokens{
		AccessToken: testToken(t, "u-3", "dave"),
		ExpiresAt:   time.Now().Add(time.Hour),
		IssuedAt:    time.Now(),
	}
	if err := store.Establish(good); err != nil {
		t.Fatalf("establish: %v", err)
	}

	bad := model.AuthTokens{AccessToken: "garbage", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Establish(bad); err == nil {
		t.Fatalf("expected establish to fail on undecodable token")
	}
	if store.User() == nil || store.User().Username != "dave" {
		t.Fatalf("prior session should be untouched, got %+v", store.User())
	}
	if store.AccessToken() != good.AccessToken {
		t.Fatalf("prior tokens should be untouched")
	}
}
