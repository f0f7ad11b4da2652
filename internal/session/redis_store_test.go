package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"movesethub/api/internal/store"
)

func setupTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { redisStore.Close() })
	return redisStore
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	s := setupTestRedis(t)
	ctx := context.Background()

	modder := int64(7)
	user := store.User{ID: "user-123", DisplayName: "Avery", Role: "modder", ModderID: &modder}
	if err := s.SaveRefreshSession(ctx, "test-token-hash", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := s.LookupRefreshSession(ctx, "test-token-hash")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.ID != "user-123" || got.Role != "modder" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.ModderID == nil || *got.ModderID != 7 {
		t.Fatalf("modder link not round-tripped: %+v", got.ModderID)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer redisStore.Close()

	ctx := context.Background()
	user := store.User{ID: "user-456", Role: "guest"}
	if err := redisStore.SaveRefreshSession(ctx, "expired-token", user, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Second)

	if _, err := redisStore.LookupRefreshSession(ctx, "expired-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	s := setupTestRedis(t)
	if _, err := s.LookupRefreshSession(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	s := setupTestRedis(t)
	ctx := context.Background()

	user := store.User{ID: "user-789", Role: "guest"}
	if err := s.SaveRefreshSession(ctx, "token-to-revoke", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := s.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "token-to-revoke"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}

	// Revoking again is a no-op.
	if err := s.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	s := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := s.SaveRefreshSession(ctx, "token-1", store.User{ID: "user-1", Role: "guest"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 1 failed: %v", err)
	}
	if err := s.SaveRefreshSession(ctx, "token-2", store.User{ID: "user-2", Role: "admin"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 2 failed: %v", err)
	}

	if err := s.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("revoke token-1 failed: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "token-1"); err == nil {
		t.Fatal("expected error for revoked token-1")
	}
	user2, err := s.LookupRefreshSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("lookup token-2 failed: %v", err)
	}
	if user2.ID != "user-2" || user2.Role != "admin" {
		t.Fatalf("unexpected user for token-2: %+v", user2)
	}
}
