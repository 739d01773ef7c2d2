package server

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	store := newSessionStore()

	token, expires := store.Create()
	if token == "" {
		t.Fatal("expected a non-empty session token")
	}
	if remaining := time.Until(expires); remaining < 23*time.Hour {
		t.Errorf("expiry too close: %v remaining", remaining)
	}

	if !store.Validate(token) {
		t.Error("freshly created session should validate")
	}
	if store.Validate("") {
		t.Error("empty token should not validate")
	}
	if store.Validate("no-such-token") {
		t.Error("unknown token should not validate")
	}

	store.Remove(token)
	if store.Validate(token) {
		t.Error("removed session should not validate")
	}
}

func TestSessionExpiry(t *testing.T) {
	store := newSessionStore()
	now := time.Now()

	idle, _ := store.Create()
	store.sessions[idle].lastSeen = now.Add(-sessionIdleMax - time.Minute)
	if store.Validate(idle) {
		t.Error("idle session past the idle window should not validate")
	}
	if _, ok := store.sessions[idle]; ok {
		t.Error("expired session should be deleted on validation")
	}

	old, _ := store.Create()
	store.sessions[old].issued = now.Add(-sessionLifetime - time.Minute)
	store.sessions[old].lastSeen = now
	if store.Validate(old) {
		t.Error("session past its absolute lifetime should not validate")
	}
}

func TestSessionValidateRefreshesIdleWindow(t *testing.T) {
	store := newSessionStore()

	token, _ := store.Create()
	stale := time.Now().Add(-sessionIdleMax + time.Minute)
	store.sessions[token].lastSeen = stale

	if !store.Validate(token) {
		t.Fatal("session inside the idle window should validate")
	}
	if !store.sessions[token].lastSeen.After(stale) {
		t.Error("validation should refresh lastSeen")
	}
}

func TestSessionCapEvictsStalest(t *testing.T) {
	store := newSessionStore()

	tokens := make([]string, 0, maxSessions+1)
	for i := 0; i <= maxSessions; i++ {
		token, _ := store.Create()
		tokens = append(tokens, token)
	}

	if got := len(store.sessions); got != maxSessions {
		t.Fatalf("expected %d live sessions after overflow, got %d", maxSessions, got)
	}
	newest := tokens[len(tokens)-1]
	if !store.Validate(newest) {
		t.Error("newest session should survive eviction")
	}

	alive := 0
	for _, token := range tokens {
		if _, ok := store.sessions[token]; ok {
			alive++
		}
	}
	if alive != maxSessions {
		t.Errorf("expected %d of the issued tokens alive, got %d", maxSessions, alive)
	}
}
