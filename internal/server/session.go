package server

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

const (
	sessionCookieName = "inkwell_session"

	// 会话的绝对有效期,以及两次请求之间允许的最长空闲时间。
	// 活跃的编辑会话在绝对期限内不会因写作耗时过长而掉线。
	sessionLifetime = 24 * time.Hour
	sessionIdleMax  = 2 * time.Hour

	// 同时存活的会话上限,超出时淘汰最久未使用的一个。
	maxSessions = 16
)

type session struct {
	issued   time.Time
	lastSeen time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

// Create 签发新会话并返回令牌与绝对过期时间。
func (s *sessionStore) Create() (string, time.Time) {
	token := newToken()
	now := time.Now()

	s.mu.Lock()
	if len(s.sessions) >= maxSessions {
		s.evictStalest()
	}
	s.sessions[token] = &session{issued: now, lastSeen: now}
	s.mu.Unlock()

	return token, now.Add(sessionLifetime)
}

// Validate 校验令牌;通过时刷新空闲计时,过期则当场清除。
func (s *sessionStore) Validate(token string) bool {
	if token == "" {
		return false
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	if now.Sub(sess.issued) > sessionLifetime || now.Sub(sess.lastSeen) > sessionIdleMax {
		delete(s.sessions, token)
		return false
	}

	sess.lastSeen = now
	return true
}

func (s *sessionStore) Remove(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// evictStalest 删除最久未活动的会话,调用方须持有锁。
func (s *sessionStore) evictStalest() {
	var stalest string
	var seen time.Time
	for token, sess := range s.sessions {
		if stalest == "" || sess.lastSeen.Before(seen) {
			stalest = token
			seen = sess.lastSeen
		}
	}
	if stalest != "" {
		delete(s.sessions, stalest)
	}
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "fallback-token"
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
