package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "eureka:session:"

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager stores cookie sessions in Redis. Redis keys are an HMAC of
// the cookie value, so the keyspace never holds usable session ids.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	keySecret  []byte
}

// Session holds per-request session data.
type Session struct {
	ID   string
	data sessionData
	// retiredID is the id replaced by Renew; its Redis entry goes on commit.
	retiredID string
	persisted bool
	dirty     bool
	destroyed bool
}

type sessionData struct {
	Values  map[string]string `json:"values,omitempty"`
	UserID  string            `json:"user_id,omitempty"`
	Flashes []FlashMessage    `json:"flashes,omitempty"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		keySecret:  []byte(secret),
	}
}

// Load returns the session named by the request cookie. A missing cookie or
// an id Redis does not know starts a new session; client chosen ids are never
// adopted.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return sm.start()
	}
	raw, err := sm.client.Get(ctx, sm.key(cookie.Value)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return sm.start()
	case err != nil:
		return nil, fmt.Errorf("session: load: %w", err)
	}
	sess := &Session{ID: cookie.Value, persisted: true}
	if err := json.Unmarshal(raw, &sess.data); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return sess, nil
}

// Renew moves sess to a fresh id and drops its CSRF token. Values, the user
// and pending flashes are kept. Call it whenever the session's privilege
// changes, such as at login.
func (sm *SessionManager) Renew(sess *Session) error {
	if sess == nil {
		return errors.New("session: renew nil session")
	}
	id, err := newSessionID()
	if err != nil {
		return err
	}
	if sess.persisted {
		sess.retiredID = sess.ID
	}
	sess.ID = id
	sess.persisted = false
	sess.dirty = true
	delete(sess.data.Values, CSRFSessionKey)
	return nil
}

// Commit persists the session and writes the cookie.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		keys := []string{sm.key(sess.ID)}
		if sess.retiredID != "" {
			keys = append(keys, sm.key(sess.retiredID))
		}
		if err := sm.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}

	if sess.retiredID != "" {
		if err := sm.client.Del(ctx, sm.key(sess.retiredID)).Err(); err != nil {
			return fmt.Errorf("session: retire: %w", err)
		}
		sess.retiredID = ""
	}

	if sess.dirty || !sess.persisted {
		raw, err := json.Marshal(sess.data)
		if err != nil {
			return fmt.Errorf("session: encode: %w", err)
		}
		if err := sm.client.Set(ctx, sm.key(sess.ID), raw, sm.ttl).Err(); err != nil {
			return fmt.Errorf("session: save: %w", err)
		}
		sess.dirty = false
		sess.persisted = true
	}

	http.SetCookie(w, sm.cookie(sess.ID, int(sm.ttl/time.Second)))
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	sess.Destroy()
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) start() (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, dirty: true}, nil
}

func (sm *SessionManager) key(id string) string {
	mac := hmac.New(sha256.New, sm.keySecret)
	_, _ = mac.Write([]byte(id))
	return sessionKeyPrefix + hex.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return id.String(), nil
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.data.Values == nil {
		s.data.Values = make(map[string]string)
	}
	s.data.Values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	return s.data.Values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.data.Values[key]; !ok {
		return
	}
	delete(s.data.Values, key)
	s.dirty = true
}

// SetUser associates the session with a user ID.
func (s *Session) SetUser(id string) {
	s.data.UserID = id
	s.dirty = true
}

// User returns the current user ID.
func (s *Session) User() string {
	return s.data.UserID
}

// Destroy marks the session for deletion on commit.
func (s *Session) Destroy() {
	if s == nil {
		return
	}
	s.destroyed = true
}

// Destroyed reports whether the session will be deleted on commit.
func (s *Session) Destroyed() bool {
	return s != nil && s.destroyed
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.data.Flashes = append(s.data.Flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.data.Flashes) == 0 {
		return nil
	}
	msg := s.data.Flashes[0]
	s.data.Flashes = s.data.Flashes[1:]
	s.dirty = true
	return &msg
}
