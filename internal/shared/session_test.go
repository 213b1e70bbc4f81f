package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "eureka_session", "secret", time.Hour, false), mr
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "eureka_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("42")
	sess.Set("theme", "dark")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Welcome"})

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookie := sessionCookie(t, rec)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.True(t, mr.Exists(sm.key(sess.ID)))
	assert.Equal(t, time.Hour, mr.TTL(sm.key(sess.ID)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "dark", loaded.Get("theme"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Welcome", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionUnknownCookieStartsFreshSession(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "eureka_session", Value: "attacker-chosen"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
	assert.Empty(t, sess.User())
}

func TestSessionDestroyClearsStoreAndCookie(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), nil, sess))
	require.True(t, mr.Exists(sm.key(sess.ID)))

	sm.Destroy(sess)
	assert.True(t, sess.Destroyed())
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, nil, sess))

	assert.False(t, mr.Exists(sm.key(sess.ID)))
	cookie := sessionCookie(t, rec)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Empty(t, cookie.Value)
}

func TestSessionDeleteValue(t *testing.T) {
	sess := &Session{}
	assert.Empty(t, sess.Get("missing"))
	sess.Delete("missing")
	sess.Set("k", "v")
	sess.Delete("k")
	assert.Empty(t, sess.Get("k"))
}

func TestNilSessionHelpers(t *testing.T) {
	var sess *Session
	assert.NotPanics(t, func() { sess.Destroy() })
	assert.False(t, sess.Destroyed())

	sm, _ := newTestSessionManager(t)
	assert.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), nil, nil))
	assert.Equal(t, "eureka_session", sm.CookieName())
	assert.Equal(t, time.Hour, sm.TTL())
}

func TestSessionRenewRotatesID(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set(CSRFSessionKey, "anonymous-token")
	sess.Set("theme", "dark")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), nil, sess))
	oldID := sess.ID
	require.True(t, mr.Exists(sm.key(oldID)))

	require.NoError(t, sm.Renew(sess))
	sess.SetUser("7")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, nil, sess))

	assert.NotEqual(t, oldID, sess.ID)
	assert.Equal(t, sess.ID, sessionCookie(t, rec).Value)
	assert.False(t, mr.Exists(sm.key(oldID)))
	assert.True(t, mr.Exists(sm.key(sess.ID)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "eureka_session", Value: oldID})
	stale, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, stale.ID)
	assert.Empty(t, stale.User())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "eureka_session", Value: sess.ID})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "7", loaded.User())
	assert.Equal(t, "dark", loaded.Get("theme"))
	assert.Empty(t, loaded.Get(CSRFSessionKey))
}

func TestSessionRenewBeforeFirstCommit(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	firstID := sess.ID
	require.NoError(t, sm.Renew(sess))
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), nil, sess))

	assert.NotEqual(t, firstID, sess.ID)
	assert.False(t, mr.Exists(sm.key(firstID)))
	assert.True(t, mr.Exists(sm.key(sess.ID)))
	assert.Error(t, sm.Renew(nil))
}

func TestSessionKeyHidesCookieValue(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	key := sm.key("abc")
	assert.NotEqual(t, sessionKeyPrefix+"abc", key)
	assert.Len(t, key, len(sessionKeyPrefix)+64)
	assert.Equal(t, key, sm.key("abc"))
	assert.NotEqual(t, key, sm.key("abd"))
}
