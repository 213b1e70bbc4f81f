package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eureka-corp/eureka/internal/auth"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
	_ "github.com/eureka-corp/eureka/testing"
)

type stubRepo struct {
	user      *auth.User
	created   []auth.NewUser
	createErr error
	sessions  map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, user auth.NewUser) (*auth.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, user)
	return &auth.User{ID: int64(100 + len(s.created)), Email: user.Email, Name: user.Name, PasswordHash: user.PasswordHash}, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type authFixture struct {
	router   chi.Router
	sessions *shared.SessionManager
}

func newAuthFixture(t *testing.T, repo auth.Repository) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(repo), templates, sessionManager, csrfManager, rbac.Middleware{})
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return &authFixture{router: router, sessions: sessionManager}
}

// do runs req through the router with the session referenced by sess, or a
// fresh one when sess is nil, and returns the committed session.
func (f *authFixture) do(t *testing.T, req *http.Request, sess *shared.Session) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	if sess != nil {
		req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: sess.ID})
	}
	loaded, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), loaded)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.NoError(t, f.sessions.Commit(ctx, res, req, loaded))
	return res, loaded
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginPage(t *testing.T) {
	f := newAuthFixture(t, &stubRepo{})

	res, sess := f.do(t, httptest.NewRequest(http.MethodGet, "/login?redirectTo=%2Freviews", nil), nil)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `value="/reviews"`)
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 1, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
	f := newAuthFixture(t, repo)

	res, _ := f.do(t, postForm("/login", url.Values{
		"email":    {"user@test.local"},
		"password": {"wrongpass"},
	}), nil)

	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	assert.NotContains(t, res.Body.String(), "wrongpass")
}

func TestLoginValidation(t *testing.T) {
	f := newAuthFixture(t, &stubRepo{})

	res, _ := f.do(t, postForm("/login", url.Values{"email": {"not-an-email"}, "password": {"abc"}}), nil)

	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email is invalid")
	assert.Contains(t, res.Body.String(), "Password is too short")
}

func TestLoginRedirectTarget(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		expected string
	}{
		{name: "local path", target: "/reviews/3", expected: "/reviews/3"},
		{name: "empty", target: "", expected: "/"},
		{name: "protocol relative", target: "//evil.example", expected: "/"},
		{name: "absolute url", target: "https://evil.example/", expected: "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
			f := newAuthFixture(t, repo)

			res, sess := f.do(t, postForm("/login", url.Values{
				"email":      {"USER@test.local "},
				"password":   {"correctpass"},
				"redirectTo": {tc.target},
			}), nil)

			require.Equal(t, http.StatusSeeOther, res.Code)
			assert.Equal(t, tc.expected, res.Header().Get("Location"))
			assert.Equal(t, "7", sess.User())
			assert.Equal(t, int64(7), repo.sessions[sess.ID])
		})
	}
}

func TestSignupCreatesEmployee(t *testing.T) {
	repo := &stubRepo{}
	f := newAuthFixture(t, repo)

	res, sess := f.do(t, postForm("/signup", url.Values{
		"email":           {"New.Person@Eureka.co"},
		"name":            {"  New Person "},
		"password":        {"secret123"},
		"confirmPassword": {"secret123"},
	}), nil)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	require.Len(t, repo.created, 1)
	created := repo.created[0]
	assert.Equal(t, "new.person@eureka.co", created.Email)
	assert.Equal(t, "New Person", created.Name)
	assert.Equal(t, rbac.RoleEmployee, created.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret123")))
	assert.Equal(t, "101", sess.User())
}

func TestSignupRejections(t *testing.T) {
	valid := func() url.Values {
		return url.Values{
			"email":           {"someone@eureka.co"},
			"name":            {"Someone"},
			"password":        {"secret123"},
			"confirmPassword": {"secret123"},
		}
	}
	cases := []struct {
		name    string
		mutate  func(url.Values)
		repoErr error
		message string
	}{
		{name: "duplicate email", repoErr: shared.ErrDuplicateEmail, message: "A user already exists with this email"},
		{name: "passwords differ", mutate: func(v url.Values) { v.Set("confirmPassword", "other1234") }, message: "The passwords must match"},
		{name: "short name", mutate: func(v url.Values) { v.Set("name", "Al") }, message: "Name is too short"},
		{name: "honeypot", mutate: func(v url.Values) { v.Set(shared.HoneypotField, "bot") }, message: "Form not submitted properly"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{createErr: tc.repoErr}
			f := newAuthFixture(t, repo)
			values := valid()
			if tc.mutate != nil {
				tc.mutate(values)
			}

			res, sess := f.do(t, postForm("/signup", values), nil)

			require.Equal(t, http.StatusBadRequest, res.Code)
			assert.Contains(t, res.Body.String(), tc.message)
			assert.Empty(t, sess.User())
		})
	}
}

func TestSignedInUserIsRedirectedFromLogin(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 3, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
	f := newAuthFixture(t, repo)
	_, sess := f.do(t, postForm("/login", url.Values{"email": {"user@test.local"}, "password": {"correctpass"}}), nil)

	res, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), sess)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 3, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
	f := newAuthFixture(t, repo)
	_, sess := f.do(t, postForm("/login", url.Values{"email": {"user@test.local"}, "password": {"correctpass"}}), nil)
	require.Contains(t, repo.sessions, sess.ID)

	res, loaded := f.do(t, postForm("/logout", url.Values{}), sess)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.True(t, loaded.Destroyed())
	assert.NotContains(t, repo.sessions, sess.ID)

	res, after := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), sess)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEqual(t, sess.ID, after.ID)
}

func TestLoginRenewsSessionID(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
	f := newAuthFixture(t, repo)
	_, anonymous := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), nil)
	preLoginID := anonymous.ID
	require.NotEmpty(t, anonymous.Get(shared.CSRFSessionKey))

	res, sess := f.do(t, postForm("/login", url.Values{
		"email":    {"user@test.local"},
		"password": {"correctpass"},
	}), anonymous)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.NotEqual(t, preLoginID, sess.ID)
	assert.Equal(t, "7", sess.User())
	assert.Empty(t, sess.Get(shared.CSRFSessionKey))
	assert.Contains(t, repo.sessions, sess.ID)
	assert.NotContains(t, repo.sessions, preLoginID)

	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == f.sessions.CookieName() {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, sess.ID, cookie.Value)

	_, stale := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), &shared.Session{ID: preLoginID})
	assert.NotEqual(t, preLoginID, stale.ID)
	assert.Empty(t, stale.User())
}

func TestSignupRenewsSessionID(t *testing.T) {
	f := newAuthFixture(t, &stubRepo{})
	_, anonymous := f.do(t, httptest.NewRequest(http.MethodGet, "/signup", nil), nil)
	preSignupID := anonymous.ID

	res, sess := f.do(t, postForm("/signup", url.Values{
		"email":           {"fresh@eureka.co"},
		"name":            {"Fresh Person"},
		"password":        {"secret123"},
		"confirmPassword": {"secret123"},
	}), anonymous)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.NotEqual(t, preSignupID, sess.ID)
	assert.Equal(t, "101", sess.User())
}

func TestLoginHoneypot(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
	f := newAuthFixture(t, repo)

	res, sess := f.do(t, postForm("/login", url.Values{
		"email":              {"user@test.local"},
		"password":           {"correctpass"},
		shared.HoneypotField: {"bot"},
	}), nil)

	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Form not submitted properly")
	assert.Empty(t, sess.User())
	assert.Empty(t, repo.sessions)
}

func TestLoginPageRendersHoneypot(t *testing.T) {
	f := newAuthFixture(t, &stubRepo{})

	res, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), nil)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `name="`+shared.HoneypotField+`"`)
}
