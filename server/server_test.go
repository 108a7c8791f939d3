package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/audit"
	"github.com/tableside/admin-auth/auth"
	"github.com/tableside/admin-auth/internal/config"
	"github.com/tableside/admin-auth/invites"
	"github.com/tableside/admin-auth/resets"
	"github.com/tableside/admin-auth/server"
	"github.com/tableside/admin-auth/sessions"
	"github.com/tableside/admin-auth/token"
)

const (
	testRestaurantID = 5
	ownerEmail       = "owner@example.com"
	ownerPassword    = "ownerpassword"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastToken waits for the asynchronous mail dispatch, then pulls the raw
// token out of the newest message.
func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	require.Eventually(t, func() bool { return m.count() > 0 }, time.Second, 5*time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	body := m.sent[len(m.sent)-1]
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	rest := body[idx+len("token="):]
	if end := strings.IndexAny(rest, "\r\n "); end >= 0 {
		return rest[:end]
	}
	return rest
}

type testFixture struct {
	server      *server.Server
	adminRepo   *admins.InMemoryRepo
	sessionRepo *sessions.InMemoryRepo
	mailer      *captureMailer
	owner       *admins.Account
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		adminRepo:   admins.NewInMemoryRepo(),
		sessionRepo: sessions.NewInMemoryRepo(),
		mailer:      &captureMailer{},
	}

	codec, err := token.NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	recorder := audit.NewRecorder(audit.NewInMemoryRepo(), zerolog.Nop())
	authService := auth.NewService(
		auth.Repos{Admins: f.adminRepo, Sessions: f.sessionRepo},
		codec, recorder,
	)
	inviteService := invites.NewService(invites.NewInMemoryRepo(), f.adminRepo, codec, f.mailer, recorder)
	resetService := resets.NewService(resets.NewInMemoryRepo(), f.adminRepo, f.sessionRepo, codec, f.mailer, recorder)

	f.server = server.New(config.New(), authService, inviteService, resetService, zerolog.Nop())

	hash, err := admins.HashPassword(ownerPassword)
	require.NoError(t, err)
	f.owner = &admins.Account{
		RestaurantID: testRestaurantID,
		Email:        ownerEmail,
		PasswordHash: hash,
		Role:         admins.RoleOwner,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.adminRepo.Create(context.Background(), f.owner))

	return f
}

type request struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func (f *testFixture) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq := httptest.NewRequest(req.method, req.path, reader)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.cookie != nil {
		httpReq.AddCookie(req.cookie)
	}

	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, httpReq)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out))
	return out
}

type loginResponse struct {
	Token            string `json:"token"`
	Role             string `json:"role"`
	ExpiresIn        int    `json:"expiresIn"`
	CurrentSessionID string `json:"currentSessionId"`
	Admin            struct {
		ID           string `json:"id"`
		RestaurantID int    `json:"restaurantId"`
		Email        string `json:"email"`
		Role         string `json:"role"`
	} `json:"admin"`
}

func (f *testFixture) login(t *testing.T, email, password string) (loginResponse, *http.Cookie) {
	t.Helper()

	recorder := f.do(t, request{method: http.MethodPost, path: "/login", body: map[string]any{
		"restaurantId": testRestaurantID,
		"email":        email,
		"password":     password,
	}})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var sessionCookie *http.Cookie
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == server.SessionCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)
	require.True(t, sessionCookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, sessionCookie.SameSite)

	return decodeBody[loginResponse](t, recorder), sessionCookie
}

func TestLoginVerifyFlow(t *testing.T) {
	f := setupTestFixture(t)

	login, _ := f.login(t, ownerEmail, ownerPassword)
	require.NotEmpty(t, login.Token)
	require.NotEmpty(t, login.CurrentSessionID)
	require.Equal(t, "owner", login.Role)
	require.Positive(t, login.ExpiresIn)
	require.Equal(t, ownerEmail, login.Admin.Email)

	recorder := f.do(t, request{method: http.MethodGet, path: "/verify", token: login.Token})
	require.Equal(t, http.StatusOK, recorder.Code)

	claims := decodeBody[map[string]any](t, recorder)
	require.Equal(t, true, claims["valid"])
	require.Equal(t, float64(testRestaurantID), claims["restaurantId"])
	require.Equal(t, ownerEmail, claims["email"])
	require.Equal(t, login.CurrentSessionID, claims["sessionId"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := setupTestFixture(t)

	recorder := f.do(t, request{method: http.MethodPost, path: "/login", body: map[string]any{
		"restaurantId": testRestaurantID,
		"email":        ownerEmail,
		"password":     "wrongpassword",
	}})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Unknown email reads identically.
	recorder2 := f.do(t, request{method: http.MethodPost, path: "/login", body: map[string]any{
		"restaurantId": testRestaurantID,
		"email":        "nobody@example.com",
		"password":     "wrongpassword",
	}})
	require.Equal(t, http.StatusUnauthorized, recorder2.Code)
	require.JSONEq(t, recorder.Body.String(), recorder2.Body.String())
}

func TestVerifyRejectsGarbage(t *testing.T) {
	f := setupTestFixture(t)

	recorder := f.do(t, request{method: http.MethodGet, path: "/verify"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, request{method: http.MethodGet, path: "/verify", token: "not-a-jwt"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	f := setupTestFixture(t)

	login, cookie := f.login(t, ownerEmail, ownerPassword)

	recorder := f.do(t, request{method: http.MethodPost, path: "/refresh", cookie: cookie})
	require.Equal(t, http.StatusOK, recorder.Code)
	refreshed := decodeBody[loginResponse](t, recorder)
	require.NotEmpty(t, refreshed.Token)

	recorder = f.do(t, request{method: http.MethodPost, path: "/logout", cookie: cookie})
	require.Equal(t, http.StatusOK, recorder.Code)

	// Both tokens die with the session.
	recorder = f.do(t, request{method: http.MethodGet, path: "/verify", token: login.Token})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	recorder = f.do(t, request{method: http.MethodGet, path: "/verify", token: refreshed.Token})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Refresh after logout fails.
	recorder = f.do(t, request{method: http.MethodPost, path: "/refresh", cookie: cookie})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestInviteFlow(t *testing.T) {
	f := setupTestFixture(t)

	login, _ := f.login(t, ownerEmail, ownerPassword)
	invitePath := fmt.Sprintf("/admin/invite/%d", testRestaurantID)

	recorder := f.do(t, request{method: http.MethodPost, path: invitePath, token: login.Token, body: map[string]string{
		"email": "new@example.com",
		"role":  "staff",
	}})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	inviteToken := f.mailer.lastToken(t)
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/invite/accept", body: map[string]string{
		"token":    inviteToken,
		"password": "longenoughpassword",
	}})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	// The invited admin can log in.
	f.login(t, "new@example.com", "longenoughpassword")

	// Redeeming again conflicts.
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/invite/accept", body: map[string]string{
		"token":    inviteToken,
		"password": "longenoughpassword",
	}})
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestInviteRequiresOwnerAndTenant(t *testing.T) {
	f := setupTestFixture(t)

	login, _ := f.login(t, ownerEmail, ownerPassword)

	// Wrong tenant in the path.
	recorder := f.do(t, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/admin/invite/%d", testRestaurantID+1),
		token:  login.Token,
		body:   map[string]string{"email": "x@example.com", "role": "staff"},
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	// No token at all.
	recorder = f.do(t, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/admin/invite/%d", testRestaurantID),
		body:   map[string]string{"email": "x@example.com", "role": "staff"},
	})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	f := setupTestFixture(t)

	// Open a session that the reset should kill.
	login, _ := f.login(t, ownerEmail, ownerPassword)

	recorder := f.do(t, request{method: http.MethodPost, path: "/admin/password_reset/request", body: map[string]any{
		"restaurantId": testRestaurantID,
		"email":        ownerEmail,
	}})
	require.Equal(t, http.StatusOK, recorder.Code)
	knownBody := recorder.Body.String()

	// Unknown email gets the identical acknowledgement.
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/password_reset/request", body: map[string]any{
		"restaurantId": testRestaurantID,
		"email":        "nobody@example.com",
	}})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, knownBody, recorder.Body.String())

	resetToken := f.mailer.lastToken(t)
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/password_reset/confirm", body: map[string]string{
		"token":    resetToken,
		"password": "brandnewpassword",
	}})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	// The old session is gone and the old password no longer works.
	recorder = f.do(t, request{method: http.MethodGet, path: "/verify", token: login.Token})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, request{method: http.MethodPost, path: "/login", body: map[string]any{
		"restaurantId": testRestaurantID,
		"email":        ownerEmail,
		"password":     ownerPassword,
	}})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	f.login(t, ownerEmail, "brandnewpassword")
}

func TestSessionAdministration(t *testing.T) {
	f := setupTestFixture(t)

	first, _ := f.login(t, ownerEmail, ownerPassword)
	second, _ := f.login(t, ownerEmail, ownerPassword)

	listPath := fmt.Sprintf("/admin/sessions/%d", testRestaurantID)
	recorder := f.do(t, request{method: http.MethodGet, path: listPath, token: second.Token})
	require.Equal(t, http.StatusOK, recorder.Code)

	list := decodeBody[[]map[string]any](t, recorder)
	require.Len(t, list, 2)

	// Revoke everything except the current session.
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/sessions/revoke_all", token: second.Token})
	require.Equal(t, http.StatusOK, recorder.Code)
	counts := decodeBody[map[string]any](t, recorder)
	require.Equal(t, float64(1), counts["revoked"])

	recorder = f.do(t, request{method: http.MethodGet, path: "/verify", token: first.Token})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	recorder = f.do(t, request{method: http.MethodGet, path: "/verify", token: second.Token})
	require.Equal(t, http.StatusOK, recorder.Code)

	// Revoking an unknown session is a 404.
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/sessions/revoke", token: second.Token, body: map[string]string{
		"sessionId": "no-such-session",
	}})
	require.Equal(t, http.StatusNotFound, recorder.Code)

	// Cross-tenant listing is forbidden.
	recorder = f.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/admin/sessions/%d", testRestaurantID+1), token: second.Token})
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestHealthz(t *testing.T) {
	f := setupTestFixture(t)

	recorder := f.do(t, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, recorder.Code)
}
