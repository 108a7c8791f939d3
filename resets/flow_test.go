package resets_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/audit"
	"github.com/tableside/admin-auth/resets"
	"github.com/tableside/admin-auth/sessions"
	"github.com/tableside/admin-auth/token"
)

const (
	testRestaurantID = 3
	testAdminEmail   = "chef@example.com"
	oldPassword      = "originalpassword"
	newPassword      = "replacementpassword"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []string // bodies
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

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type testFixture struct {
	resetRepo   *resets.InMemoryRepo
	adminRepo   *admins.InMemoryRepo
	sessionRepo *sessions.InMemoryRepo
	codec       *token.Codec
	mailer      *captureMailer
	service     *resets.Service
	admin       *admins.Account
	now         time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		resetRepo:   resets.NewInMemoryRepo(),
		adminRepo:   admins.NewInMemoryRepo(),
		sessionRepo: sessions.NewInMemoryRepo(),
		mailer:      &captureMailer{},
		now:         time.Now(),
	}

	codec, err := token.NewCodec([]byte("test-secret"), token.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.codec = codec

	recorder := audit.NewRecorder(audit.NewInMemoryRepo(), zerolog.Nop())
	f.service = resets.NewService(f.resetRepo, f.adminRepo, f.sessionRepo, codec, f.mailer, recorder,
		resets.WithNowTime(func() time.Time { return f.now }))

	hash, err := admins.HashPassword(oldPassword)
	require.NoError(t, err)
	f.admin = &admins.Account{
		RestaurantID: testRestaurantID,
		Email:        testAdminEmail,
		PasswordHash: hash,
		Role:         admins.RoleStaff,
		Active:       true,
		CreatedAt:    f.now,
	}
	require.NoError(t, f.adminRepo.Create(context.Background(), f.admin))

	return f
}

func requestAndExtractToken(t *testing.T, f *testFixture) string {
	t.Helper()

	before := f.mailer.count()
	require.NoError(t, f.service.Request(context.Background(), testRestaurantID, testAdminEmail))

	// Mail dispatch is asynchronous.
	require.Eventually(t, func() bool { return f.mailer.count() > before }, time.Second, 5*time.Millisecond)

	body := f.mailer.last()
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	rest := body[idx+len("token="):]
	if end := strings.IndexAny(rest, "\r\n "); end >= 0 {
		return rest[:end]
	}
	return rest
}

func TestRequestAcknowledgesUnknownEmail(t *testing.T) {
	f := setupTestFixture(t)

	// Same nil result for unknown email, wrong tenant, and inactive account.
	require.NoError(t, f.service.Request(context.Background(), testRestaurantID, "nobody@example.com"))
	require.NoError(t, f.service.Request(context.Background(), testRestaurantID+1, testAdminEmail))

	require.NoError(t, f.adminRepo.SetActive(context.Background(), f.admin.ID, false))
	require.NoError(t, f.service.Request(context.Background(), testRestaurantID, testAdminEmail))

	// No mail went out for any of them.
	require.Zero(t, f.mailer.count())
}

func TestRequestTimingDoesNotRevealAccounts(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	measure := func(email string) time.Duration {
		const rounds = 50
		start := time.Now()
		for i := 0; i < rounds; i++ {
			require.NoError(t, f.service.Request(ctx, testRestaurantID, email))
		}
		return time.Since(start) / rounds
	}

	// Warm both paths before timing them.
	measure(testAdminEmail)
	measure("nobody@example.com")

	known := measure(testAdminEmail)
	unknown := measure("nobody@example.com")

	slow, fast := known, unknown
	if unknown > known {
		slow, fast = unknown, known
	}
	ratio := float64(slow) / float64(fast+time.Microsecond)
	require.Less(t, ratio, 25.0, "known-email avg %v, unknown-email avg %v", known, unknown)
}

func TestRequestAndConfirm(t *testing.T) {
	f := setupTestFixture(t)

	raw := requestAndExtractToken(t, f)
	require.NoError(t, f.service.Confirm(context.Background(), raw, newPassword))

	account, err := f.adminRepo.GetByID(context.Background(), f.admin.ID)
	require.NoError(t, err)
	require.True(t, admins.CheckPasswordHash(newPassword, account.PasswordHash))
	require.False(t, admins.CheckPasswordHash(oldPassword, account.PasswordHash))
}

func TestConfirmRevokesAllSessions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		require.NoError(t, f.sessionRepo.Create(ctx, &sessions.Session{
			ID:           id,
			RestaurantID: testRestaurantID,
			AdminID:      f.admin.ID,
			AdminEmail:   f.admin.Email,
			SecretHash:   sessions.HashSecret("secret-" + id),
			IssuedAt:     f.now,
			ExpiresAt:    f.now.Add(24 * time.Hour),
		}))
	}

	raw := requestAndExtractToken(t, f)
	require.NoError(t, f.service.Confirm(ctx, raw, newPassword))

	list, err := f.sessionRepo.ListByAdmin(ctx, testRestaurantID, f.admin.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, session := range list {
		require.True(t, session.Revoked, session.ID)
	}
}

func TestConfirmIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)

	raw := requestAndExtractToken(t, f)
	require.NoError(t, f.service.Confirm(context.Background(), raw, newPassword))

	err := f.service.Confirm(context.Background(), raw, "yetanotherpassword")
	require.ErrorIs(t, err, resets.ErrAlreadyConsumed)

	// The second attempt changed nothing.
	account, err := f.adminRepo.GetByID(context.Background(), f.admin.ID)
	require.NoError(t, err)
	require.True(t, admins.CheckPasswordHash(newPassword, account.PasswordHash))
}

func TestConfirmRejectsExpiredToken(t *testing.T) {
	f := setupTestFixture(t)

	raw := requestAndExtractToken(t, f)
	f.now = f.now.Add(token.DefaultResetTTL + time.Minute)

	err := f.service.Confirm(context.Background(), raw, newPassword)
	require.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestConfirmRejectsWeakPassword(t *testing.T) {
	f := setupTestFixture(t)

	raw := requestAndExtractToken(t, f)
	err := f.service.Confirm(context.Background(), raw, "short")
	require.ErrorIs(t, err, admins.ErrWeakPassword)

	// The token survives the failed attempt.
	require.NoError(t, f.service.Confirm(context.Background(), raw, newPassword))
}

func TestConfirmRejectsWrongTokenKind(t *testing.T) {
	f := setupTestFixture(t)

	raw, _, err := f.codec.IssueAccess(testRestaurantID, f.admin.ID, f.admin.Email, "staff", "s-1")
	require.NoError(t, err)

	err = f.service.Confirm(context.Background(), raw, newPassword)
	require.ErrorIs(t, err, token.ErrWrongKind)
}
