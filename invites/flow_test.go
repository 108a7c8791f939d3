package invites_test

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
	"github.com/tableside/admin-auth/invites"
	"github.com/tableside/admin-auth/token"
)

const (
	testRestaurantID = 7
	testOwnerEmail   = "owner@example.com"
)

// captureMailer records sent mail so tests can extract invite links.
type captureMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

type capturedMail struct {
	to, subject, body string
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{to: to, subject: subject, body: body})
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) last() capturedMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type testFixture struct {
	inviteRepo *invites.InMemoryRepo
	adminRepo  *admins.InMemoryRepo
	codec      *token.Codec
	mailer     *captureMailer
	service    *invites.Service
	now        time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		inviteRepo: invites.NewInMemoryRepo(),
		adminRepo:  admins.NewInMemoryRepo(),
		mailer:     &captureMailer{},
		now:        time.Now(),
	}

	codec, err := token.NewCodec([]byte("test-secret"), token.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.codec = codec

	recorder := audit.NewRecorder(audit.NewInMemoryRepo(), zerolog.Nop())
	f.service = invites.NewService(f.inviteRepo, f.adminRepo, codec, f.mailer, recorder,
		invites.WithNowTime(func() time.Time { return f.now }))

	return f
}

func ownerClaims() *token.Claims {
	return &token.Claims{
		Kind:         token.KindAccess,
		RestaurantID: testRestaurantID,
		AdminID:      "owner-1",
		Email:        testOwnerEmail,
		Role:         string(admins.RoleOwner),
	}
}

func staffClaims() *token.Claims {
	claims := ownerClaims()
	claims.AdminID = "staff-1"
	claims.Email = "staff@example.com"
	claims.Role = string(admins.RoleStaff)
	return claims
}

// issueAndExtractToken issues an invite and pulls the raw token out of the
// sent email.
func issueAndExtractToken(t *testing.T, f *testFixture, email string, role admins.Role) string {
	t.Helper()

	before := f.mailer.count()
	_, err := f.service.Issue(context.Background(), ownerClaims(), testRestaurantID, email, role)
	require.NoError(t, err)

	// Mail dispatch is asynchronous.
	require.Eventually(t, func() bool { return f.mailer.count() > before }, time.Second, 5*time.Millisecond)

	last := f.mailer.last()
	require.Equal(t, email, last.to)
	return extractToken(t, last.body)
}

func extractToken(t *testing.T, body string) string {
	t.Helper()
	const marker = "token="
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0)
	rest := body[idx+len(marker):]
	if end := strings.IndexAny(rest, "\r\n "); end >= 0 {
		return rest[:end]
	}
	return rest
}

func TestIssueRequiresOwner(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Issue(context.Background(), staffClaims(), testRestaurantID, "new@example.com", admins.RoleStaff)
	require.ErrorIs(t, err, invites.ErrForbidden)
}

func TestIssueRejectsCrossTenant(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Issue(context.Background(), ownerClaims(), testRestaurantID+1, "new@example.com", admins.RoleStaff)
	require.ErrorIs(t, err, invites.ErrForbidden)
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Issue(context.Background(), ownerClaims(), testRestaurantID, "new@example.com", admins.Role("superuser"))
	require.ErrorIs(t, err, invites.ErrInvalidRole)
}

func TestIssueAndRedeem(t *testing.T) {
	f := setupTestFixture(t)

	raw := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)

	account, err := f.service.Redeem(context.Background(), raw, "longenoughpassword")
	require.NoError(t, err)
	require.Equal(t, testRestaurantID, account.RestaurantID)
	require.Equal(t, "new@example.com", account.Email)
	require.Equal(t, admins.RoleStaff, account.Role)
	require.True(t, account.Active)
	require.True(t, admins.CheckPasswordHash("longenoughpassword", account.PasswordHash))

	// The new admin is findable by credentials.
	stored, err := f.adminRepo.GetByEmail(context.Background(), testRestaurantID, "new@example.com")
	require.NoError(t, err)
	require.Equal(t, account.ID, stored.ID)
}

func TestRedeemIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)

	raw := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)

	_, err := f.service.Redeem(context.Background(), raw, "longenoughpassword")
	require.NoError(t, err)

	_, err = f.service.Redeem(context.Background(), raw, "longenoughpassword")
	require.ErrorIs(t, err, invites.ErrAlreadyConsumed)
}

func TestConcurrentRedeemHasOneWinner(t *testing.T) {
	f := setupTestFixture(t)

	raw := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)

	const attempts = 20
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Redeem(context.Background(), raw, "longenoughpassword")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, invites.ErrAlreadyConsumed)
		}
	}
	require.Equal(t, 1, winners)
}

func TestRedeemRejectsExpiredToken(t *testing.T) {
	f := setupTestFixture(t)

	raw := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)

	f.now = f.now.Add(token.DefaultInviteTTL + time.Hour)
	_, err := f.service.Redeem(context.Background(), raw, "longenoughpassword")
	require.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestRedeemRejectsWeakPassword(t *testing.T) {
	f := setupTestFixture(t)

	raw := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)

	_, err := f.service.Redeem(context.Background(), raw, "short")
	require.ErrorIs(t, err, admins.ErrWeakPassword)

	// The failed attempt did not burn the invite.
	_, err = f.service.Redeem(context.Background(), raw, "longenoughpassword")
	require.NoError(t, err)
}

func TestReinviteInvalidatesPreviousToken(t *testing.T) {
	f := setupTestFixture(t)

	first := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)
	second := issueAndExtractToken(t, f, "new@example.com", admins.RoleOwner)

	_, err := f.service.Redeem(context.Background(), first, "longenoughpassword")
	require.Error(t, err)

	account, err := f.service.Redeem(context.Background(), second, "longenoughpassword")
	require.NoError(t, err)
	require.Equal(t, admins.RoleOwner, account.Role)
}

func TestRedeemReleasesTokenOnDuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)

	raw := issueAndExtractToken(t, f, "new@example.com", admins.RoleStaff)

	// The email gets registered through another path before redemption.
	hash, err := admins.HashPassword("someotherpassword")
	require.NoError(t, err)
	require.NoError(t, f.adminRepo.Create(context.Background(), &admins.Account{
		RestaurantID: testRestaurantID,
		Email:        "new@example.com",
		PasswordHash: hash,
		Role:         admins.RoleStaff,
		Active:       true,
	}))

	_, err = f.service.Redeem(context.Background(), raw, "longenoughpassword")
	require.ErrorIs(t, err, admins.ErrDuplicateEmail)

	// The consumption was rolled back.
	claims, err := f.codec.Verify(raw, token.KindInvite)
	require.NoError(t, err)
	invite, err := f.inviteRepo.Get(context.Background(), claims.TokenID)
	require.NoError(t, err)
	require.False(t, invite.Consumed)
}
