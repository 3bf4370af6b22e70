package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gmart-backend/internal/domain"
	"gmart-backend/internal/infrastructure/otp"
	"gmart-backend/internal/infrastructure/repo"
)

type capturedOTP struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *capturedOTP) SendOTP(_ context.Context, to, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[to] = code
	return nil
}

func newAuth() (*AuthService, *capturedOTP) {
	mail := &capturedOTP{codes: map[string]string{}}
	return &AuthService{
		Users:     repo.NewMemoryUserRepo(),
		OTP:       otp.NewMemoryStore(),
		Mailer:    mail,
		JWTSecret: "test-secret",
		Logger:    zap.NewNop(),
	}, mail
}

func TestAuth_RegisterLoginVerify(t *testing.T) {
	s, _ := newAuth()
	ctx := context.Background()

	_, u, err := s.Register(ctx, "Ada", "Ada@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	token, _, err := s.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestAuth_RegisterRejects(t *testing.T) {
	s, _ := newAuth()
	ctx := context.Background()
	_, _, err := s.Register(ctx, "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = s.Register(ctx, "Ada", "ADA@example.com", "hunter22")
	var conflict ErrConflict
	assert.ErrorAs(t, err, &conflict)

	_, _, err = s.Register(ctx, "Bob", "not-an-email", "hunter22")
	var br ErrBadRequest
	assert.ErrorAs(t, err, &br)

	_, _, err = s.Register(ctx, "Bob", "bob@example.com", "123")
	assert.ErrorAs(t, err, &br)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	s, _ := newAuth()
	ctx := context.Background()
	_, _, err := s.Register(ctx, "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = s.Login(ctx, "ada@example.com", "wrong-password")
	var unauth ErrUnauthorized
	assert.ErrorAs(t, err, &unauth)
	_, _, err = s.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorAs(t, err, &unauth)
}

func TestAuth_VerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	s, _ := newAuth()
	ctx := context.Background()
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return issuedAt }
	token, _, err := s.Register(ctx, "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	s.Now = func() time.Time { return issuedAt.Add(8 * 24 * time.Hour) }
	_, err = s.Verify(token)
	var unauth ErrUnauthorized
	assert.ErrorAs(t, err, &unauth)

	other := &AuthService{JWTSecret: "other", Now: func() time.Time { return issuedAt }}
	_, err = other.Verify(token)
	assert.ErrorAs(t, err, &unauth)
}

func TestAuth_OTPFlowCreatesUser(t *testing.T) {
	s, mail := newAuth()
	ctx := context.Background()

	require.NoError(t, s.SendOTP(ctx, "Grace@Example.com"))
	code := mail.codes["grace@example.com"]
	require.Len(t, code, 6)

	_, _, err := s.VerifyOTP(ctx, "grace@example.com", "not-it")
	var br ErrBadRequest
	require.ErrorAs(t, err, &br)

	token, u, err := s.VerifyOTP(ctx, "grace@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "grace", u.Name)
	assert.NotEmpty(t, token)

	_, _, err = s.VerifyOTP(ctx, "grace@example.com", code)
	assert.ErrorAs(t, err, &br, "codes are single use")
}

func TestAuth_EnsureAdmin(t *testing.T) {
	s, _ := newAuth()
	ctx := context.Background()
	_, _, err := s.Register(ctx, "Root", "root@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, s.EnsureAdmin(ctx, "root@example.com", "s3cret!!"))
	token, u, err := s.Login(ctx, "root@example.com", "s3cret!!")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}
