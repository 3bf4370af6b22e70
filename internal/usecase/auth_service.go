package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gmart-backend/internal/domain"
	"gmart-backend/internal/logging"
)

const (
	defaultTokenTTL = 7 * 24 * time.Hour
	defaultOTPTTL   = 5 * time.Minute
	minPasswordLen  = 6
)

type UserRepo interface {
	PutUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, bool)
}

type OTPStore interface {
	SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error
	VerifyOTP(ctx context.Context, email, code string) (bool, error)
}

type OTPSender interface {
	SendOTP(ctx context.Context, to, code string) error
}

type Claims struct {
	UserID string
	Email  string
	Role   domain.Role
}

type AuthService struct {
	Users     UserRepo
	OTP       OTPStore
	Mailer    OTPSender
	JWTSecret string
	TokenTTL  time.Duration
	OTPTTL    time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

var validate = validator.New()

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrBadRequest("a valid email is required")
	}
	return email, nil
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, *domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrBadRequest("name is required")
	}
	if len(password) < minPasswordLen {
		return "", nil, ErrBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if _, ok := s.Users.GetUserByEmail(ctx, email); ok {
		return "", nil, ErrConflict("email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	u := &domain.User{
		UserID:       uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.Users.PutUser(ctx, u); err != nil {
		return "", nil, err
	}
	token, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, ok := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if !ok || u.PasswordHash == "" {
		return "", nil, ErrUnauthorized("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized("invalid email or password")
	}
	token, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// SendOTP replaces any pending code for email.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := otpCode()
	if err != nil {
		return err
	}
	ttl := s.OTPTTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if err := s.OTP.SaveOTP(ctx, email, code, ttl); err != nil {
		return err
	}
	log := logging.FromContext(ctx, s.Logger)
	if s.Mailer == nil {
		log.Debug("no mail transport; otp only logged", zap.String("email", email), zap.String("code", code))
		return nil
	}
	if err := s.Mailer.SendOTP(ctx, email, code); err != nil {
		log.Error("otp mail failed", zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

// VerifyOTP signs the user in, creating an account on first use.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (string, *domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}
	ok, err := s.OTP.VerifyOTP(ctx, email, strings.TrimSpace(code))
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, ErrBadRequest("invalid or expired code")
	}
	u, found := s.Users.GetUserByEmail(ctx, email)
	if !found {
		u = &domain.User{
			UserID:    uuid.NewString(),
			Name:      strings.SplitN(email, "@", 2)[0],
			Email:     email,
			Role:      domain.RoleUser,
			CreatedAt: s.now(),
		}
		if err := s.Users.PutUser(ctx, u); err != nil {
			return "", nil, err
		}
	}
	token, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *AuthService) issue(u *domain.User) (string, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	claims := jwt.MapClaims{
		"user_id": u.UserID,
		"email":   u.Email,
		"role":    string(u.Role),
		"exp":     s.now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.JWTSecret))
}

func (s *AuthService) Verify(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrUnauthorized("invalid token")
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrUnauthorized("invalid token")
	}
	var c Claims
	c.UserID, _ = m["user_id"].(string)
	c.Email, _ = m["email"].(string)
	role, _ := m["role"].(string)
	c.Role = domain.Role(role)
	if c.UserID == "" {
		return Claims{}, ErrUnauthorized("invalid token")
	}
	return c, nil
}

// EnsureAdmin creates the admin account, or promotes and re-keys an existing one.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u, ok := s.Users.GetUserByEmail(ctx, email)
	if !ok {
		u = &domain.User{
			UserID:    uuid.NewString(),
			Name:      "Admin",
			Email:     email,
			CreatedAt: s.now(),
		}
	}
	u.Role = domain.RoleAdmin
	u.PasswordHash = string(hash)
	return s.Users.PutUser(ctx, u)
}

func otpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
