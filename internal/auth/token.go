package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fkhayef/kasmoni/pkg/apperror"
)

var (
	ErrInvalidToken = apperror.New(apperror.KindUnauthorized, "Invalid or expired token")
	ErrMissingKey   = errors.New("jwt secret is not configured")
)

// Verifier turns a bearer token into a principal
type Verifier interface {
	Verify(token string) (*Principal, error)
}

// Claims is the JWT payload
type Claims struct {
	Username string   `json:"username"`
	Role     Role     `json:"role"`
	UserType UserType `json:"user_type"`
	MemberID *int64   `json:"member_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 tokens
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for p
func (s *TokenService) Issue(p *Principal) (string, error) {
	now := s.now()
	claims := Claims{
		Username: p.Username,
		Role:     p.Role,
		UserType: p.UserType,
		MemberID: p.MemberID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the principal
func (s *TokenService) Verify(token string) (*Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}

	switch claims.Role {
	case RoleAdministrator, RoleSuperUser, RoleNormalUser:
	default:
		return nil, ErrInvalidToken
	}
	switch claims.UserType {
	case UserTypeAdmin:
	case UserTypeMember:
		if claims.MemberID == nil {
			return nil, ErrInvalidToken
		}
	default:
		return nil, ErrInvalidToken
	}

	return &Principal{
		ID:       id,
		Username: claims.Username,
		Role:     claims.Role,
		UserType: claims.UserType,
		MemberID: claims.MemberID,
	}, nil
}
