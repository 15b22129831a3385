package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
)

// Service hashes passwords and signs/verifies bearer tokens. It is stateless;
// the engine owns the user table and re-resolves every decoded user id against it.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates an auth service signing with secret; tokens expire after ttl.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl}
}

// HashPassword returns the bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "failed to hash password")
	}
	return string(hash), nil
}

// CheckPassword compares a stored hash with a candidate password.
func (s *Service) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errs.New(errs.KindAuth, "invalid credentials")
	}
	return nil
}

// Sign issues an HS256 token carrying the user id.
func (s *Service) Sign(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "failed to sign token")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded user id.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.New(errs.KindAuth, "unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errs.New(errs.KindAuth, "invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errs.New(errs.KindAuth, "invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errs.New(errs.KindAuth, "token missing user id")
	}
	return userID, nil
}
