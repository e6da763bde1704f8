package auth

import (
	"errors"
	"time"

	"greencity/config"
	"greencity/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidToken = errors.New("invalid token")

// TokenService issues and verifies the HS256 bearer tokens handed out at
// login and registration.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	hours := cfg.ExpirationHours
	if hours <= 0 {
		hours = 24
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    time.Hour * time.Duration(hours),
		now:    time.Now,
	}
}

func (s *TokenService) Issue(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"uid":   user.UID,
		"email": user.Email,
		"name":  user.FullName,
		"exp":   now.Add(s.ttl).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the caller identity.
func (s *TokenService) Verify(tokenString string) (*model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	uid, _ := claims["uid"].(string)
	if uid == "" {
		return nil, errInvalidToken
	}

	identity := &model.Identity{UID: uid}
	identity.Email, _ = claims["email"].(string)
	identity.Name, _ = claims["name"].(string)
	return identity, nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
