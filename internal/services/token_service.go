package services

import (
	"crypto/hmac"
	"errors"
	"time"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenService struct {
	masterToken string
	jwtSecret   string
}

func NewTokenService(masterToken, jwtSecret string) *TokenService {
	return &TokenService{
		masterToken: masterToken,
		jwtSecret:   jwtSecret,
	}
}

// ValidateMasterToken checks the provided token against the master token.
// The comparison is constant-time; an unset master token never validates.
func (s *TokenService) ValidateMasterToken(token string) bool {
	return s.masterToken != "" && hmac.Equal([]byte(token), []byte(s.masterToken))
}

// CreateToken creates a tenant-scoped JWT with the requested access level
func (s *TokenService) CreateToken(req *models.CreateTokenRequest) (string, error) {
	claims := jwt.MapClaims{
		"sub":    req.TenantID.String(),
		"access": string(req.Access),
		"exp":    req.ExpiresAt.Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT and returns its tenant-scoped claims
func (s *TokenService) ValidateToken(tokenString string) (*models.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, errors.New("missing subject claim")
	}
	tenantID, err := uuid.Parse(sub)
	if err != nil {
		return nil, errors.New("subject claim is not a tenant id")
	}
	access, ok := claims["access"].(string)
	if !ok {
		return nil, errors.New("missing access claim")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, errors.New("missing expiry claim")
	}

	return &models.Token{
		TenantID:  tenantID,
		Access:    models.AccessLevel(access),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
