// Package secretary provides methods for session token handling.
package secretary

import (
	"errors"
	"fmt"
	"time"

	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/models/modelclaims"
	"github.com/golang-jwt/jwt"
)

const tokenTTL = 30 * time.Minute

// Secretary defines object structure and its attributes.
type Secretary struct {
	key []byte
}

// NewSecretaryService initializes a secretary service with token signing functionality.
func NewSecretaryService(c *config.SecretConfig) (*Secretary, error) {
	if len(c.SecretKey) == 0 {
		return nil, errors.New("empty secret key was passed to secretary initializer")
	}
	return &Secretary{key: []byte(c.SecretKey)}, nil
}

// GetTokenForAddress issues a signed session token bound to a wallet address.
func (s *Secretary) GetTokenForAddress(address string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &modelclaims.SessionClaims{
		Address: address,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(tokenTTL).Unix(),
		},
	})
	return token.SignedString(s.key)
}

// ValidateToken verifies a session token and returns the wallet address it is bound to.
func (s *Secretary) ValidateToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &modelclaims.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*modelclaims.SessionClaims); ok && token.Valid {
		return claims.Address, nil
	}
	return "", errors.New("invalid access token")
}
