// Package modelclaims provides types for token authorization.

package modelclaims

import "github.com/golang-jwt/jwt"

type SessionClaims struct {
	Address string `json:"address"`
	jwt.StandardClaims
}
