// Package secretary provides methods for session token handling.
package secretary

// Secretary defines a set of methods for types implementing Secretary.
type Secretary interface {
	GetTokenForAddress(address string) (string, error)
	ValidateToken(accessToken string) (string, error)
}
