package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT claims structure for cahier sessions. It embeds
// jwt.RegisteredClaims for standard fields (exp, iat) and adds user identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}
