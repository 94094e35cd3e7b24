package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the signed body of a session token.
type TokenClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what a verified token asserts about its bearer.
type Identity struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}
