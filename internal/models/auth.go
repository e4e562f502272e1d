package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated identity attached to each request.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	CampID string   `json:"camp_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair bundles access and refresh tokens returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
