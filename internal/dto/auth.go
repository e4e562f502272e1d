package dto

import "github.com/campos-hq/campos-api/internal/models"

// LoginRequest carries user credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns tokens plus basic profile info.
type LoginResponse struct {
	Tokens models.TokenPair `json:"tokens"`
	User   models.User      `json:"user"`
}
