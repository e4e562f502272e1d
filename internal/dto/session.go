package dto

import "github.com/campos-hq/campos-api/internal/models"

// CreateCampRequest registers a camp under an organization.
type CreateCampRequest struct {
	OrganizationID string `json:"organizationId" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Location       string `json:"location"`
}

// CreateSessionRequest creates a new session within a camp.
type CreateSessionRequest struct {
	CampID    string `json:"campId" binding:"required"`
	Name      string `json:"name" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	Capacity  int    `json:"capacity" binding:"required,min=1"`
}

// UpdateSessionRequest mutates session metadata and lifecycle status.
type UpdateSessionRequest struct {
	Name     string               `json:"name" binding:"required"`
	Capacity int                  `json:"capacity" binding:"required,min=1"`
	Status   models.SessionStatus `json:"status" binding:"required"`
}
