package models

import (
	"time"
)

// Project represents a ZeroDB project owned by a single user.
// Status is always one of the ProjectStatus values; a project is never
// physically removed, DELETED is a terminal logical state.
type Project struct {
	ID              string        `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	Description     string        `json:"description" db:"description"`
	Tier            Tier          `json:"tier" db:"tier"`
	Status          ProjectStatus `json:"status" db:"status"`
	DatabaseEnabled bool          `json:"database_enabled" db:"database_enabled"`
	OwnerUserID     string        `json:"owner_user_id" db:"owner_user_id"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateProjectRequest is the payload for creating a new project.
// Tier is optional; when empty the caller's plan tier is used.
type CreateProjectRequest struct {
	Name            string `json:"name" binding:"required,max=255"`
	Description     string `json:"description" binding:"max=2000"`
	Tier            string `json:"tier"`
	DatabaseEnabled *bool  `json:"database_enabled"`
}

// ListProjectsParams are the query parameters accepted by the list endpoint.
type ListProjectsParams struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=0"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// ProjectFilter is the storage-level filter for listing projects.
// A nil Status means every status.
type ProjectFilter struct {
	OwnerUserID string
	Status      *ProjectStatus
	Limit       int
	Offset      int
}

// ProjectsResponse is the envelope returned by the list endpoint.
type ProjectsResponse struct {
	Items  []Project `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// Usage reports how much of the owner's tier quota is consumed.
type Usage struct {
	Tier          Tier `json:"tier"`
	ProjectsUsed  int  `json:"projects_used"`
	ProjectsLimit int  `json:"projects_limit"`
}

// ProjectDetail is a single project with its optional usage block.
type ProjectDetail struct {
	Project
	Usage *Usage `json:"usage,omitempty"`
}

// StatusChangeRequest is the administrative payload for a status transition.
type StatusChangeRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}
