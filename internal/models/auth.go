package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried in tokens issued by the identity service.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleOperator UserRole = "OPERATOR"
	RoleProvider UserRole = "PROVIDER"
	RolePatient  UserRole = "PATIENT"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	ProviderID string   `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
