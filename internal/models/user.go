package models

import "time"

const (
	RoleClient  = "client"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	TrainerID    *int64    `json:"trainer_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Contact is the reduced view of a user exposed to their messaging
// counterparts.
type Contact struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func ValidRole(role string) bool {
	return role == RoleClient || role == RoleTrainer || role == RoleAdmin
}
