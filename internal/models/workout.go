package models

import "time"

const (
	WorkoutStatusScheduled = "scheduled"
	WorkoutStatusCompleted = "completed"
	WorkoutStatusMissed    = "missed"
)

type WorkoutLog struct {
	ID           int64     `json:"id"`
	ClientID     int64     `json:"client_id"`
	TrainerID    int64     `json:"trainer_id"`
	Title        string    `json:"title"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Status       string    `json:"status"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
