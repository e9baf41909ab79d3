package repository

import (
	"context"
	"time"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
)

type WorkoutLogRepository struct {
	db DBTX
}

func NewWorkoutLogRepository(db DBTX) *WorkoutLogRepository {
	return &WorkoutLogRepository{db: db}
}

func (r *WorkoutLogRepository) Create(
	ctx context.Context,
	clientID int64,
	trainerID int64,
	title string,
	scheduledFor time.Time,
	notes *string,
) (*models.WorkoutLog, error) {
	query := `
		INSERT INTO workout_logs (client_id, trainer_id, title, scheduled_for, status, notes)
		VALUES ($1, $2, $3, $4, 'scheduled', $5)
		RETURNING id, client_id, trainer_id, title, scheduled_for, status, notes, created_at, updated_at
	`

	var log models.WorkoutLog
	err := r.db.QueryRow(ctx, query, clientID, trainerID, title, scheduledFor, notes).Scan(
		&log.ID,
		&log.ClientID,
		&log.TrainerID,
		&log.Title,
		&log.ScheduledFor,
		&log.Status,
		&log.Notes,
		&log.CreatedAt,
		&log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &log, nil
}

func (r *WorkoutLogRepository) GetByID(ctx context.Context, logID int64) (*models.WorkoutLog, error) {
	query := `
		SELECT id, client_id, trainer_id, title, scheduled_for, status, notes, created_at, updated_at
		FROM workout_logs
		WHERE id = $1
	`

	var log models.WorkoutLog
	err := r.db.QueryRow(ctx, query, logID).Scan(
		&log.ID,
		&log.ClientID,
		&log.TrainerID,
		&log.Title,
		&log.ScheduledFor,
		&log.Status,
		&log.Notes,
		&log.CreatedAt,
		&log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &log, nil
}

// ListForParticipant returns logs where the user is either the client or the
// trainer, most recently scheduled first.
func (r *WorkoutLogRepository) ListForParticipant(
	ctx context.Context,
	userID int64,
) ([]models.WorkoutLog, error) {
	query := `
		SELECT id, client_id, trainer_id, title, scheduled_for, status, notes, created_at, updated_at
		FROM workout_logs
		WHERE client_id = $1 OR trainer_id = $1
		ORDER BY scheduled_for DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.WorkoutLog, 0)
	for rows.Next() {
		var log models.WorkoutLog
		if err := rows.Scan(
			&log.ID,
			&log.ClientID,
			&log.TrainerID,
			&log.Title,
			&log.ScheduledFor,
			&log.Status,
			&log.Notes,
			&log.CreatedAt,
			&log.UpdatedAt,
		); err != nil {
			return nil, err
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *WorkoutLogRepository) UpdateStatus(
	ctx context.Context,
	logID int64,
	status string,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE workout_logs
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, logID, status)
	return err
}
