package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/repository"
)

type WorkoutService struct {
	workoutRepo *repository.WorkoutLogRepository
	userRepo    userReader
}

// MissedWorkout is handed to the push layer when a client marks a scheduled
// workout as missed, so the trainer can be notified.
type MissedWorkout struct {
	Log        *models.WorkoutLog
	ClientName string
	Reason     string
}

func NewWorkoutService(
	workoutRepo *repository.WorkoutLogRepository,
	userRepo userReader,
) *WorkoutService {
	return &WorkoutService{
		workoutRepo: workoutRepo,
		userRepo:    userRepo,
	}
}

func (s *WorkoutService) CreateLog(
	ctx context.Context,
	actorID int64,
	role string,
	clientID int64,
	title string,
	scheduledFor time.Time,
	notes *string,
) (*models.WorkoutLog, error) {
	if role != models.RoleTrainer {
		return nil, ErrForbidden
	}
	if clientID <= 0 || scheduledFor.IsZero() {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	assigned, err := s.userRepo.IsAssigned(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, ErrForbidden
	}

	return s.workoutRepo.Create(ctx, clientID, actorID, trimmed, scheduledFor, notes)
}

func (s *WorkoutService) ListLogs(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.WorkoutLog, error) {
	if role != models.RoleClient && role != models.RoleTrainer {
		return nil, ErrForbidden
	}

	return s.workoutRepo.ListForParticipant(ctx, actorID)
}

// UpdateStatus lets the client close out their own scheduled workout. A
// transition to missed returns a MissedWorkout so the caller can push a
// notification to the trainer; completed transitions return nil.
func (s *WorkoutService) UpdateStatus(
	ctx context.Context,
	actorID int64,
	role string,
	logID int64,
	status string,
	reason string,
) (*MissedWorkout, error) {
	if role != models.RoleClient {
		return nil, ErrForbidden
	}
	if logID <= 0 {
		return nil, ErrInvalidInput
	}
	if status != models.WorkoutStatusCompleted && status != models.WorkoutStatusMissed {
		return nil, ErrInvalidInput
	}

	log, err := s.workoutRepo.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	if log.ClientID != actorID {
		return nil, ErrForbidden
	}
	if log.Status != models.WorkoutStatusScheduled {
		return nil, ErrInvalidInput
	}

	if err := s.workoutRepo.UpdateStatus(ctx, logID, status); err != nil {
		return nil, err
	}
	log.Status = status

	if status != models.WorkoutStatusMissed {
		return nil, nil
	}

	client, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	return &MissedWorkout{
		Log:        log,
		ClientName: client.Name,
		Reason:     strings.TrimSpace(reason),
	}, nil
}
