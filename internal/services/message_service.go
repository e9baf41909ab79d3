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

var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrLogNotFound       = errors.New("workout log not found")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	TrainerContact(ctx context.Context, clientID int64) (*models.Contact, error)
	ClientContacts(ctx context.Context, trainerID int64) ([]models.Contact, error)
	IsAssigned(ctx context.Context, trainerID, clientID int64) (bool, error)
}

type workoutLogReader interface {
	GetByID(ctx context.Context, logID int64) (*models.WorkoutLog, error)
}

type MessageService struct {
	messageRepo *repository.MessageRepository
	userRepo    userReader
	workoutRepo workoutLogReader
}

// MessageDelivery carries a stored message plus the sender identity the push
// layer needs for the notification payload.
type MessageDelivery struct {
	Message *models.Message
	Sender  models.Contact
}

func NewMessageService(
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	workoutRepo workoutLogReader,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		workoutRepo: workoutRepo,
	}
}

func (s *MessageService) SendMessage(
	ctx context.Context,
	actorID int64,
	role string,
	recipientID int64,
	content string,
	priority string,
) (*MessageDelivery, error) {
	if role != models.RoleClient && role != models.RoleTrainer {
		return nil, ErrForbidden
	}
	if recipientID <= 0 || recipientID == actorID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	if priority == "" {
		priority = models.PriorityLow
	}
	if !models.ValidPriority(priority) {
		return nil, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	message, err := s.messageRepo.Create(
		ctx,
		actorID,
		recipientID,
		trimmed,
		models.MessageTypeChat,
		priority,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &MessageDelivery{
		Message: message,
		Sender: models.Contact{
			ID:   sender.ID,
			Name: sender.Name,
			Role: sender.Role,
		},
	}, nil
}

// SendWorkoutMissedAlert stores a trainer-to-client alert. The alert travels
// through the same messages table as ordinary chat; only type and priority
// distinguish it. Duplicate submissions create duplicate alerts.
func (s *MessageService) SendWorkoutMissedAlert(
	ctx context.Context,
	actorID int64,
	role string,
	clientID int64,
	workoutLogID *int64,
	content string,
	priority string,
) (*MessageDelivery, error) {
	if role != models.RoleTrainer {
		return nil, ErrForbidden
	}
	if clientID <= 0 || clientID == actorID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}
	if !models.ValidPriority(priority) {
		return nil, ErrInvalidInput
	}

	assigned, err := s.userRepo.IsAssigned(ctx, actorID, clientID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, ErrForbidden
	}

	if workoutLogID != nil {
		log, err := s.workoutRepo.GetByID(ctx, *workoutLogID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrLogNotFound
			}
			return nil, err
		}
		if log.ClientID != clientID || log.TrainerID != actorID {
			return nil, ErrForbidden
		}
	}

	sender, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	message, err := s.messageRepo.Create(
		ctx,
		actorID,
		clientID,
		trimmed,
		models.MessageTypeAlert,
		priority,
		workoutLogID,
	)
	if err != nil {
		return nil, err
	}

	return &MessageDelivery{
		Message: message,
		Sender: models.Contact{
			ID:   sender.ID,
			Name: sender.Name,
			Role: sender.Role,
		},
	}, nil
}

func (s *MessageService) ListConversation(
	ctx context.Context,
	actorID int64,
	role string,
	otherUserID int64,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if role != models.RoleClient && role != models.RoleTrainer {
		return nil, 0, ErrForbidden
	}
	if otherUserID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	return s.messageRepo.ListConversation(ctx, actorID, otherUserID, limit, (page-1)*limit)
}

func (s *MessageService) ListConversations(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.ConversationSummary, error) {
	if role != models.RoleClient && role != models.RoleTrainer {
		return nil, ErrForbidden
	}

	return s.messageRepo.ListConversationSummaries(ctx, actorID)
}

func (s *MessageService) UnreadCount(
	ctx context.Context,
	actorID int64,
	senderID *int64,
) (int, error) {
	return s.messageRepo.UnreadCount(ctx, actorID, senderID)
}

// Contacts resolves the messaging counterparts for the actor: a client gets
// their assigned trainer, a trainer gets their client roster.
func (s *MessageService) Contacts(
	ctx context.Context,
	actorID int64,
	role string,
) (*models.Contact, []models.Contact, error) {
	switch role {
	case models.RoleClient:
		contact, err := s.userRepo.TrainerContact(ctx, actorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, nil
			}
			return nil, nil, err
		}
		return contact, nil, nil
	case models.RoleTrainer:
		contacts, err := s.userRepo.ClientContacts(ctx, actorID)
		if err != nil {
			return nil, nil, err
		}
		return nil, contacts, nil
	default:
		return nil, nil, ErrForbidden
	}
}

// MarkRead marks one message read on behalf of its recipient. The flag only
// moves false to true; marking an already read message succeeds without
// effect.
func (s *MessageService) MarkRead(
	ctx context.Context,
	actorID int64,
	messageID int64,
) error {
	if messageID <= 0 {
		return ErrInvalidInput
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotFound
		}
		return err
	}
	if message.RecipientID != actorID {
		return ErrForbidden
	}

	_, err = s.messageRepo.MarkRead(ctx, messageID, actorID)
	return err
}

func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
