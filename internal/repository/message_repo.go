package repository

import (
	"context"
	"database/sql"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	senderID int64,
	recipientID int64,
	content string,
	messageType string,
	priority string,
	workoutLogID *int64,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_id, recipient_id, content, message_type, priority, workout_log_id, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, sender_id, recipient_id, content, message_type, priority, workout_log_id, is_read, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, senderID, recipientID, content, messageType, priority, workoutLogID).Scan(
		&message.ID,
		&message.SenderID,
		&message.RecipientID,
		&message.Content,
		&message.MessageType,
		&message.Priority,
		&message.WorkoutLogID,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, message_type, priority, workout_log_id, is_read, created_at
		FROM messages
		WHERE id = $1
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&message.ID,
		&message.SenderID,
		&message.RecipientID,
		&message.Content,
		&message.MessageType,
		&message.Priority,
		&message.WorkoutLogID,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListConversation returns the thread between two users, newest first.
func (r *MessageRepository) ListConversation(
	ctx context.Context,
	userID int64,
	otherUserID int64,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, userID, otherUserID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, sender_id, recipient_id, content, message_type, priority, workout_log_id, is_read, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, userID, otherUserID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.SenderID,
			&message.RecipientID,
			&message.Content,
			&message.MessageType,
			&message.Priority,
			&message.WorkoutLogID,
			&message.IsRead,
			&message.CreatedAt,
		); err != nil {
			return nil, 0, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// ListConversationSummaries derives one summary per counterpart the user has
// exchanged messages with. Conversations are not stored; every call rebuilds
// the full set from the messages table.
func (r *MessageRepository) ListConversationSummaries(
	ctx context.Context,
	userID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			u.id,
			u.name,
			u.role,
			lm.id,
			lm.sender_id,
			lm.recipient_id,
			lm.content,
			lm.message_type,
			lm.priority,
			lm.workout_log_id,
			lm.is_read,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM (
			SELECT DISTINCT
				CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS counterpart_id
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
		) p
		JOIN users u ON u.id = p.counterpart_id
		LEFT JOIN LATERAL (
			SELECT id, sender_id, recipient_id, content, message_type, priority, workout_log_id, is_read, created_at
			FROM messages
			WHERE (sender_id = $1 AND recipient_id = p.counterpart_id)
			   OR (sender_id = p.counterpart_id AND recipient_id = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE sender_id = p.counterpart_id
			  AND recipient_id = $1
			  AND is_read = FALSE
		) uc ON TRUE
		ORDER BY lm.created_at DESC NULLS LAST, u.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageRecipientID sql.NullInt64
		var messageContent sql.NullString
		var messageType sql.NullString
		var messagePriority sql.NullString
		var messageWorkoutLogID sql.NullInt64
		var messageIsRead sql.NullBool
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.Participant.ID,
			&summary.Participant.Name,
			&summary.Participant.Role,
			&messageID,
			&messageSenderID,
			&messageRecipientID,
			&messageContent,
			&messageType,
			&messagePriority,
			&messageWorkoutLogID,
			&messageIsRead,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID.Valid {
			summary.LastMessage = &models.Message{
				ID:          messageID.Int64,
				SenderID:    messageSenderID.Int64,
				RecipientID: messageRecipientID.Int64,
				Content:     messageContent.String,
				MessageType: messageType.String,
				Priority:    messagePriority.String,
				IsRead:      messageIsRead.Bool,
				CreatedAt:   messageCreatedAt.Time,
			}
			if messageWorkoutLogID.Valid {
				id := messageWorkoutLogID.Int64
				summary.LastMessage.WorkoutLogID = &id
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// UnreadCount counts unread messages addressed to userID, optionally
// restricted to a single sender.
func (r *MessageRepository) UnreadCount(
	ctx context.Context,
	userID int64,
	senderID *int64,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE recipient_id = $1
		  AND is_read = FALSE
		  AND ($2::bigint IS NULL OR sender_id = $2)
	`

	var count int
	if err := r.db.QueryRow(ctx, query, userID, senderID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flips the read flag for a single message addressed to readerID.
// The transition is monotonic: re-marking an already read message is a no-op.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	messageID int64,
	readerID int64,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = $1
		  AND recipient_id = $2
		  AND is_read = FALSE
	`, messageID, readerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
