package models

import "time"

const (
	MessageTypeChat  = "chat"
	MessageTypeAlert = "alert"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Message is a direct message between two users. Sender, recipient, content
// and type are immutable once created; only the read flag transitions, and
// only false to true.
type Message struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"sender_id"`
	RecipientID  int64     `json:"recipient_id"`
	Content      string    `json:"content"`
	MessageType  string    `json:"message_type"`
	Priority     string    `json:"priority"`
	WorkoutLogID *int64    `json:"workout_log_id,omitempty"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConversationSummary describes the thread with one counterpart. There is no
// stored conversation entity; summaries are derived from messages on every
// read.
type ConversationSummary struct {
	Participant Contact  `json:"participant"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func ValidPriority(priority string) bool {
	return priority == PriorityLow || priority == PriorityMedium || priority == PriorityHigh
}
