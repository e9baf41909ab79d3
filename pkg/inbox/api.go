package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Messaging errors, matched with errors.Is.
var (
	// ErrInvalidInput marks requests rejected client-side before any
	// network round-trip (empty body, missing recipient).
	ErrInvalidInput = fmt.Errorf("invalid input")
	// ErrUnauthorized surfaces a missing or expired credential. The view
	// owns the redirect to login, not this client.
	ErrUnauthorized = fmt.Errorf("unauthorized")
	// ErrForbidden surfaces a role the server refused (e.g. a non-trainer
	// posting an alert).
	ErrForbidden = fmt.Errorf("forbidden")
)

// APIError is any other non-success response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

const (
	MessageTypeChat  = "chat"
	MessageTypeAlert = "alert"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Contact is one messaging counterpart.
type Contact struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Message mirrors the store's message representation.
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

// ConversationSummary is one entry of the inbox list.
type ConversationSummary struct {
	Participant Contact  `json:"participant"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

// Client is the pull side of the messaging core: every authoritative read
// (conversations, threads, unread counts) goes through these REST calls.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = httpc }
}

func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   http.DefaultClient,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendMessageRequest struct {
	RecipientID int64  `json:"recipientId"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
}

type sendAlertRequest struct {
	ClientID     int64  `json:"clientId"`
	WorkoutLogID *int64 `json:"workoutLogId,omitempty"`
	Message      string `json:"message"`
	Priority     string `json:"priority"`
}

// SendMessage posts an ordinary chat message. Trivially invalid input is
// rejected before any network call.
func (c *Client) SendMessage(ctx context.Context, recipientID int64, body string, priority string) (*Message, error) {
	if recipientID <= 0 || strings.TrimSpace(body) == "" {
		return nil, ErrInvalidInput
	}
	if priority == "" {
		priority = PriorityLow
	}

	var data struct {
		Message *Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/messages", sendMessageRequest{
		RecipientID: recipientID,
		Message:     body,
		Type:        MessageTypeChat,
		Priority:    priority,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Message, nil
}

// SendWorkoutMissedAlert posts a trainer alert referencing an optional
// workout log. Authorization is enforced server-side; a refusal comes back
// as ErrForbidden.
func (c *Client) SendWorkoutMissedAlert(ctx context.Context, clientID int64, workoutLogID *int64, message string, priority string) (*Message, error) {
	if clientID <= 0 || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidInput
	}
	if priority == "" {
		priority = PriorityHigh
	}

	var data struct {
		Message *Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/messages/alert/workout-missed", sendAlertRequest{
		ClientID:     clientID,
		WorkoutLogID: workoutLogID,
		Message:      message,
		Priority:     priority,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Message, nil
}

// Conversation fetches one page of the thread with otherUserID, newest
// first.
func (c *Client) Conversation(ctx context.Context, otherUserID int64, page, limit int) ([]Message, error) {
	if otherUserID <= 0 {
		return nil, ErrInvalidInput
	}

	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/messages/conversation/" + strconv.FormatInt(otherUserID, 10)
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var data struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Messages, nil
}

// Conversations fetches the full inbox snapshot.
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	var data struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, &data); err != nil {
		return nil, err
	}
	return data.Conversations, nil
}

// UnreadCount fetches the unread total, optionally filtered by sender.
func (c *Client) UnreadCount(ctx context.Context, senderID *int64) (int, error) {
	path := "/messages/unread-count"
	if senderID != nil {
		path += "?senderId=" + strconv.FormatInt(*senderID, 10)
	}

	var data struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return 0, err
	}
	return data.UnreadCount, nil
}

// Contact resolves the messaging counterparts: a single trainer for a
// client session, a client roster for a trainer session.
func (c *Client) Contact(ctx context.Context) (*Contact, []Contact, error) {
	var data struct {
		Contact  *Contact  `json:"contact"`
		Contacts []Contact `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/contact", nil, &data); err != nil {
		return nil, nil, err
	}
	return data.Contact, data.Contacts, nil
}

// MarkRead flips one message's read flag. Read state is best-effort: callers
// log failures and rely on the next poll to self-correct.
func (c *Client) MarkRead(ctx context.Context, messageID int64) error {
	if messageID <= 0 {
		return ErrInvalidInput
	}
	return c.do(ctx, http.MethodPut, "/messages/"+strconv.FormatInt(messageID, 10)+"/read", nil, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "malformed response"}
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", env.Message, ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", env.Message, ErrForbidden)
	case resp.StatusCode >= 400 || !env.Success:
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
