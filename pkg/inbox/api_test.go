package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSendMessageRejectsEmptyBodyWithoutNetworkCall(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	api := NewClient(server.URL, "token")

	if _, err := api.SendMessage(context.Background(), 7, "   ", PriorityLow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := api.SendMessage(context.Background(), 0, "hello", PriorityLow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing recipient, got %v", err)
	}

	if atomic.LoadInt32(&requests) != 0 {
		t.Fatalf("invalid input must not reach the network, saw %d requests", requests)
	}
}

func TestSendMessageCarriesBearerCredential(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"message":{"id":1,"sender_id":42,"recipient_id":7,"content":"hello"}}}`))
	}))
	defer server.Close()

	api := NewClient(server.URL, "tok-123")

	message, err := api.SendMessage(context.Background(), 7, "hello", PriorityLow)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.ID != 1 {
		t.Fatalf("expected stored message back, got %+v", message)
	}
	if authHeader != "Bearer tok-123" {
		t.Fatalf("expected bearer credential, got %q", authHeader)
	}
}

func TestSendWorkoutMissedAlertPostsExpectedBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"message":{"id":9,"message_type":"alert","priority":"high"}}}`))
	}))
	defer server.Close()

	api := NewClient(server.URL, "token")

	alert, err := api.SendWorkoutMissedAlert(context.Background(), 123, nil, "Faltou ao treino de 10/05", PriorityHigh)
	if err != nil {
		t.Fatalf("SendWorkoutMissedAlert: %v", err)
	}
	if alert.ID != 9 {
		t.Fatalf("expected created alert, got %+v", alert)
	}

	if gotPath != "/messages/alert/workout-missed" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["clientId"] != float64(123) {
		t.Errorf("expected clientId 123, got %v", gotBody["clientId"])
	}
	if gotBody["message"] != "Faltou ao treino de 10/05" {
		t.Errorf("unexpected message %v", gotBody["message"])
	}
	if gotBody["priority"] != "high" {
		t.Errorf("expected priority high, got %v", gotBody["priority"])
	}
	if _, present := gotBody["workoutLogId"]; present {
		t.Errorf("nil workout log ref must be omitted, got %v", gotBody["workoutLogId"])
	}
}

func TestUnauthorizedSurfacesAsErrUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid or expired token"}`))
	}))
	defer server.Close()

	api := NewClient(server.URL, "expired")

	if _, err := api.Conversations(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestForbiddenSurfacesAsErrForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"message":"Forbidden"}`))
	}))
	defer server.Close()

	api := NewClient(server.URL, "token")

	if _, err := api.SendWorkoutMissedAlert(context.Background(), 5, nil, "msg", PriorityHigh); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUnreadCountFiltersBySender(t *testing.T) {
	var gotSender string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSender = r.URL.Query().Get("senderId")
		_, _ = w.Write([]byte(`{"success":true,"data":{"unreadCount":3}}`))
	}))
	defer server.Close()

	api := NewClient(server.URL, "token")

	senderID := int64(7)
	count, err := api.UnreadCount(context.Background(), &senderID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
	if gotSender != "7" {
		t.Fatalf("expected senderId filter, got %q", gotSender)
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid request"}`))
	}))
	defer server.Close()

	api := NewClient(server.URL, "token")

	_, err := api.Conversation(context.Background(), 7, 1, 20)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Invalid request" {
		t.Fatalf("unexpected apiErr %+v", apiErr)
	}
}
