package entity

import "time"

// Notification is a chat message sent for a workflow transition
type Notification struct {
	ID           int64      `json:"id"`
	RequestID    string     `json:"request_id"`
	EventID      string     `json:"event_id"`
	Channel      string     `json:"channel"`
	Message      string     `json:"message"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
