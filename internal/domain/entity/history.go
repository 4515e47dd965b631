package entity

import "time"

// TransitionHistory is the audit trail of one applied workflow transition
type TransitionHistory struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	ActorID        string    `json:"actor_id"`
	ActorName      string    `json:"actor_name"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	PreviousGroup  string    `json:"previous_group"`
	NewGroup       string    `json:"new_group"`
	ActionType     string    `json:"action_type"`
	Comment        string    `json:"comment"`
	Timestamp      time.Time `json:"timestamp"`
}
