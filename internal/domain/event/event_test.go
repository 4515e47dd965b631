package event

import (
	"testing"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"record saved", TypeRecordSaved, true},
		{"status changed", TypeStatusChanged, true},
		{"status reverted", TypeStatusReverted, true},
		{"rules changed", TypeRulesChanged, true},
		{"unknown", Type("ticket.deleted"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TypeRecordSaved, "1001", nil)

	if e.ID == "" {
		t.Error("ID should be generated")
	}
	if e.CorrelationID == "" || e.CorrelationID == e.ID {
		t.Errorf("CorrelationID = %q, want a distinct generated id", e.CorrelationID)
	}
	if e.RequestID != "1001" {
		t.Errorf("RequestID = %q, want 1001", e.RequestID)
	}
	if e.Payload == nil {
		t.Error("Payload should be initialized")
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}

	other := NewEvent(TypeRecordSaved, "1001", nil)
	if other.ID == e.ID {
		t.Error("event IDs should be unique")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	e := NewEventWithCorrelation(TypeStatusChanged, "7", map[string]interface{}{KeyNewStatus: "approved"}, "corr-1")

	if e.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want corr-1", e.CorrelationID)
	}
	if got := e.GetPayloadString(KeyNewStatus); got != "approved" {
		t.Errorf("GetPayloadString() = %q", got)
	}
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	original := NewEvent(TypeStatusChanged, "7", map[string]interface{}{KeyLevel: 1})
	updated := original.WithPayload(KeyGroupID, "G2")

	if _, ok := original.Payload[KeyGroupID]; ok {
		t.Error("WithPayload() modified the original payload")
	}
	if updated.ID != original.ID || updated.CorrelationID != original.CorrelationID {
		t.Error("WithPayload() should keep identity fields")
	}
	if got := updated.GetPayloadString(KeyGroupID); got != "G2" {
		t.Errorf("GetPayloadString() = %q, want G2", got)
	}
	if got := updated.GetPayloadInt(KeyLevel); got != 1 {
		t.Errorf("GetPayloadInt() = %d, want 1", got)
	}
}

func TestEvent_PayloadGetters(t *testing.T) {
	e := NewEvent(TypeStatusChanged, "7", map[string]interface{}{
		"s":   "text",
		"i64": int64(3),
		"f":   float64(4),
		"b":   true,
		"bad": []int{1},
	})

	if got := e.GetPayloadString("s"); got != "text" {
		t.Errorf("GetPayloadString(s) = %q", got)
	}
	if got := e.GetPayloadString("bad"); got != "" {
		t.Errorf("GetPayloadString(bad) = %q, want empty", got)
	}
	if got := e.GetPayloadInt("i64"); got != 3 {
		t.Errorf("GetPayloadInt(i64) = %d", got)
	}
	if got := e.GetPayloadInt("f"); got != 4 {
		t.Errorf("GetPayloadInt(f) = %d", got)
	}
	if got := e.GetPayloadInt("missing"); got != 0 {
		t.Errorf("GetPayloadInt(missing) = %d", got)
	}
	if !e.GetPayloadBool("b") {
		t.Error("GetPayloadBool(b) = false")
	}
	if e.GetPayloadBool("s") {
		t.Error("GetPayloadBool(s) = true")
	}
}
