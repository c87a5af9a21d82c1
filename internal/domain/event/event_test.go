package event

import (
	"testing"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{name: "transition applied", eventType: TypeTransitionApplied, want: "transition.applied"},
		{name: "document terminal", eventType: TypeDocumentTerminal, want: "document.terminal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsValid(t *testing.T) {
	if !TypeTransitionApplied.IsValid() || !TypeDocumentTerminal.IsValid() {
		t.Error("defined types should be valid")
	}
	if Type("instance.created").IsValid() {
		t.Error("undefined type should be invalid")
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TypeTransitionApplied, "vendor_invoice", "inv-1", map[string]interface{}{
		KeyFromState: "pending",
		KeyVersion:   int64(1),
	})

	if e.ID == "" || e.CorrelationID == "" {
		t.Fatal("NewEvent() should generate ID and correlation ID")
	}
	if e.ID == e.CorrelationID {
		t.Error("ID and correlation ID should differ")
	}
	if e.Timestamp.IsZero() {
		t.Error("NewEvent() should set timestamp")
	}
	if got := e.GetPayloadString(KeyFromState); got != "pending" {
		t.Errorf("GetPayloadString() = %v", got)
	}
	if got := e.GetPayloadInt(KeyVersion); got != 1 {
		t.Errorf("GetPayloadInt() = %v", got)
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	e := NewEventWithCorrelation(TypeDocumentTerminal, "profile_change", "p-1", nil, "corr-1")
	if e.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %v, want corr-1", e.CorrelationID)
	}
	if e.Payload == nil {
		t.Error("nil payload should be replaced with an empty map")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeTransitionApplied, "vendor_invoice", "inv-1", map[string]interface{}{KeyToState: "paid"})
	updated := original.WithPayload(KeyActorID, "u-1")

	if _, ok := original.Payload[KeyActorID]; ok {
		t.Error("WithPayload() mutated the original event")
	}
	if updated.GetPayloadString(KeyActorID) != "u-1" || updated.GetPayloadString(KeyToState) != "paid" {
		t.Errorf("WithPayload() payload = %v", updated.Payload)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload() should keep the event ID")
	}
}

func TestEvent_GetPayloadStrings(t *testing.T) {
	e := NewEvent(TypeTransitionApplied, "d", "1", map[string]interface{}{
		"a": []string{"admin", "hr"},
		"b": []interface{}{"accounting", 3},
	})

	if got := e.GetPayloadStrings("a"); len(got) != 2 || got[1] != "hr" {
		t.Errorf("GetPayloadStrings(a) = %v", got)
	}
	if got := e.GetPayloadStrings("b"); len(got) != 1 || got[0] != "accounting" {
		t.Errorf("GetPayloadStrings(b) = %v", got)
	}
	if got := e.GetPayloadStrings("missing"); got != nil {
		t.Errorf("GetPayloadStrings(missing) = %v", got)
	}
}
