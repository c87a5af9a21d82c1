package event

// Type identifies the type of domain event
type Type string

const (
	// TypeTransitionApplied is emitted after every committed transition
	TypeTransitionApplied Type = "transition.applied"
	// TypeDocumentTerminal is emitted when a transition lands in a terminal state
	TypeDocumentTerminal Type = "document.terminal"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTransitionApplied, TypeDocumentTerminal:
		return true
	default:
		return false
	}
}
