package workflow

import (
	"errors"
	"fmt"
)

// ReasonCode is the stable identifier recorded on audit entries and returned to callers
type ReasonCode string

const (
	ReasonNone                ReasonCode = ""
	ReasonDocumentNotFound    ReasonCode = "DocumentNotFound"
	ReasonVersionConflict     ReasonCode = "VersionConflict"
	ReasonNoSuchTransition    ReasonCode = "NoSuchTransition"
	ReasonRoleNotAuthorized   ReasonCode = "RoleNotAuthorized"
	ReasonGuardNotSatisfied   ReasonCode = "GuardNotSatisfied"
	ReasonAmbiguousTransition ReasonCode = "AmbiguousTransition"
	ReasonStorageError        ReasonCode = "StorageError"
	ReasonCancelled           ReasonCode = "Cancelled"
)

// String returns the string representation of the reason code
func (r ReasonCode) String() string {
	return string(r)
}

var (
	// ErrDocumentNotFound is returned when no document exists for the given identifiers
	ErrDocumentNotFound = errors.New("document not found")

	// ErrVersionConflict is returned when the expected version is stale
	ErrVersionConflict = errors.New("version conflict")

	// ErrNoSuchTransition is returned when the table has no rule for the requested pair
	ErrNoSuchTransition = errors.New("no such transition")

	// ErrRoleNotAuthorized is returned when the actor's role may not trigger the transition
	ErrRoleNotAuthorized = errors.New("role not authorized")

	// ErrGuardNotSatisfied is returned when a named business guard is false or missing
	ErrGuardNotSatisfied = errors.New("guard not satisfied")

	// ErrAmbiguousTransition is returned when more than one rule matches a request
	ErrAmbiguousTransition = errors.New("ambiguous transition")

	// ErrStorage is returned when the document store or audit log fails
	ErrStorage = errors.New("storage error")

	// ErrCancelled is returned when the caller cancels before the write is issued
	ErrCancelled = errors.New("apply cancelled")

	// ErrDuplicateTransitionRule is a load-time configuration error
	ErrDuplicateTransitionRule = errors.New("duplicate transition rule")

	// ErrInvalidTable is returned when a transition table fails validation
	ErrInvalidTable = errors.New("invalid transition table")

	// ErrUnknownDocumentType is returned when no table is registered for a document type
	ErrUnknownDocumentType = errors.New("unknown document type")

	// ErrDocumentExists is returned when creating a document that is already registered
	ErrDocumentExists = errors.New("document already exists")
)

var reasonErrors = map[ReasonCode]error{
	ReasonDocumentNotFound:    ErrDocumentNotFound,
	ReasonVersionConflict:     ErrVersionConflict,
	ReasonNoSuchTransition:    ErrNoSuchTransition,
	ReasonRoleNotAuthorized:   ErrRoleNotAuthorized,
	ReasonGuardNotSatisfied:   ErrGuardNotSatisfied,
	ReasonAmbiguousTransition: ErrAmbiguousTransition,
	ReasonStorageError:        ErrStorage,
	ReasonCancelled:           ErrCancelled,
}

// reasonOrder is the match order used by ReasonOf; specific reasons before StorageError
var reasonOrder = []ReasonCode{
	ReasonDocumentNotFound,
	ReasonVersionConflict,
	ReasonNoSuchTransition,
	ReasonRoleNotAuthorized,
	ReasonGuardNotSatisfied,
	ReasonAmbiguousTransition,
	ReasonCancelled,
	ReasonStorageError,
}

// Error is the typed result returned by the engine for every failed apply
type Error struct {
	Code         ReasonCode
	DocumentType DocumentType
	DocumentID   string
	FromState    State
	ToState      State
	Err          error
}

// NewError creates a workflow error for a document
func NewError(code ReasonCode, docType DocumentType, docID string, err error) *Error {
	return &Error{
		Code:         code,
		DocumentType: docType,
		DocumentID:   docID,
		Err:          err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s/%s", e.Code, e.DocumentType, e.DocumentID)
	if e.FromState != "" || e.ToState != "" {
		msg += fmt.Sprintf(" (%s -> %s)", e.FromState, e.ToState)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason sentinel and the underlying cause to errors.Is
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := reasonErrors[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ReasonOf extracts the reason code from an error returned by the engine
func ReasonOf(err error) ReasonCode {
	if err == nil {
		return ReasonNone
	}

	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Code
	}

	for _, code := range reasonOrder {
		if errors.Is(err, reasonErrors[code]) {
			return code
		}
	}

	return ReasonStorageError
}

// IsSystemLevel reports whether the reason should page an operator when persistent
func (r ReasonCode) IsSystemLevel() bool {
	return r == ReasonAmbiguousTransition || r == ReasonStorageError
}
