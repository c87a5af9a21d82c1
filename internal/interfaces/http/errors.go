package http

import (
	"net/http"

	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Reason codes produced by the HTTP layer itself
const (
	ReasonInvalidRequest = "InvalidRequest"
	ReasonDocumentExists = "DocumentExists"
)

// StatusForReason maps an engine reason code to an HTTP status
func StatusForReason(code domainwf.ReasonCode) int {
	switch code {
	case domainwf.ReasonNone:
		return http.StatusOK
	case domainwf.ReasonDocumentNotFound:
		return http.StatusNotFound
	case domainwf.ReasonVersionConflict, domainwf.ReasonNoSuchTransition:
		return http.StatusConflict
	case domainwf.ReasonRoleNotAuthorized:
		return http.StatusForbidden
	case domainwf.ReasonGuardNotSatisfied:
		return http.StatusUnprocessableEntity
	case domainwf.ReasonAmbiguousTransition:
		return http.StatusInternalServerError
	case domainwf.ReasonCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}
