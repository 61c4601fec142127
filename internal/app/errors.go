package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errValidation(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION", message, details)
}

func errNotAuthenticated() *DomainError {
	return domainError(http.StatusUnauthorized, "NOT_AUTHENTICATED", "Not authenticated", nil)
}

func errNotAuthorized() *DomainError {
	return domainError(http.StatusForbidden, "NOT_AUTHORIZED", "Not authorized", nil)
}

// errSubmissionRejected is the generic refusal for full and mute bans. It
// carries no ban metadata.
func errSubmissionRejected() *DomainError {
	return domainError(http.StatusForbidden, "SUBMISSION_REJECTED", "Submission rejected", nil)
}

// errProhibitedContent is the gate rejection. Matched terms are never echoed
// back.
func errProhibitedContent() *DomainError {
	return domainError(http.StatusBadRequest, "PROHIBITED_CONTENT", "Submission contains prohibited content", nil)
}

func errNotFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func errArchiveUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archiving is not configured on this deployment", nil)
}
