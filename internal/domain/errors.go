package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeConnection       = "CONNECTION_ERROR"
	ErrCodeParse            = "PARSE_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidSourceType     = NewDomainError(ErrCodeValidation, "invalid source type")
	ErrInvalidLinkKind       = NewDomainError(ErrCodeValidation, "invalid link kind")
	ErrInvalidValidity       = NewDomainError(ErrCodeValidation, "invalid assumption validity")
	ErrInvalidEnrichmentJob  = NewDomainError(ErrCodeValidation, "invalid enrichment job status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrConfidenceOutOfRange  = NewDomainError(ErrCodeValidation, "confidence must be between 0 and 1")
	ErrStrengthOutOfRange    = NewDomainError(ErrCodeValidation, "strength must be between 0 and 1")
	ErrSelfLink              = NewDomainError(ErrCodeValidation, "fragment cannot link to itself")
)

// Not found errors
var (
	ErrFragmentNotFound      = NewDomainError(ErrCodeNotFound, "fragment not found")
	ErrDecisionNotFound      = NewDomainError(ErrCodeNotFound, "decision not found")
	ErrAssumptionNotFound    = NewDomainError(ErrCodeNotFound, "assumption not found")
	ErrLinkNotFound          = NewDomainError(ErrCodeNotFound, "fragment link not found")
	ErrEnrichmentJobNotFound = NewDomainError(ErrCodeNotFound, "enrichment job not found")
)

// Already exists errors
var (
	ErrFragmentAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "fragment already exists")
)

// Operation errors
var (
	ErrValidityFinal = NewDomainError(ErrCodeInvalidOperation, "assumption validity is final and cannot change")
)

// Provider errors
var (
	ErrProviderUnavailable = NewDomainError(ErrCodeConnection, "provider unreachable")
	ErrMalformedOutput     = NewDomainError(ErrCodeParse, "malformed provider output")
)
