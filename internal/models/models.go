// Package models defines the core data structures for DossierPipe.
//
// It includes answer values, profiles, document descriptions, persisted flow
// state and the API response envelope shared across modules.
package models

import (
	"errors"
)

// Error variables for the flow, assembly and enrichment error taxonomy.
var (
	// ErrInvalidFlowState means the step index or flow type does not match the catalog.
	ErrInvalidFlowState = errors.New("invalid flow state")
	// ErrMissingAnswer means a required question received an empty value.
	ErrMissingAnswer = errors.New("missing answer")
	// ErrInvalidAnswerType means the value does not fit the question type or options.
	ErrInvalidAnswerType = errors.New("invalid answer type")
	// ErrUnknownType means no template or catalog is registered for a document or guide type.
	ErrUnknownType = errors.New("unknown document or guide type")
	// ErrEnrichmentUnavailable means the text-generation service could not be reached in time.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
	// ErrEnrichmentParseIncomplete means a generated response lacked expected anchors.
	ErrEnrichmentParseIncomplete = errors.New("enrichment response incomplete")
	// ErrNotFound means a persisted record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTicketClosed means a reply was posted to a closed support ticket.
	ErrTicketClosed = errors.New("ticket is closed")
	// ErrEmptyMessage means a support message body was empty.
	ErrEmptyMessage = errors.New("message body cannot be empty")
)

// IsValidationError reports whether err is a user-input validation failure
// that is handled by re-prompting the same step.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingAnswer) || errors.Is(err, ErrInvalidAnswerType)
}

// IsRetryable reports whether the same step can be retried without
// restarting the flow.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return IsValidationError(err) || errors.Is(err, ErrEnrichmentUnavailable)
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRetry indicates the input was rejected and the same step should be answered again.
	APIStatusRetry APIStatus = "retry"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status    string      `json:"status"`              // status of the API response
	Message   string      `json:"message,omitempty"`   // optional message for error responses or additional info
	Retryable bool        `json:"retryable,omitempty"` // set when the caller may retry the same request
	Result    interface{} `json:"result,omitempty"`    // optional result data
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithRetryable marks the response as retryable.
func (b *APIResponseBuilder) WithRetryable(retryable bool) *APIResponseBuilder {
	b.response.Retryable = retryable
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// RetryableError creates an error API response the caller may retry unchanged.
func RetryableError(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		WithRetryable(true).
		Build()
}

// Retry creates a response asking the caller to answer the same step again.
// The result carries the re-emitted prompt.
func Retry(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRetry).
		WithMessage(message).
		WithRetryable(true).
		WithResult(result).
		Build()
}
