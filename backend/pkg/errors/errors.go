package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeRequest represents malformed or invalid client requests
	ErrorTypeRequest ErrorType = "request"
	// ErrorTypeNotFound represents references to absent records
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeActivity represents relational store errors
	ErrorTypeActivity ErrorType = "activity"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Request errors

// NewBadRequest wraps a failure as a client-request error. Both the
// mutation coordinator and the feed aggregator surface every failure,
// including store failures, in this class.
func NewBadRequest(message string, err error) *BaseError {
	return NewBaseError(ErrorTypeRequest, message, err)
}

// ErrMissingUserID is returned when a feed request omits the user id
var ErrMissingUserID = NewBaseError(ErrorTypeRequest, "userId is required", nil)

// ErrUnknownFeedType is returned for a feed type outside recommend|hottest|newest
type ErrUnknownFeedType struct {
	*BaseError
	FeedType string
}

func NewUnknownFeedType(feedType string) *ErrUnknownFeedType {
	return &ErrUnknownFeedType{
		BaseError: NewBaseError(ErrorTypeRequest, fmt.Sprintf("unknown feed type: %q", feedType), nil),
		FeedType:  feedType,
	}
}

// ErrMalformedBatch is returned when a mutation batch fails validation
// before any store call is issued
type ErrMalformedBatch struct {
	*BaseError
	Index int // position of the offending operation in the batch
}

func NewMalformedBatch(index int, reason string) *ErrMalformedBatch {
	return &ErrMalformedBatch{
		BaseError: NewBaseError(ErrorTypeRequest, fmt.Sprintf("operation %d: %s", index, reason), nil),
		Index:     index,
	}
}

// NotFound errors

// ErrUserNotFound is returned when the requesting user has no record
type ErrUserNotFound struct {
	*BaseError
	UserID string
}

func NewUserNotFound(userID string) *ErrUserNotFound {
	return &ErrUserNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("user not found: %s", userID), nil),
		UserID:    userID,
	}
}

// ErrAssociationNotFound is returned when a topic/medium association is absent
type ErrAssociationNotFound struct {
	*BaseError
	TopicID  string
	MediumID string
}

func NewAssociationNotFound(topicID, mediumID string) *ErrAssociationNotFound {
	return &ErrAssociationNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("association not found: topic %s, medium %s", topicID, mediumID), nil),
		TopicID:   topicID,
		MediumID:  mediumID,
	}
}

// Graph errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Activity errors

// ErrActivityQueryFailed is returned when a relational query fails
type ErrActivityQueryFailed struct {
	*BaseError
	Operation string
}

func NewActivityQueryFailed(operation string, err error) *ErrActivityQueryFailed {
	return &ErrActivityQueryFailed{
		BaseError: NewBaseError(ErrorTypeActivity, fmt.Sprintf("activity store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Config errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	if typed, ok := err.(interface{ Base() *BaseError }); ok {
		return typed.Base().Type == errType
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapped.Unwrap(); inner != nil {
			return IsErrorType(inner, errType)
		}
	}
	return false
}

// Base exposes the embedded BaseError on typed errors so IsErrorType can
// classify them without enumerating every concrete type.
func (e *ErrUnknownFeedType) Base() *BaseError      { return e.BaseError }
func (e *ErrMalformedBatch) Base() *BaseError       { return e.BaseError }
func (e *ErrUserNotFound) Base() *BaseError         { return e.BaseError }
func (e *ErrAssociationNotFound) Base() *BaseError  { return e.BaseError }
func (e *ErrGraphConnectionFailed) Base() *BaseError { return e.BaseError }
func (e *ErrGraphQueryFailed) Base() *BaseError     { return e.BaseError }
func (e *ErrActivityQueryFailed) Base() *BaseError  { return e.BaseError }
func (e *ErrConfigMissingRequired) Base() *BaseError { return e.BaseError }

// HTTPStatus maps an error to the response status class: request errors
// map to 400, missing records to 404, everything else to 500.
func HTTPStatus(err error) int {
	switch {
	case IsErrorType(err, ErrorTypeRequest):
		return http.StatusBadRequest
	case IsErrorType(err, ErrorTypeNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
