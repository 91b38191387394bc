package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func TooManyRequests(message string, waitTime interface{}) *AppError {
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     nil,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Chat precondition errors. Each is detected locally before any store
// access and carries its own code so callers can report the exact failed
// check instead of one generic send error.

func InvalidParticipants(message string) *AppError {
	return &AppError{
		Code:    "INVALID_PARTICIPANTS",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     nil,
	}
}

func SelfChatRejected() *AppError {
	return &AppError{
		Code:    "SELF_CHAT_REJECTED",
		Message: "You cannot chat with yourself",
		Status:  http.StatusBadRequest,
		Err:     nil,
	}
}

func NoConversationSelected() *AppError {
	return &AppError{
		Code:    "NO_CONVERSATION_SELECTED",
		Message: "No conversation is selected",
		Status:  http.StatusBadRequest,
		Err:     nil,
	}
}

func NotAuthenticated() *AppError {
	return &AppError{
		Code:    "NOT_AUTHENTICATED",
		Message: "You must be signed in to chat",
		Status:  http.StatusUnauthorized,
		Err:     nil,
	}
}

func ProfileNotLoaded() *AppError {
	return &AppError{
		Code:    "PROFILE_NOT_LOADED",
		Message: "Your profile is not loaded yet",
		Status:  http.StatusConflict,
		Err:     nil,
	}
}

func NoPartnerSelected() *AppError {
	return &AppError{
		Code:    "NO_PARTNER_SELECTED",
		Message: "No chat partner is selected",
		Status:  http.StatusBadRequest,
		Err:     nil,
	}
}
