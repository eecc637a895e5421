package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrForbidden          = fmt.Errorf("access denied")
	ErrOwnChat            = fmt.Errorf("cannot connect to own chat")
	ErrChatUnavailable    = fmt.Errorf("chat already has a receiver")
	ErrNoPartner          = fmt.Errorf("no partner connected")
	ErrKeyNotFound        = fmt.Errorf("public key not found")
	ErrInvalidContent     = fmt.Errorf("invalid message content")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// HTTPStatus maps a domain error to the status code of the external
// contract. Retriable conditions (storage outage, lost connect race) are
// distinguishable from terminal ones by their code.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrChatNotFound),
		stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrKeyNotFound),
		stderrors.Is(err, ErrNoPartner):
		return http.StatusNotFound
	case stderrors.Is(err, ErrForbidden),
		stderrors.Is(err, ErrOwnChat):
		return http.StatusForbidden
	case stderrors.Is(err, ErrChatUnavailable),
		stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrInvalidContent),
		stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
