package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeLoginFailed        = "LOGIN_FAILED"
	textCodeSessionInvalidated = "SESSION_INVALIDATED"
	textCodeInvalidLoginInput  = "INVALID_LOGIN_INPUT"
	textCodeRemoteFailure      = "REMOTE_FAILURE"

	metadataDetail = "detail"
	metadataStatus = "status"
)

// ErrLoginFailed is the generic credential rejection, used when the remote
// side gave no detail.
var ErrLoginFailed = goerrors.New("Login failed", goerrors.CategoryAuth).
	WithTextCode(textCodeLoginFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionInvalidated is returned when a profile fetch forced a logout.
var ErrSessionInvalidated = goerrors.New("session is no longer valid", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionInvalidated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidLoginInput is returned when username or password are missing.
var ErrInvalidLoginInput = goerrors.New("username and password are required", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidLoginInput).
	WithCode(goerrors.CodeBadRequest)

// NewRemoteError describes a failed remote call. detail is the human
// readable message the server sent, if any.
func NewRemoteError(status int, detail string, cause error) *goerrors.Error {
	message := detail
	if message == "" {
		message = "remote request failed"
	}

	err := goerrors.New(message, goerrors.CategoryAuth)
	if cause != nil {
		err.Source = cause
	}

	if status > 0 {
		err = err.WithCode(status)
	}

	return err.
		WithTextCode(textCodeRemoteFailure).
		WithMetadata(map[string]any{
			metadataDetail: detail,
			metadataStatus: status,
		})
}

// RemoteDetail returns the server supplied message carried by err, or an
// empty string.
func RemoteDetail(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return ""
	}
	detail, _ := richErr.Metadata[metadataDetail].(string)
	return detail
}

// RemoteStatus returns the HTTP status carried by a remote error, or 0.
func RemoteStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return 0
	}
	status, _ := richErr.Metadata[metadataStatus].(int)
	return status
}

// ErrorMessage is the text a login form should show for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

// IsLoginFailed reports whether err is a rejected login
func IsLoginFailed(err error) bool {
	return hasTextCode(err, textCodeLoginFailed)
}

// IsSessionInvalidated reports whether err means the session was dropped
func IsSessionInvalidated(err error) bool {
	return hasTextCode(err, textCodeSessionInvalidated)
}

// IsInvalidLoginInput reports whether err is a login validation failure
func IsInvalidLoginInput(err error) bool {
	return hasTextCode(err, textCodeInvalidLoginInput)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == code
}

func loginError(cause error) error {
	message := RemoteDetail(cause)
	if message == "" {
		message = ErrLoginFailed.Message
	}

	return withSource(
		goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(textCodeLoginFailed).
			WithCode(goerrors.CodeUnauthorized),
		cause,
	)
}

func invalidatedError(cause error) error {
	if cause == nil {
		return ErrSessionInvalidated
	}
	return withSource(
		goerrors.New(ErrSessionInvalidated.Message, goerrors.CategoryAuth).
			WithTextCode(textCodeSessionInvalidated).
			WithCode(goerrors.CodeUnauthorized),
		cause,
	)
}

func invalidInputError(cause error) error {
	message := ErrInvalidLoginInput.Message
	if cause != nil {
		message = cause.Error()
	}
	return withSource(
		goerrors.New(message, goerrors.CategoryValidation).
			WithTextCode(textCodeInvalidLoginInput).
			WithCode(goerrors.CodeBadRequest),
		cause,
	)
}

func withSource(err *goerrors.Error, cause error) *goerrors.Error {
	if cause != nil {
		err.Source = cause
	}
	return err
}
