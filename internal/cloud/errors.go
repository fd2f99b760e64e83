package cloud

import (
	"errors"
	"fmt"
)

// Cloud client errors.
var (
	// ErrNoCredentials is returned when the token or secret is missing.
	ErrNoCredentials = errors.New("cloud: missing credentials")

	// ErrTransport wraps network failures and undecodable responses.
	ErrTransport = errors.New("cloud: transport error")

	// ErrStatus matches every *StatusError.
	ErrStatus = errors.New("cloud: unsuccessful status")
)

// StatusError is returned when either status code is outside the success
// family.
type StatusError struct {
	HTTPStatus int
	BodyStatus int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloud: status http=%d body=%d: %s", e.HTTPStatus, e.BodyStatus, e.Message)
}

// Is lets errors.Is(err, ErrStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Codes returns both status codes for classification.
func (e *StatusError) Codes() []int {
	return []int{e.HTTPStatus, e.BodyStatus}
}
