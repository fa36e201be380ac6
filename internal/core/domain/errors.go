package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLoginFailed           = errors.New("login did not yield a credential")
	ErrUnauthorized          = errors.New("credential rejected by remote")
	ErrPaginationInterrupted = errors.New("respondent pagination interrupted")
	ErrConfigMissingField    = errors.New("identity is missing a required field")
	ErrNoValidReader         = errors.New("no identity could list channel items")
	ErrPollNotFound          = errors.New("poll not found")
	ErrIdentityNotFound      = errors.New("identity not found")
)

// HTTPError is a non-success response from the remote API that is not an
// authorization failure.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Body)
}

// VoteRejectedError is returned when a vote submission does not come back
// with 204 No Content.
type VoteRejectedError struct {
	StatusCode int
	Body       string
}

func (e *VoteRejectedError) Error() string {
	return fmt.Sprintf("vote rejected with status %d: %s", e.StatusCode, e.Body)
}
