package sync

import (
	"context"
	"errors"

	"proctor-sync/internal/examity"
)

var (
	// ErrConfigurationMissing means the API client or credentials are absent.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrTokenUnavailable means credentials are set but the token request
	// failed (transport error or non-2xx answer).
	ErrTokenUnavailable = errors.New("token unavailable")
	// ErrValidationFailed means a required field was empty or malformed; no
	// request was sent.
	ErrValidationFailed = errors.New("validation failed")
)

const (
	EntityUser       = "user"
	EntityCourse     = "course"
	EntityEnrollment = "enrollment"
	EntityExam       = "exam"
)

type Outcome string

const (
	Created Outcome = "created"
	Exists  Outcome = "exists"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Result describes one synchronizer call.
type Result struct {
	Entity  string
	ID      string
	Outcome Outcome
	Err     error
}

// OK reports whether the remote entity is known to exist after the call.
func (r Result) OK() bool { return r.Outcome == Created || r.Outcome == Exists }

// API is the part of the remote client the synchronizers use.
type API interface {
	GetUserInfo(ctx context.Context, token, userID string) (*examity.UserInfoResponse, error)
	CreateUser(ctx context.Context, token string, u examity.User) error
	CreateCourse(ctx context.Context, token string, c examity.Course) error
	EnrollUser(ctx context.Context, token string, e examity.Enrollment) error
	CreateExam(ctx context.Context, token string, e examity.Exam) error
}

var _ API = (*examity.Client)(nil)

// ClientFunc returns the current API client, or an error when it cannot be
// built from the current configuration.
type ClientFunc func() (API, error)

// TokenSource hands out the bearer token; false means none is available.
type TokenSource interface {
	Get(ctx context.Context) (string, bool)
}

// configuredSource is implemented by token sources that can tell missing
// credentials apart from a failed fetch.
type configuredSource interface {
	Configured() bool
}
