package auth

import (
	"net/http"

	"github.com/go-authgate/ldapauth/internal/core"
)

// External messages. Every refusal looks the same to the client.
const (
	FailureMessage = "Invalid username or password"
	ErrorMessage   = "Authentication service unavailable"
)

// Internal failure reasons
const (
	ReasonMissingCredentials = "missing credentials"
	ReasonUnauthorized       = "Unauthorized"
)

// Outcome is the terminal state of an attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFail
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Authenticate call.
type Result struct {
	Outcome Outcome
	User    *core.User
	// Message is safe to show to the client.
	Message string
	// Reason explains a Fail for logs. Never send it to the client.
	Reason string
	Status int
	Err    error
}

func success(user *core.User) Result {
	return Result{
		Outcome: OutcomeSuccess,
		User:    user,
		Status:  http.StatusOK,
	}
}

func fail(reason string) Result {
	return Result{
		Outcome: OutcomeFail,
		Message: FailureMessage,
		Reason:  reason,
		Status:  http.StatusUnauthorized,
	}
}

func failure(err error) Result {
	return Result{
		Outcome: OutcomeError,
		Message: ErrorMessage,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}
