package core

import (
	"context"
	"errors"
)

// ErrRejected marks a verification that reached the directory and was
// refused: unknown user, wrong password, disabled account.
var ErrRejected = errors.New("credentials rejected")

// RejectionError carries the directory's reason for refusing credentials.
// The reason is meant for logs only; callers must not surface it to clients.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return ErrRejected.Error()
	}
	return ErrRejected.Error() + ": " + e.Reason
}

// Is reports whether target is ErrRejected.
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Reject builds a rejection with the given reason.
func Reject(reason string) error {
	return &RejectionError{Reason: reason}
}

// RejectionReason returns the reason of a rejection error, or "" when err is
// not a rejection.
func RejectionReason(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// User is a directory record returned by a successful verification.
type User struct {
	Username   string              `json:"username"`
	DN         string              `json:"dn,omitempty"` // LDAP DN or external API user ID
	Email      string              `json:"email,omitempty"`
	FullName   string              `json:"full_name,omitempty"`
	Groups     []string            `json:"groups,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Verifier is the interface that directory backends must implement.
//
// Verify returns the matching user on success. A refused credential pair is
// reported as an error wrapping ErrRejected; any other error means the
// directory could not answer. Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (*User, error)
	Name() string
}
