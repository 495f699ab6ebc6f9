package auth

import (
	"context"

	"github.com/go-authgate/ldapauth/internal/core"
)

// Callback post-processes a directory match. It is either a VerifyFunc or a
// VerifyRequestFunc; which one a Strategy accepts is decided by
// Options.PassReqToCallback.
//
// A callback returns the user to sign in, or a nil user and an optional
// reason to refuse the attempt. A non-nil error aborts the attempt.
type Callback interface {
	call(ctx context.Context, req *Request, user *core.User) (*core.User, string, error)
	withRequest() bool
}

// VerifyFunc is a callback that only sees the directory record.
type VerifyFunc func(ctx context.Context, user *core.User) (*core.User, string, error)

func (f VerifyFunc) call(
	ctx context.Context,
	_ *Request,
	user *core.User,
) (*core.User, string, error) {
	return f(ctx, user)
}

func (VerifyFunc) withRequest() bool { return false }

// VerifyRequestFunc is a callback that also receives the login request.
type VerifyRequestFunc func(
	ctx context.Context,
	req *Request,
	user *core.User,
) (*core.User, string, error)

func (f VerifyRequestFunc) call(
	ctx context.Context,
	req *Request,
	user *core.User,
) (*core.User, string, error) {
	return f(ctx, req, user)
}

func (VerifyRequestFunc) withRequest() bool { return true }
