package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/directory"
	"github.com/go-authgate/ldapauth/internal/metrics"
)

// StrategyName identifies the strategy in logs and metrics.
const StrategyName = "ldapauth"

// Failure kinds reported to the metrics recorder
const (
	failureMissingCredentials = "missing_credentials"
	failureRejected           = "rejected"
	failureCallback           = "callback"
)

// Directory call results reported to the metrics recorder
const (
	directoryMatch    = "match"
	directoryRejected = "rejected"
	directoryError    = "error"
)

// Strategy authenticates login requests against a directory. It holds no
// per-attempt state and is safe for concurrent use.
type Strategy struct {
	opts     Options
	verifier core.Verifier
	callback Callback
	recorder core.Recorder
}

// New builds a Strategy. cb may be nil; otherwise its shape must match
// opts.PassReqToCallback.
func New(opts *Options, cb Callback) (*Strategy, error) {
	if opts == nil {
		return nil, ErrMissingOptions
	}
	o := opts.withDefaults()

	if cb != nil && cb.withRequest() != o.PassReqToCallback {
		if o.PassReqToCallback {
			return nil, fmt.Errorf(
				"%w: PassReqToCallback requires a VerifyRequestFunc",
				ErrInvalidConfig,
			)
		}
		return nil, fmt.Errorf(
			"%w: VerifyRequestFunc requires PassReqToCallback",
			ErrInvalidConfig,
		)
	}

	verifier := o.Verifier
	if verifier == nil {
		v, err := directory.NewLDAPVerifier(o.Server)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		verifier = v
	}

	recorder := o.Recorder
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}

	return &Strategy{
		opts:     o,
		verifier: verifier,
		callback: cb,
		recorder: recorder,
	}, nil
}

// Name returns strategy name for logging
func (s *Strategy) Name() string {
	return StrategyName
}

// Authenticate runs one login attempt. Every problem met during the attempt
// is reported through the Result.
func (s *Strategy) Authenticate(ctx context.Context, req *Request) Result {
	start := time.Now()

	username, result := s.authenticate(ctx, req)

	s.recorder.RecordAuthAttempt(StrategyName, result.Outcome.String(), time.Since(start))
	s.logAttempt(req, username, result)

	return result
}

func (s *Strategy) authenticate(ctx context.Context, req *Request) (string, Result) {
	creds, ok := extractCredentials(req, s.opts.UsernameField, s.opts.PasswordField)
	if !ok {
		s.recorder.RecordAuthFailure(failureMissingCredentials)
		return "", fail(ReasonMissingCredentials)
	}

	user, err := s.verify(ctx, creds)
	if err != nil {
		if errors.Is(err, core.ErrRejected) {
			s.recorder.RecordAuthFailure(failureRejected)
			return creds.Username, fail(core.RejectionReason(err))
		}
		return creds.Username, failure(err)
	}

	if s.callback == nil {
		return creds.Username, success(user)
	}

	user, info, err := s.runCallback(ctx, req, user)
	switch {
	case err != nil:
		return creds.Username, failure(err)
	case user == nil:
		if info == "" {
			info = ReasonUnauthorized
		}
		s.recorder.RecordAuthFailure(failureCallback)
		return creds.Username, fail(info)
	default:
		return creds.Username, success(user)
	}
}

func (s *Strategy) verify(ctx context.Context, creds Credentials) (*core.User, error) {
	start := time.Now()
	user, err := s.verifier.Verify(ctx, creds.Username, creds.Password)

	result := directoryMatch
	switch {
	case err != nil && errors.Is(err, core.ErrRejected):
		result = directoryRejected
	case err != nil:
		result = directoryError
	case user == nil:
		// A verifier must return a user or an error.
		result = directoryError
		err = fmt.Errorf("verifier %s returned no user", s.verifier.Name())
	}
	s.recorder.RecordDirectoryCall(s.verifier.Name(), result, time.Since(start))

	return user, err
}

func (s *Strategy) runCallback(
	ctx context.Context,
	req *Request,
	user *core.User,
) (out *core.User, info string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, info, err = nil, "", fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()

	if req.Locals == nil {
		req.Locals = make(map[string]any)
	}
	return s.callback.call(ctx, req, user)
}

func (s *Strategy) logAttempt(req *Request, username string, result Result) {
	requestID := req.RequestID()

	switch result.Outcome {
	case OutcomeSuccess:
		log.Printf("[%s] login succeeded: user=%q request_id=%s",
			StrategyName, result.User.Username, requestID)
	case OutcomeFail:
		log.Printf("[%s] login failed: user=%q reason=%q request_id=%s",
			StrategyName, username, result.Reason, requestID)
	default:
		log.Printf("[%s] login error: user=%q verifier=%s err=%v request_id=%s",
			StrategyName, username, s.verifier.Name(), result.Err, requestID)
	}
}
