package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/directory"
	"github.com/go-authgate/ldapauth/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var validUser = &core.User{
	Username: "valid",
	DN:       "uid=valid,ou=people,dc=example,dc=com",
	Email:    "valid@example.com",
}

// recordingRecorder counts recorder calls for assertions.
type recordingRecorder struct {
	mu        sync.Mutex
	attempts  map[string]int
	failures  map[string]int
	directory map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{
		attempts:  make(map[string]int),
		failures:  make(map[string]int),
		directory: make(map[string]int),
	}
}

func (r *recordingRecorder) RecordAuthAttempt(_, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[outcome]++
}

func (r *recordingRecorder) RecordAuthFailure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

func (r *recordingRecorder) RecordDirectoryCall(_, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directory[result]++
}

func (r *recordingRecorder) RecordRateLimited(string) {}

func newMockVerifier(t *testing.T) *mocks.MockVerifier {
	t.Helper()
	ctrl := gomock.NewController(t)
	v := mocks.NewMockVerifier(ctrl)
	v.EXPECT().Name().Return("mock").AnyTimes()
	return v
}

func newTestStrategy(t *testing.T, opts *Options, cb Callback) *Strategy {
	t.Helper()
	s, err := New(opts, cb)
	require.NoError(t, err)
	return s
}

func validLDAPConfig() *directory.LDAPConfig {
	return &directory.LDAPConfig{
		URL:             "ldap://localhost:1389",
		BindDN:          "cn=root",
		BindCredentials: "secret",
		SearchBase:      "ou=people,dc=example,dc=com",
		SearchFilter:    "(uid={{username}})",
	}
}

func credentialsRequest(username, password string) *Request {
	return NewRequest(map[string]string{"username": username, "password": password})
}

func TestNew_MissingOptions(t *testing.T) {
	noop := VerifyFunc(func(ctx context.Context, u *core.User) (*core.User, string, error) {
		return u, "", nil
	})

	for _, cb := range []Callback{nil, noop} {
		s, err := New(nil, cb)
		assert.Nil(t, s)
		require.ErrorIs(t, err, ErrMissingOptions)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestNew_InvalidServer(t *testing.T) {
	tests := []struct {
		name   string
		server *directory.LDAPConfig
	}{
		{"no server", nil},
		{"empty server", &directory.LDAPConfig{}},
		{"missing url", func() *directory.LDAPConfig {
			c := validLDAPConfig()
			c.URL = ""
			return c
		}()},
		{"missing search base", func() *directory.LDAPConfig {
			c := validLDAPConfig()
			c.SearchBase = ""
			return c
		}()},
		{"filter without placeholder", func() *directory.LDAPConfig {
			c := validLDAPConfig()
			c.SearchFilter = "(uid=valid)"
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&Options{Server: tt.server}, nil)
			assert.Nil(t, s)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorIs(t, err, directory.ErrInvalidConfig)
		})
	}
}

func TestNew_ValidServerBuildsLDAPVerifier(t *testing.T) {
	s := newTestStrategy(t, &Options{Server: validLDAPConfig()}, nil)
	assert.Equal(t, "ldap", s.verifier.Name())
	assert.Equal(t, StrategyName, s.Name())
}

func TestNew_CallbackShapeMismatch(t *testing.T) {
	plain := VerifyFunc(func(ctx context.Context, u *core.User) (*core.User, string, error) {
		return u, "", nil
	})
	withReq := VerifyRequestFunc(
		func(ctx context.Context, req *Request, u *core.User) (*core.User, string, error) {
			return u, "", nil
		},
	)
	v := newMockVerifier(t)

	_, err := New(&Options{Verifier: v, PassReqToCallback: true}, plain)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Options{Verifier: v}, withReq)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Options{Verifier: v, PassReqToCallback: true}, withReq)
	require.NoError(t, err)

	_, err = New(&Options{Verifier: v}, plain)
	require.NoError(t, err)
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"nil request", nil},
		{"nil body", &Request{}},
		{"empty body", NewRequest(map[string]string{})},
		{"missing password", NewRequest(map[string]string{"username": "valid"})},
		{"missing username", NewRequest(map[string]string{"password": "valid"})},
		{"empty username", credentialsRequest("", "valid")},
		{"empty password", credentialsRequest("valid", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No expectations: the verifier must not be called.
			v := newMockVerifier(t)
			rec := newRecordingRecorder()
			s := newTestStrategy(t, &Options{Verifier: v, Recorder: rec}, nil)

			result := s.Authenticate(context.Background(), tt.req)

			assert.Equal(t, OutcomeFail, result.Outcome)
			assert.Equal(t, http.StatusUnauthorized, result.Status)
			assert.Equal(t, FailureMessage, result.Message)
			assert.Equal(t, ReasonMissingCredentials, result.Reason)
			assert.Nil(t, result.User)
			assert.Equal(t, 1, rec.failures[failureMissingCredentials])
			assert.Equal(t, 1, rec.attempts["fail"])
		})
	}
}

func TestAuthenticate_Success(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(validUser, nil)
	rec := newRecordingRecorder()
	s := newTestStrategy(t, &Options{Verifier: v, Recorder: rec}, nil)

	result := s.Authenticate(context.Background(), credentialsRequest("valid", "valid"))

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Same(t, validUser, result.User)
	assert.NoError(t, result.Err)
	assert.Equal(t, 1, rec.attempts["success"])
	assert.Equal(t, 1, rec.directory[directoryMatch])
}

func TestAuthenticate_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		reason   string
	}{
		{"wrong password", "valid", "wrong", directory.ReasonInvalidPassword},
		{"unknown user", "ghost", "valid", directory.ReasonNoSuchUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newMockVerifier(t)
			v.EXPECT().
				Verify(gomock.Any(), tt.username, tt.password).
				Return(nil, core.Reject(tt.reason))
			rec := newRecordingRecorder()
			s := newTestStrategy(t, &Options{Verifier: v, Recorder: rec}, nil)

			result := s.Authenticate(context.Background(), credentialsRequest(tt.username, tt.password))
			missing := s.Authenticate(context.Background(), NewRequest(nil))

			assert.Equal(t, OutcomeFail, result.Outcome)
			assert.Equal(t, http.StatusUnauthorized, result.Status)
			assert.Equal(t, tt.reason, result.Reason)
			// Refusals are indistinguishable from the outside.
			assert.Equal(t, missing.Message, result.Message)
			assert.Equal(t, missing.Status, result.Status)
			assert.Equal(t, 1, rec.failures[failureRejected])
			assert.Equal(t, 1, rec.directory[directoryRejected])
		})
	}
}

func TestAuthenticate_VerifierError(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().
		Verify(gomock.Any(), "valid", "valid").
		Return(nil, fmt.Errorf("%w: connection refused", directory.ErrConnection))
	rec := newRecordingRecorder()
	s := newTestStrategy(t, &Options{Verifier: v, Recorder: rec}, nil)

	result := s.Authenticate(context.Background(), credentialsRequest("valid", "valid"))

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.ErrorIs(t, result.Err, directory.ErrConnection)
	assert.Nil(t, result.User)
	assert.Equal(t, 1, rec.attempts["error"])
	assert.Equal(t, 1, rec.directory[directoryError])
}

func TestAuthenticate_VerifierReturnsNoUser(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(nil, nil)
	s := newTestStrategy(t, &Options{Verifier: v}, nil)

	result := s.Authenticate(context.Background(), credentialsRequest("valid", "valid"))

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.Error(t, result.Err)
}

func TestAuthenticate_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := newMockVerifier(t)
	v.EXPECT().
		Verify(gomock.Any(), "valid", "valid").
		DoAndReturn(func(ctx context.Context, _, _ string) (*core.User, error) {
			return nil, fmt.Errorf("%w: %w", directory.ErrConnection, ctx.Err())
		})
	s := newTestStrategy(t, &Options{Verifier: v}, nil)

	result := s.Authenticate(ctx, credentialsRequest("valid", "valid"))

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestAuthenticate_Callback(t *testing.T) {
	replacement := &core.User{Username: "mapped"}
	cbErr := errors.New("account store down")

	tests := []struct {
		name       string
		cb         VerifyFunc
		wantOut    Outcome
		wantUser   *core.User
		wantReason string
		wantErr    error
	}{
		{
			name: "accepts directory user",
			cb: func(ctx context.Context, u *core.User) (*core.User, string, error) {
				return u, "", nil
			},
			wantOut:  OutcomeSuccess,
			wantUser: validUser,
		},
		{
			name: "replaces user",
			cb: func(ctx context.Context, u *core.User) (*core.User, string, error) {
				return replacement, "", nil
			},
			wantOut:  OutcomeSuccess,
			wantUser: replacement,
		},
		{
			name: "refuses with reason",
			cb: func(ctx context.Context, u *core.User) (*core.User, string, error) {
				return nil, "account disabled", nil
			},
			wantOut:    OutcomeFail,
			wantReason: "account disabled",
		},
		{
			name: "refuses without reason",
			cb: func(ctx context.Context, u *core.User) (*core.User, string, error) {
				return nil, "", nil
			},
			wantOut:    OutcomeFail,
			wantReason: ReasonUnauthorized,
		},
		{
			name: "errors",
			cb: func(ctx context.Context, u *core.User) (*core.User, string, error) {
				return nil, "", cbErr
			},
			wantOut: OutcomeError,
			wantErr: cbErr,
		},
		{
			name: "panics",
			cb: func(ctx context.Context, u *core.User) (*core.User, string, error) {
				panic("boom")
			},
			wantOut: OutcomeError,
			wantErr: ErrCallbackPanic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newMockVerifier(t)
			v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(validUser, nil)

			calls := 0
			cb := VerifyFunc(func(ctx context.Context, u *core.User) (*core.User, string, error) {
				calls++
				assert.Same(t, validUser, u)
				return tt.cb(ctx, u)
			})
			s := newTestStrategy(t, &Options{Verifier: v}, cb)

			result := s.Authenticate(context.Background(), credentialsRequest("valid", "valid"))

			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.wantOut, result.Outcome)
			assert.Same(t, tt.wantUser, result.User)
			assert.Equal(t, tt.wantReason, result.Reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, result.Err, tt.wantErr)
			}
			if tt.wantOut == OutcomeFail {
				assert.Equal(t, FailureMessage, result.Message)
				assert.Equal(t, http.StatusUnauthorized, result.Status)
			}
		})
	}
}

func TestAuthenticate_CallbackNotCalledOnRejection(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().
		Verify(gomock.Any(), "valid", "wrong").
		Return(nil, core.Reject(directory.ReasonInvalidPassword))

	cb := VerifyFunc(func(ctx context.Context, u *core.User) (*core.User, string, error) {
		t.Fatal("callback must not run without a directory match")
		return nil, "", nil
	})
	s := newTestStrategy(t, &Options{Verifier: v}, cb)

	result := s.Authenticate(context.Background(), credentialsRequest("valid", "wrong"))
	assert.Equal(t, OutcomeFail, result.Outcome)
}

func TestAuthenticate_PassReqToCallback(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(validUser, nil)

	req := &Request{Body: map[string]string{"username": "valid", "password": "valid"}}

	var seen *Request
	cb := VerifyRequestFunc(
		func(ctx context.Context, r *Request, u *core.User) (*core.User, string, error) {
			seen = r
			r.Locals["seen"] = true
			return u, "", nil
		},
	)
	s := newTestStrategy(t, &Options{Verifier: v, PassReqToCallback: true}, cb)

	result := s.Authenticate(context.Background(), req)

	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Same(t, req, seen)
	assert.Equal(t, true, req.Locals["seen"])
}

func TestAuthenticate_RenamedFields(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(validUser, nil)
	s := newTestStrategy(t, &Options{
		Verifier:      v,
		UsernameField: "ldapuname",
		PasswordField: "ldappwd",
	}, nil)

	// The default field names are no longer read.
	result := s.Authenticate(context.Background(), credentialsRequest("valid", "valid"))
	assert.Equal(t, OutcomeFail, result.Outcome)
	assert.Equal(t, ReasonMissingCredentials, result.Reason)

	result = s.Authenticate(context.Background(), NewRequest(map[string]string{
		"ldapuname": "valid",
		"ldappwd":   "valid",
	}))
	assert.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestAuthenticate_OptionsCopied(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(validUser, nil)

	opts := &Options{Verifier: v}
	s := newTestStrategy(t, opts, nil)
	opts.UsernameField = "other"

	result := s.Authenticate(context.Background(), credentialsRequest("valid", "valid"))
	assert.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestAuthenticate_Idempotent(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().Verify(gomock.Any(), "valid", "valid").Return(validUser, nil).Times(2)
	s := newTestStrategy(t, &Options{Verifier: v}, nil)

	req := credentialsRequest("valid", "valid")
	first := s.Authenticate(context.Background(), req)
	second := s.Authenticate(context.Background(), req)

	assert.Equal(t, first, second)
}

func TestAuthenticate_Concurrent(t *testing.T) {
	v := newMockVerifier(t)
	v.EXPECT().
		Verify(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, username, password string) (*core.User, error) {
			if password != username {
				return nil, core.Reject(directory.ReasonInvalidPassword)
			}
			return &core.User{Username: username}, nil
		}).
		AnyTimes()
	rec := newRecordingRecorder()
	s := newTestStrategy(t, &Options{Verifier: v, Recorder: rec}, nil)

	const workers = 50
	var wg sync.WaitGroup
	results := make([]Result, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			username := fmt.Sprintf("user%d", i)
			password := username
			if i%2 == 1 {
				password = "wrong"
			}
			results[i] = s.Authenticate(context.Background(), credentialsRequest(username, password))
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		if i%2 == 1 {
			assert.Equal(t, OutcomeFail, result.Outcome, i)
			continue
		}
		require.Equal(t, OutcomeSuccess, result.Outcome, i)
		assert.Equal(t, fmt.Sprintf("user%d", i), result.User.Username)
	}
	assert.Equal(t, workers/2, rec.attempts["success"])
	assert.Equal(t, workers/2, rec.attempts["fail"])
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "fail", OutcomeFail.String())
	assert.Equal(t, "error", OutcomeError.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
