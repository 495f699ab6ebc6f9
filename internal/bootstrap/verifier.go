package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/go-authgate/ldapauth/internal/auth"
	"github.com/go-authgate/ldapauth/internal/config"
	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/directory"
)

// reasonNotInGroup is the callback info for users outside AUTH_REQUIRED_GROUPS.
const reasonNotInGroup = "not a member of a required group"

// initializeVerifier builds the directory backend selected by AUTH_MODE
func initializeVerifier(cfg *config.Config) (core.Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeHTTPAPI:
		v, err := directory.NewHTTPAPIVerifier(cfg.HTTPAPIConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP API verifier: %w", err)
		}
		log.Printf("HTTP API verifier configured: %s", cfg.HTTPAPIURL)
		return v, nil
	case config.AuthModeLDAP:
		v, err := directory.NewLDAPVerifier(&cfg.LDAP)
		if err != nil {
			return nil, fmt.Errorf("failed to create LDAP verifier: %w", err)
		}
		log.Printf("LDAP verifier configured: %s (base: %s)", cfg.LDAP.URL, cfg.LDAP.SearchBase)
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported AUTH_MODE: %q", cfg.AuthMode)
	}
}

// initializeStrategy builds the login strategy around verifier
func initializeStrategy(
	cfg *config.Config,
	verifier core.Verifier,
	recorder core.Recorder,
) (*auth.Strategy, error) {
	strategy, err := auth.New(&auth.Options{
		UsernameField:     cfg.AuthUsernameField,
		PasswordField:     cfg.AuthPasswordField,
		PassReqToCallback: cfg.AuthPassReqToCallback,
		Verifier:          verifier,
		Recorder:          recorder,
	}, buildCallback(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create login strategy: %w", err)
	}
	return strategy, nil
}

// buildCallback returns the verify callback for cfg, or nil when the
// directory answer is final.
func buildCallback(cfg *config.Config) auth.Callback {
	groups := cfg.AuthRequiredGroups

	if cfg.AuthPassReqToCallback {
		return auth.VerifyRequestFunc(
			func(_ context.Context, req *auth.Request, user *core.User) (*core.User, string, error) {
				ip := requestClientIP(req)
				if !inAnyGroup(user, groups) {
					log.Printf("Login denied for %q from %s: %s", user.Username, ip, reasonNotInGroup)
					return nil, reasonNotInGroup, nil
				}
				log.Printf("Login accepted for %q from %s", user.Username, ip)
				return user, "", nil
			},
		)
	}

	if len(groups) == 0 {
		return nil
	}
	return auth.VerifyFunc(func(_ context.Context, user *core.User) (*core.User, string, error) {
		if !inAnyGroup(user, groups) {
			return nil, reasonNotInGroup, nil
		}
		return user, "", nil
	})
}

// requestClientIP returns the client IP stored in Locals, deriving it from
// the HTTP request when the caller did not set one.
func requestClientIP(req *auth.Request) string {
	if ip, ok := req.Locals[auth.LocalClientIP].(string); ok && ip != "" {
		return ip
	}
	if req.HTTP == nil {
		return "unknown"
	}
	ip := req.HTTP.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	req.Locals[auth.LocalClientIP] = ip
	return ip
}

// inAnyGroup reports whether user belongs to one of groups. An empty list
// admits everyone.
func inAnyGroup(user *core.User, groups []string) bool {
	if len(groups) == 0 {
		return true
	}
	for _, want := range groups {
		for _, have := range user.Groups {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}
