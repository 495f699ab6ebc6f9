package auth

import (
	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/directory"
)

// Default body field names
const (
	DefaultUsernameField = "username"
	DefaultPasswordField = "password"
)

// Options configures a Strategy. New copies it, so changing an Options value
// after construction has no effect on strategies already built from it.
type Options struct {
	UsernameField     string
	PasswordField     string
	PassReqToCallback bool

	// Server configures the built-in LDAP verifier. Required unless Verifier is set.
	Server *directory.LDAPConfig
	// Verifier overrides the LDAP verifier, Server is ignored when set.
	Verifier core.Verifier
	// Recorder receives attempt metrics. Optional.
	Recorder core.Recorder
}

func (o Options) withDefaults() Options {
	if o.UsernameField == "" {
		o.UsernameField = DefaultUsernameField
	}
	if o.PasswordField == "" {
		o.PasswordField = DefaultPasswordField
	}
	if o.Server != nil {
		server := *o.Server
		server.SearchAttributes = append([]string(nil), server.SearchAttributes...)
		o.Server = &server
	}
	return o
}
