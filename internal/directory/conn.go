package directory

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of *ldap.Conn the verifier needs.
type Conn interface {
	Bind(username, password string) error
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	StartTLS(config *tls.Config) error
	Close() error
}

// Dialer opens a new directory connection for one verification.
type Dialer func(ctx context.Context, cfg *LDAPConfig) (Conn, error)

// dialLDAP is the default Dialer backed by go-ldap.
func dialLDAP(ctx context.Context, cfg *LDAPConfig) (Conn, error) {
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := ldap.DialURL(
		cfg.URL,
		ldap.DialWithDialer(dialer),
		ldap.DialWithTLSConfig(cfg.tlsConfig()),
	)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(cfg.Timeout)

	return conn, nil
}
