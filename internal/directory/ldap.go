package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-authgate/ldapauth/internal/core"

	"github.com/go-ldap/ldap/v3"
)

// Ensure LDAPVerifier implements core.Verifier at compile time
var _ core.Verifier = (*LDAPVerifier)(nil)

// LDAPVerifier checks credentials with a search-then-bind against an LDAP
// directory. Every call uses its own connection, so a single verifier can
// serve concurrent attempts.
type LDAPVerifier struct {
	cfg   LDAPConfig
	scope int
	dial  Dialer
}

// LDAPOption configures an LDAPVerifier
type LDAPOption func(*LDAPVerifier)

// WithDialer replaces the go-ldap dialer, mainly for tests
func WithDialer(d Dialer) LDAPOption {
	return func(v *LDAPVerifier) {
		if d != nil {
			v.dial = d
		}
	}
}

// NewLDAPVerifier validates cfg and creates a verifier. The configuration is
// copied; later changes to cfg have no effect.
func NewLDAPVerifier(cfg *LDAPConfig, opts ...LDAPOption) (*LDAPVerifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing LDAP configuration", ErrInvalidConfig)
	}

	c := cfg.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	scope, err := scopeValue(c.SearchScope)
	if err != nil {
		return nil, err
	}

	v := &LDAPVerifier{
		cfg:   c,
		scope: scope,
		dial:  dialLDAP,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Name returns provider name for logging
func (v *LDAPVerifier) Name() string {
	return "ldap"
}

// Verify looks the user up and binds as the matching entry with password.
func (v *LDAPVerifier) Verify(
	ctx context.Context,
	username, password string,
) (*core.User, error) {
	// An empty password turns a simple bind into an unauthenticated bind,
	// which most servers accept.
	if password == "" {
		return nil, core.Reject(ReasonInvalidPassword)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	conn, err := v.dial(ctx, &v.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	closeConn := sync.OnceValue(conn.Close)
	defer closeConn()

	// go-ldap has no per-request context; closing the connection unblocks
	// any pending operation.
	stop := context.AfterFunc(ctx, func() { _ = closeConn() })
	defer stop()

	user, err := v.verify(conn, username, password)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, ctx.Err())
	}
	return user, err
}

func (v *LDAPVerifier) verify(conn Conn, username, password string) (*core.User, error) {
	if v.cfg.StartTLS {
		if err := conn.StartTLS(v.cfg.tlsConfig()); err != nil {
			return nil, fmt.Errorf("%w: StartTLS: %v", ErrConnection, err)
		}
	}

	if err := v.bindService(conn); err != nil {
		return nil, err
	}

	entry, err := v.findUser(conn, username)
	if err != nil {
		return nil, err
	}

	if err := conn.Bind(entry.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, core.Reject(ReasonInvalidPassword)
		}
		return nil, fmt.Errorf("%w: %v", ErrUserBind, err)
	}

	user := v.toUser(entry, username)

	if v.cfg.GroupSearchBase != "" {
		// The user bind replaced the service identity on this connection.
		if err := v.bindService(conn); err != nil {
			return nil, err
		}
		groups, err := v.findGroups(conn, entry.DN, user.Username)
		if err != nil {
			return nil, err
		}
		user.Groups = groups
	}

	return user, nil
}

// bindService binds with the configured service account, if any.
func (v *LDAPVerifier) bindService(conn Conn) error {
	if v.cfg.BindDN == "" {
		return nil
	}
	if err := conn.Bind(v.cfg.BindDN, v.cfg.BindCredentials); err != nil {
		return fmt.Errorf("%w: %v", ErrAdminBind, err)
	}
	return nil
}

func (v *LDAPVerifier) findUser(conn Conn, username string) (*ldap.Entry, error) {
	filter := strings.ReplaceAll(
		v.cfg.SearchFilter,
		UsernamePlaceholder,
		ldap.EscapeFilter(username),
	)

	req := ldap.NewSearchRequest(
		v.cfg.SearchBase,
		v.scope,
		ldap.NeverDerefAliases,
		0,
		v.timeLimit(),
		false,
		filter,
		v.userAttributes(),
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		// NoSuchObject here means the search base is missing, not the user.
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, core.Reject(ReasonNoSuchUser)
	case 1:
		return result.Entries[0], nil
	default:
		return nil, fmt.Errorf(
			"%w: %d entries for filter %s",
			ErrAmbiguousUser,
			len(result.Entries),
			filter,
		)
	}
}

func (v *LDAPVerifier) findGroups(conn Conn, dn, username string) ([]string, error) {
	filter := strings.NewReplacer(
		DNPlaceholder, ldap.EscapeFilter(dn),
		UsernamePlaceholder, ldap.EscapeFilter(username),
	).Replace(v.cfg.GroupSearchFilter)

	req := ldap.NewSearchRequest(
		v.cfg.GroupSearchBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		v.timeLimit(),
		false,
		filter,
		[]string{v.cfg.GroupSearchAttribute},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: group search: %v", ErrSearch, err)
	}

	groups := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		if name := entry.GetAttributeValue(v.cfg.GroupSearchAttribute); name != "" {
			groups = append(groups, name)
		}
	}
	return groups, nil
}

// userAttributes returns the attributes to request, or nil for all user
// attributes.
func (v *LDAPVerifier) userAttributes() []string {
	if len(v.cfg.SearchAttributes) == 0 {
		return nil
	}
	attrs := append([]string(nil), v.cfg.SearchAttributes...)
	for _, required := range []string{v.cfg.UsernameAttribute, "mail", "cn"} {
		if !containsFold(attrs, required) {
			attrs = append(attrs, required)
		}
	}
	return attrs
}

func (v *LDAPVerifier) timeLimit() int {
	return int(v.cfg.Timeout.Seconds())
}

func (v *LDAPVerifier) toUser(entry *ldap.Entry, username string) *core.User {
	user := &core.User{
		Username:   entry.GetEqualFoldAttributeValue(v.cfg.UsernameAttribute),
		DN:         entry.DN,
		Email:      entry.GetEqualFoldAttributeValue("mail"),
		FullName:   entry.GetEqualFoldAttributeValue("cn"),
		Attributes: make(map[string][]string, len(entry.Attributes)),
	}
	if user.Username == "" {
		user.Username = username
	}
	if user.FullName == "" {
		user.FullName = entry.GetEqualFoldAttributeValue("displayName")
	}
	for _, attr := range entry.Attributes {
		if !v.exposeAttribute(attr.Name) {
			continue
		}
		user.Attributes[attr.Name] = append([]string(nil), attr.Values...)
	}
	return user
}

// credentialAttributes hold password material and never leave the verifier.
var credentialAttributes = []string{
	"userPassword",
	"unicodePwd",
	"sambaNTPassword",
	"sambaLMPassword",
	"authPassword",
}

// exposeAttribute reports whether an entry attribute may be copied into
// core.User. With SearchAttributes configured only those are copied.
func (v *LDAPVerifier) exposeAttribute(name string) bool {
	if containsFold(credentialAttributes, name) {
		return false
	}
	return len(v.cfg.SearchAttributes) == 0 || containsFold(v.cfg.SearchAttributes, name)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
