package directory

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Search filter placeholders
const (
	UsernamePlaceholder = "{{username}}"
	DNPlaceholder       = "{{dn}}"
)

// Search scopes accepted in configuration
const (
	ScopeSub  = "sub"
	ScopeOne  = "one"
	ScopeBase = "base"
)

const (
	defaultLDAPTimeout          = 10 * time.Second
	defaultUsernameAttribute    = "uid"
	defaultGroupSearchAttribute = "cn"
)

// LDAPConfig holds the directory connection parameters.
type LDAPConfig struct {
	URL             string `yaml:"url"`
	BindDN          string `yaml:"bind_dn"`
	BindCredentials string `yaml:"bind_credentials"`

	SearchBase        string   `yaml:"search_base"`
	SearchFilter      string   `yaml:"search_filter"` // must contain {{username}}
	SearchScope       string   `yaml:"search_scope"`  // sub, one or base
	SearchAttributes  []string `yaml:"search_attributes"`
	UsernameAttribute string   `yaml:"username_attribute"`

	GroupSearchBase      string `yaml:"group_search_base"`
	GroupSearchFilter    string `yaml:"group_search_filter"` // may contain {{dn}} and {{username}}
	GroupSearchAttribute string `yaml:"group_search_attribute"`

	Timeout            time.Duration `yaml:"timeout"`
	StartTLS           bool          `yaml:"start_tls"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// withDefaults returns a copy with optional fields filled in.
func (c LDAPConfig) withDefaults() LDAPConfig {
	if c.SearchScope == "" {
		c.SearchScope = ScopeSub
	}
	if c.UsernameAttribute == "" {
		c.UsernameAttribute = defaultUsernameAttribute
	}
	if c.GroupSearchAttribute == "" {
		c.GroupSearchAttribute = defaultGroupSearchAttribute
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultLDAPTimeout
	}
	c.SearchAttributes = append([]string(nil), c.SearchAttributes...)
	return c
}

// Validate checks that the configuration is complete enough to query a directory.
func (c *LDAPConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid url %q: %v", ErrInvalidConfig, c.URL, err)
	}
	switch u.Scheme {
	case "ldap", "ldaps":
	default:
		return fmt.Errorf(
			"%w: url scheme must be ldap or ldaps, got %q",
			ErrInvalidConfig,
			u.Scheme,
		)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q has no host", ErrInvalidConfig, c.URL)
	}
	if c.StartTLS && u.Scheme == "ldaps" {
		return fmt.Errorf("%w: start_tls cannot be combined with ldaps", ErrInvalidConfig)
	}

	if c.BindDN != "" && c.BindCredentials == "" {
		return fmt.Errorf("%w: bind_credentials are required when bind_dn is set", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.SearchBase) == "" {
		return fmt.Errorf("%w: search_base is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.SearchFilter) == "" {
		return fmt.Errorf("%w: search_filter is required", ErrInvalidConfig)
	}
	if !strings.Contains(c.SearchFilter, UsernamePlaceholder) {
		return fmt.Errorf(
			"%w: search_filter must contain %s",
			ErrInvalidConfig,
			UsernamePlaceholder,
		)
	}
	if _, err := ldap.CompileFilter(
		strings.ReplaceAll(c.SearchFilter, UsernamePlaceholder, "x"),
	); err != nil {
		return fmt.Errorf("%w: invalid search_filter: %v", ErrInvalidConfig, err)
	}
	if _, err := scopeValue(c.SearchScope); err != nil {
		return err
	}

	if c.GroupSearchFilter != "" && c.GroupSearchBase == "" {
		return fmt.Errorf(
			"%w: group_search_base is required with group_search_filter",
			ErrInvalidConfig,
		)
	}
	if c.GroupSearchBase != "" && c.GroupSearchFilter == "" {
		return fmt.Errorf(
			"%w: group_search_filter is required with group_search_base",
			ErrInvalidConfig,
		)
	}

	return nil
}

// scopeValue maps a configured scope name to the go-ldap constant.
// An empty scope means subtree.
func scopeValue(scope string) (int, error) {
	switch scope {
	case "", ScopeSub:
		return ldap.ScopeWholeSubtree, nil
	case ScopeOne:
		return ldap.ScopeSingleLevel, nil
	case ScopeBase:
		return ldap.ScopeBaseObject, nil
	default:
		return 0, fmt.Errorf(
			"%w: invalid search_scope %q (must be sub, one or base)",
			ErrInvalidConfig,
			scope,
		)
	}
}

// tlsConfig builds the TLS settings for ldaps:// and StartTLS.
func (c *LDAPConfig) tlsConfig() *tls.Config {
	serverName := ""
	if u, err := url.Parse(c.URL); err == nil {
		serverName = u.Hostname()
	}

	// #nosec G402 -- InsecureSkipVerify is user-configurable for development/testing
	return &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}
