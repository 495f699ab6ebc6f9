package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-authgate/ldapauth/internal/directory"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Authentication mode constants
const (
	AuthModeLDAP    = "ldap"
	AuthModeHTTPAPI = "http_api"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

const defaultSearchFilter = "(uid={{username}})"

type Config struct {
	// Server settings
	ServerAddr            string
	IsProduction          bool
	ServerShutdownTimeout time.Duration
	TrustedProxies        []string // IPs or CIDRs allowed to set X-Forwarded-For (empty: none)

	// Authentication
	AuthMode              string // "ldap" or "http_api"
	AuthUsernameField     string
	AuthPasswordField     string
	AuthPassReqToCallback bool
	AuthRequiredGroups    []string // Directory groups a user must belong to (any of)

	// LDAP directory
	LDAP directory.LDAPConfig

	// HTTP API Authentication
	HTTPAPIURL                string
	HTTPAPITimeout            time.Duration
	HTTPAPIInsecureSkipVerify bool
	HTTPAPIAuthMode           string // Authentication mode: "none", "simple", or "hmac"
	HTTPAPIAuthSecret         string // Shared secret for authentication
	HTTPAPIAuthHeader         string // Custom header name for simple mode (default: "X-API-Secret")
	HTTPAPIMaxRetries         int    // Maximum retry attempts (default: 3)
	HTTPAPIRetryDelay         time.Duration
	HTTPAPIMaxRetryDelay      time.Duration

	// Rate limiting
	EnableRateLimit          bool
	LoginRateLimit           int64  // Login attempts per minute per client IP
	RateLimitStore           string // "memory" or "redis"
	RateLimitCleanupInterval time.Duration

	// Redis (rate limit store)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Metrics
	MetricsEnabled bool
	MetricsToken   string // Bearer token for /metrics (empty: no auth)
}

// fileConfig is the layout of the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Auth struct {
		Mode              string   `yaml:"mode"`
		UsernameField     string   `yaml:"username_field"`
		PasswordField     string   `yaml:"password_field"`
		PassReqToCallback bool     `yaml:"pass_req_to_callback"`
		RequiredGroups    []string `yaml:"required_groups"`
	} `yaml:"auth"`
	LDAP    directory.LDAPConfig    `yaml:"ldap"`
	HTTPAPI directory.HTTPAPIConfig `yaml:"http_api"`
}

// Load reads configuration from the optional YAML file named by CONFIG_FILE,
// then from the environment (and .env). Environment values win.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	ldapFile := file.LDAP
	apiFile := file.HTTPAPI

	return &Config{
		ServerAddr:            getEnv("SERVER_ADDR", orDefault(file.Server.Addr, ":8080")),
		IsProduction:          getEnv("ENVIRONMENT", "development") == "production",
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		TrustedProxies:        getEnvSlice("TRUSTED_PROXIES", nil),

		// Authentication
		AuthMode:              getEnv("AUTH_MODE", orDefault(file.Auth.Mode, AuthModeLDAP)),
		AuthUsernameField:     getEnv("AUTH_USERNAME_FIELD", orDefault(file.Auth.UsernameField, "username")),
		AuthPasswordField:     getEnv("AUTH_PASSWORD_FIELD", orDefault(file.Auth.PasswordField, "password")),
		AuthPassReqToCallback: getEnvBool("AUTH_PASS_REQ_TO_CALLBACK", file.Auth.PassReqToCallback),
		AuthRequiredGroups:    getEnvSlice("AUTH_REQUIRED_GROUPS", file.Auth.RequiredGroups),

		// LDAP directory
		LDAP: directory.LDAPConfig{
			URL:             getEnv("LDAP_URL", ldapFile.URL),
			BindDN:          getEnv("LDAP_BIND_DN", ldapFile.BindDN),
			BindCredentials: getEnv("LDAP_BIND_CREDENTIALS", ldapFile.BindCredentials),
			SearchBase:      getEnv("LDAP_SEARCH_BASE", ldapFile.SearchBase),
			SearchFilter: getEnv(
				"LDAP_SEARCH_FILTER",
				orDefault(ldapFile.SearchFilter, defaultSearchFilter),
			),
			SearchScope:       getEnv("LDAP_SEARCH_SCOPE", orDefault(ldapFile.SearchScope, directory.ScopeSub)),
			SearchAttributes:  getEnvSlice("LDAP_SEARCH_ATTRIBUTES", ldapFile.SearchAttributes),
			UsernameAttribute: getEnv("LDAP_USERNAME_ATTRIBUTE", orDefault(ldapFile.UsernameAttribute, "uid")),

			GroupSearchBase:   getEnv("LDAP_GROUP_SEARCH_BASE", ldapFile.GroupSearchBase),
			GroupSearchFilter: getEnv("LDAP_GROUP_SEARCH_FILTER", ldapFile.GroupSearchFilter),
			GroupSearchAttribute: getEnv(
				"LDAP_GROUP_SEARCH_ATTRIBUTE",
				orDefault(ldapFile.GroupSearchAttribute, "cn"),
			),

			Timeout:            getEnvDuration("LDAP_TIMEOUT", durationOr(ldapFile.Timeout, 10*time.Second)),
			StartTLS:           getEnvBool("LDAP_START_TLS", ldapFile.StartTLS),
			InsecureSkipVerify: getEnvBool("LDAP_INSECURE_SKIP_VERIFY", ldapFile.InsecureSkipVerify),
		},

		// HTTP API Authentication
		HTTPAPIURL: getEnv("HTTP_API_URL", apiFile.URL),
		HTTPAPITimeout: getEnvDuration(
			"HTTP_API_TIMEOUT",
			durationOr(apiFile.Timeout, 10*time.Second),
		),
		HTTPAPIInsecureSkipVerify: getEnvBool("HTTP_API_INSECURE_SKIP_VERIFY", apiFile.InsecureSkipVerify),
		HTTPAPIAuthMode:           getEnv("HTTP_API_AUTH_MODE", orDefault(apiFile.AuthMode, "none")),
		HTTPAPIAuthSecret:         getEnv("HTTP_API_AUTH_SECRET", apiFile.AuthSecret),
		HTTPAPIAuthHeader:         getEnv("HTTP_API_AUTH_HEADER", orDefault(apiFile.AuthHeader, "X-API-Secret")),
		HTTPAPIMaxRetries:         getEnvInt("HTTP_API_MAX_RETRIES", intOr(apiFile.MaxRetries, 3)),
		HTTPAPIRetryDelay: getEnvDuration(
			"HTTP_API_RETRY_DELAY",
			durationOr(apiFile.RetryDelay, 1*time.Second),
		),
		HTTPAPIMaxRetryDelay: getEnvDuration(
			"HTTP_API_MAX_RETRY_DELAY",
			durationOr(apiFile.MaxRetryDelay, 10*time.Second),
		),

		// Rate limiting
		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		LoginRateLimit:           int64(getEnvInt("LOGIN_RATE_LIMIT", 5)),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		// Redis
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),
	}, nil
}

// Validate checks enum values and the settings required by the selected modes.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeLDAP:
		if err := c.LDAP.Validate(); err != nil {
			return fmt.Errorf("invalid LDAP configuration: %w", err)
		}
	case AuthModeHTTPAPI:
		if c.HTTPAPIURL == "" {
			return errors.New("HTTP_API_URL is required when AUTH_MODE=http_api")
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE: %q (must be %q or %q)",
			c.AuthMode, AuthModeLDAP, AuthModeHTTPAPI)
	}

	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry: %q", proxy)
		}
	}

	if c.AuthUsernameField == "" || c.AuthPasswordField == "" {
		return errors.New("AUTH_USERNAME_FIELD and AUTH_PASSWORD_FIELD must not be empty")
	}
	if c.AuthUsernameField == c.AuthPasswordField {
		return fmt.Errorf("AUTH_USERNAME_FIELD and AUTH_PASSWORD_FIELD must differ (both %q)",
			c.AuthUsernameField)
	}

	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf("invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis)
	}
	if c.EnableRateLimit {
		if c.LoginRateLimit <= 0 {
			return fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got %d", c.LoginRateLimit)
		}
		if c.RateLimitStore == RateLimitStoreRedis && c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when RATE_LIMIT_STORE=redis")
		}
	}

	return nil
}

// HTTPAPIConfig returns the settings of the HTTP API verifier.
func (c *Config) HTTPAPIConfig() directory.HTTPAPIConfig {
	return directory.HTTPAPIConfig{
		URL:                c.HTTPAPIURL,
		Timeout:            c.HTTPAPITimeout,
		InsecureSkipVerify: c.HTTPAPIInsecureSkipVerify,
		AuthMode:           c.HTTPAPIAuthMode,
		AuthSecret:         c.HTTPAPIAuthSecret,
		AuthHeader:         c.HTTPAPIAuthHeader,
		MaxRetries:         c.HTTPAPIMaxRetries,
		RetryDelay:         c.HTTPAPIRetryDelay,
		MaxRetryDelay:      c.HTTPAPIMaxRetryDelay,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func durationOr(value, defaultValue time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return defaultValue
}

func intOr(value, defaultValue int) int {
	if value > 0 {
		return value
	}
	return defaultValue
}
