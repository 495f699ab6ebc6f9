package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-authgate/ldapauth/internal/core"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// Ensure HTTPAPIVerifier implements core.Verifier at compile time
var _ core.Verifier = (*HTTPAPIVerifier)(nil)

// HTTPAPIConfig configures the external HTTP API verifier
type HTTPAPIConfig struct {
	URL                string        `yaml:"url"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	AuthMode           string        `yaml:"auth_mode"`   // "none", "simple" or "hmac"
	AuthSecret         string        `yaml:"auth_secret"` // Shared secret for authentication
	AuthHeader         string        `yaml:"auth_header"` // Header name for simple mode
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	MaxRetryDelay      time.Duration `yaml:"max_retry_delay"`
}

// HTTPAPIVerifier delegates credential checks to an external HTTP API
type HTTPAPIVerifier struct {
	url         string
	retryClient *retry.Client
}

// NewHTTPAPIVerifier creates a new HTTP API verifier
func NewHTTPAPIVerifier(cfg HTTPAPIConfig) (*HTTPAPIVerifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: HTTP API url is required", ErrInvalidConfig)
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "none"
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "X-API-Secret"
	}

	// Create HTTP client with automatic authentication
	client, err := httpclient.NewAuthClient(
		cfg.AuthMode,
		cfg.AuthSecret,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithHeaderName(cfg.AuthHeader),
		httpclient.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create auth client: %v", ErrInvalidConfig, err)
	}

	// Wrap with retry client
	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithInitialRetryDelay(cfg.RetryDelay),
		retry.WithMaxRetryDelay(cfg.MaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create retry client: %v", ErrInvalidConfig, err)
	}

	return &HTTPAPIVerifier{
		url:         cfg.URL,
		retryClient: retryClient,
	}, nil
}

// APIAuthRequest is the request payload sent to external API
type APIAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIAuthResponse is the expected response from external API
type APIAuthResponse struct {
	Success  bool     `json:"success"`
	UserID   string   `json:"user_id,omitempty"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Verify checks credentials against the external HTTP API
func (p *HTTPAPIVerifier) Verify(
	ctx context.Context,
	username, password string,
) (*core.User, error) {
	jsonData, err := json.Marshal(APIAuthRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Authentication headers are automatically added by the HTTP client
	resp, err := p.retryClient.Post(
		ctx,
		p.url,
		retry.WithBody("application/json", bytes.NewBuffer(jsonData)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrHTTPAPIInvalidResp)
	}

	// Check HTTP status code before attempting to parse JSON
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var authResp APIAuthResponse
		_ = json.Unmarshal(body, &authResp)

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			reason := authResp.Message
			if reason == "" {
				reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
			}
			return nil, core.Reject(reason)
		}

		if authResp.Message != "" {
			return nil, fmt.Errorf(
				"%w: HTTP %d - %s",
				ErrHTTPAPIInvalidResp,
				resp.StatusCode,
				authResp.Message,
			)
		}
		// Limit body preview to 200 characters to avoid overwhelming logs
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		return nil, fmt.Errorf(
			"%w: HTTP %d - %s",
			ErrHTTPAPIInvalidResp,
			resp.StatusCode,
			bodyPreview,
		)
	}

	var authResp APIAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIInvalidResp, err)
	}

	if !authResp.Success {
		reason := authResp.Message
		if reason == "" {
			reason = ReasonInvalidPassword
		}
		return nil, core.Reject(reason)
	}

	if authResp.UserID == "" {
		return nil, fmt.Errorf(
			"%w: external API returned success=true but missing user_id",
			ErrHTTPAPIInvalidResp,
		)
	}

	return &core.User{
		Username: username,
		DN:       authResp.UserID,
		Email:    authResp.Email,
		FullName: authResp.FullName,
		Groups:   authResp.Groups,
	}, nil
}

// Name returns provider name for logging
func (p *HTTPAPIVerifier) Name() string {
	return "http_api"
}
