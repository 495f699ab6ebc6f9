package directory

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid directory configuration")

	// LDAP errors
	ErrConnection    = errors.New("failed to connect to directory")
	ErrAdminBind     = errors.New("directory service bind failed")
	ErrSearch        = errors.New("directory search failed")
	ErrAmbiguousUser = errors.New("directory search matched more than one entry")
	ErrUserBind      = errors.New("directory user bind failed")

	// HTTP API errors
	ErrHTTPAPIConnection  = errors.New("failed to connect to authentication API")
	ErrHTTPAPIInvalidResp = errors.New("invalid response from authentication API")
)

// Rejection reasons shared by the verifiers. They end up in logs, never in
// client responses.
const (
	ReasonNoSuchUser      = "no such user"
	ReasonInvalidPassword = "invalid password"
)
