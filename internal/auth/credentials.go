package auth

// Credentials is the username/password pair taken from a request.
type Credentials struct {
	Username string
	Password string
}

// extractCredentials reads the configured fields from the request body.
// It reports false when either field is absent or empty.
func extractCredentials(req *Request, usernameField, passwordField string) (Credentials, bool) {
	if req == nil || req.Body == nil {
		return Credentials{}, false
	}

	username := req.Body[usernameField]
	password := req.Body[passwordField]
	if username == "" || password == "" {
		return Credentials{}, false
	}

	return Credentials{Username: username, Password: password}, true
}
