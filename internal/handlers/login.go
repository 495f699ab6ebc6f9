package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-authgate/ldapauth/internal/auth"
	"github.com/go-authgate/ldapauth/internal/middleware"

	"github.com/gin-gonic/gin"
)

// maxLoginBodySize caps the accepted login payload.
const maxLoginBodySize = 64 << 10

// Authenticator runs a login attempt. *auth.Strategy implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, req *auth.Request) auth.Result
}

// LoginHandler serves the login endpoint on top of an Authenticator.
type LoginHandler struct {
	strategy Authenticator
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(strategy Authenticator) *LoginHandler {
	return &LoginHandler{strategy: strategy}
}

// Login handles POST /login with a JSON object or form encoded body.
func (h *LoginHandler) Login(c *gin.Context) {
	body, err := readLoginBody(c)
	if err != nil {
		// Unreadable bodies carry no credentials; the strategy reports them as such.
		log.Printf("Login body ignored: %v (request_id=%s)", err, middleware.GetRequestID(c))
		body = map[string]string{}
	}

	req := &auth.Request{
		Body: body,
		HTTP: c.Request,
		Locals: map[string]any{
			auth.LocalRequestID: middleware.GetRequestID(c),
			auth.LocalClientIP:  middleware.GetClientIP(c),
		},
	}

	result := h.strategy.Authenticate(c.Request.Context(), req)

	switch result.Outcome {
	case auth.OutcomeSuccess:
		c.JSON(http.StatusOK, gin.H{"user": result.User})
	case auth.OutcomeFail:
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": result.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": result.Message,
		})
	}
}

// readLoginBody flattens the request body into string fields. JSON values
// that are not scalars are dropped.
func readLoginBody(c *gin.Context) (map[string]string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxLoginBodySize)

	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		return readJSONBody(c.Request.Body)
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	body := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			body[key] = values[0]
		}
	}
	return body, nil
}

func readJSONBody(r io.Reader) (map[string]string, error) {
	var raw map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	body := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			body[key] = v
		case json.Number:
			body[key] = v.String()
		case bool:
			body[key] = strconv.FormatBool(v)
		}
	}
	return body, nil
}
