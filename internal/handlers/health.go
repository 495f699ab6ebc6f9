package handlers

import (
	"net/http"

	"github.com/go-authgate/ldapauth/internal/version"

	"github.com/gin-gonic/gin"
)

// Health reports liveness. It does not contact the directory.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.String(),
	})
}
