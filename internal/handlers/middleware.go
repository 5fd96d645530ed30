package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by userIdMiddleware.
const (
	ctxUserID   = "userId"
	ctxUsername = "username"
)

const (
	errMissingAuth = "missing Authorization header"
	errAuthFormat  = "invalid Authorization header format"
	errAuthToken   = "invalid or expired token"
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (token string, problem string) {
	if header == "" {
		return "", errMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errAuthFormat
	}
	return token, ""
}

func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, problem := bearerToken(c.GetHeader("Authorization"))
	if problem != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
		return
	}

	identity, err := h.services.ParseToken(token)
	if err != nil || identity.UserID == "" {
		h.log.Debugw("api_token_rejected", "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthToken})
		return
	}

	c.Set(ctxUserID, identity.UserID)
	c.Set(ctxUsername, identity.Username)
	c.Next()
}
