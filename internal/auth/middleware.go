package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Verifier turns a bearer token into a session
type Verifier interface {
	Verify(token string) (*Session, error)
}

// Middleware rejects requests without a valid bearer token and attaches the
// session and the raw token to the request.
func Middleware(verifier Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		session, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("Rejected token", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ginSessionKey, session)
		ctx := WithToken(WithSession(c.Request.Context(), session), token)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
