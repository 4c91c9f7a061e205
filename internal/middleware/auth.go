package middleware

import (
	"errors"
	"net/http"

	"taskboard/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	identityUserIDKey = "user_id"
	identityEmailKey  = "email"
)

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// CookieAuth reads the session token from cookieName, verifies it and stores
// the caller's identity in the context. Requests without a valid token are
// rejected with 401 before any downstream handler runs.
func CookieAuth(verifier auth.TokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil {
			token = ""
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		userID, err := uuid.FromString(claims.UserID)
		if err != nil {
			abortUnauthorized(c, auth.ErrMalformedToken)
			return
		}

		SetIdentity(c, Identity{UserID: userID, Email: claims.Email})
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := "malformed_token", "Session token is malformed"
	switch {
	case errors.Is(err, auth.ErrNoToken):
		code, message = "no_token", "Authentication required"
	case errors.Is(err, auth.ErrTokenExpired):
		code, message = "token_expired", "Session has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		code, message = "invalid_signature", "Session token signature is invalid"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"statusCode": http.StatusUnauthorized,
		"error":      code,
		"message":    message,
	})
}

func SetIdentity(c *gin.Context, identity Identity) {
	c.Set(identityUserIDKey, identity.UserID)
	c.Set(identityEmailKey, identity.Email)
}

// CurrentIdentity returns the identity stored by CookieAuth.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityUserIDKey)
	if !exists {
		return Identity{}, false
	}

	userID, ok := value.(uuid.UUID)
	if !ok {
		return Identity{}, false
	}

	return Identity{UserID: userID, Email: c.GetString(identityEmailKey)}, true
}
