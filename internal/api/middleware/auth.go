package middleware

import (
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/response"
	"ctchen222/item-registry/internal/api/service"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// RequireUser resolves the bearer token on the request to a user and stores
// it on the context. Requests without a valid token are rejected with 401.
func RequireUser(guard service.AuthGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)

		user, err := guard.AuthenticateToken(c.Request.Context(), token)
		if errors.Is(err, service.ErrStoreUnavailable) {
			c.Header("Retry-After", "1")
			response.AbortWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.AbortWithError(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// bearerToken reads "Authorization: Bearer <token>". Browsers cannot set
// headers on websocket upgrades, so an access_token query parameter is
// accepted as well.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}
