// internal/interfaces/http/middleware/session.go
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/session"
	"github.com/your-org/storefront/internal/interfaces/http/response"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

const sessionStateKey = "session_state"

// SessionStore loads and saves per-session state
type SessionStore interface {
	Load(ctx context.Context, id string) (*session.State, error)
	Save(ctx context.Context, id string, state *session.State) error
}

// Session attaches the browser session state to the request. A session id
// cookie is minted on first visit, and the state is written back after the
// handler when it changed.
func Session(store SessionStore, cfg config.SessionConfig, logger logrus.FieldLogger) gin.HandlerFunc {
	maxAge := int(cfg.TTL.Seconds())

	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.CookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
		}
		// Sliding expiry for the cookie, matching the store TTL.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, id, maxAge, "/", cfg.Domain, cfg.Secure, true)

		state, err := store.Load(c.Request.Context(), id)
		if err != nil {
			response.Error(c, logger, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load session"))
			return
		}
		c.Set(sessionStateKey, state)

		c.Next()

		if !state.Dirty() {
			return
		}
		if err := store.Save(context.WithoutCancel(c.Request.Context()), id, state); err != nil {
			logger.WithError(err).WithField("request_id", c.GetString(response.RequestIDKey)).Error("Failed to save session state")
		}
	}
}

// GetSessionState returns the state attached by Session
func GetSessionState(c *gin.Context) *session.State {
	if v, ok := c.Get(sessionStateKey); ok {
		if state, ok := v.(*session.State); ok {
			return state
		}
	}
	return &session.State{}
}
