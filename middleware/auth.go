package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/utils"
)

const (
	// ContextIdentityKey is the key used to store the authenticated models.Identity in Gin context.
	ContextIdentityKey = "identity"
	// ContextTokenKey stores the raw bearer token for logout.
	ContextTokenKey = "token"
)

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := bearerToken(ctx)
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		identity, err := auth.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		ctx.Set(ContextIdentityKey, identity)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			ctx.Next()
			return
		}
		token, err := bearerToken(ctx)
		if err == nil {
			var identity models.Identity
			if identity, err = auth.Authenticate(ctx.Request.Context(), token); err == nil {
				ctx.Set(ContextIdentityKey, identity)
				ctx.Set(ContextTokenKey, token)
			}
		}
		if err != nil {
			utils.Logger.Debug("optional auth failed, continuing anonymously",
				zap.String(utils.RequestIDKey, ctx.GetString(utils.RequestIDKey)), zap.Error(err))
		}
		ctx.Next()
	}
}

// CurrentIdentity returns the identity set by the auth middleware.
func CurrentIdentity(ctx *gin.Context) (models.Identity, bool) {
	v, ok := ctx.Get(ContextIdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// ViewerID is the authenticated user id, or 0 for anonymous requests.
func ViewerID(ctx *gin.Context) uint {
	identity, _ := CurrentIdentity(ctx)
	return identity.UserID
}

func bearerToken(ctx *gin.Context) (string, error) {
	header := strings.TrimSpace(ctx.GetHeader("Authorization"))
	if header == "" {
		return "", apperr.Unauthorized(40101, "Access token required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", apperr.Unauthorized(40106, "Invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.Unauthorized(40101, "Access token required")
	}
	return token, nil
}
