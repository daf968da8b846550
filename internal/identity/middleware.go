package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/common"
)

type actorKey struct{}

// WithActor stores actor on ctx. The user id is mirrored for request logging.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	ctx = context.WithValue(ctx, actorKey{}, actor)
	if actor.Authenticated() {
		ctx = common.WithUserID(ctx, actor.ID)
	}
	return ctx
}

// ActorFrom returns the actor attached to ctx, or the anonymous actor.
func ActorFrom(ctx context.Context) authz.Actor {
	if ctx == nil {
		return authz.Anonymous()
	}
	if actor, ok := ctx.Value(actorKey{}).(authz.Actor); ok {
		return actor
	}
	return authz.Anonymous()
}

// Parser turns a raw token into an actor.
type Parser interface {
	Parse(token string) (authz.Actor, error)
}

// Middleware attaches the calling actor to the request context.
type Middleware struct {
	Tokens       Parser
	AccessCookie string
}

// Authenticate resolves the actor when credentials are present. Requests
// without credentials continue as anonymous; invalid credentials get 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" || m.Tokens == nil {
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), authz.Anonymous())))
			return
		}
		actor, err := m.Tokens.Parse(token)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireAuth rejects anonymous requests. It must run after Authenticate.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFrom(r.Context()).Authenticated() {
			common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
