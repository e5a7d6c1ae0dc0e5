// Package handlers exposes the quote services over HTTP: JSON endpoints for
// back-office staff and token-gated pages for customers.
package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/actor"
	"github.com/rs/zerolog"
)

// ActorLoader turns the session user id into a staff actor.
type ActorLoader interface {
	LoadActor(ctx context.Context, userID uint) (actor.Internal, error)
}

type actorCtxKey struct{}

// WithActor stores the staff actor in ctx.
func WithActor(ctx context.Context, who actor.Internal) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, who)
}

// ActorFrom returns the staff actor stored by Identity.
func ActorFrom(ctx context.Context) (actor.Internal, bool) {
	who, ok := ctx.Value(actorCtxKey{}).(actor.Internal)
	return who, ok
}

// Identity resolves the session user into a staff actor. It must run after
// the session middleware; requests without a loadable user get 401.
func Identity(loader ActorLoader, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			who, err := loader.LoadActor(r.Context(), uid)
			if err != nil {
				log.Debug().Err(err).Uint("user_id", uid).Msg("session user not loadable")
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), who)))
		})
	}
}

// currentActor is the zero actor when Identity did not run; the services
// then answer Forbidden.
func currentActor(r *http.Request) actor.Internal {
	who, _ := ActorFrom(r.Context())
	return who
}
