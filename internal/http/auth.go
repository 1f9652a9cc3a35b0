package http

import (
	"context"
	"net/http"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type ownerKey struct{}

// Authenticator resolves the calling owner from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts an identity header set by an upstream gateway.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(a.Header))
	if owner == "" {
		return "", core.ErrUnauthenticated
	}
	return owner, nil
}

// requireOwner rejects unauthenticated requests and stores the owner id in
// the request context.
func (s *Server) requireOwner(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := s.auth.Authenticate(r)
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).
				WarnContext(r.Context(), "Unauthenticated request", applog.FieldPath, r.URL.Path)
			s.fail(w, r, resource{}, err)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, owner)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldOwnerID, owner))
		next(w, r.WithContext(ctx))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
