package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// WorkspaceFromPath stores the workspace id that follows a "workspaces"
// path segment in the request context. Requests without one pass through
// unchanged; malformed ids are left for the route to reject.
func WorkspaceFromPath() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
			for i := 0; i+1 < len(segments); i++ {
				if segments[i] != "workspaces" {
					continue
				}
				if id, err := uuid.Parse(segments[i+1]); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ContextKeyWorkspaceID, id))
				}
				break
			}
			next.ServeHTTP(w, r)
		})
	}
}
