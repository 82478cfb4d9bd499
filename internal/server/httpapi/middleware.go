package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/farekeeper/internal/server/auth"
)

type contextKey string

const terminalIDKey contextKey = "terminal_id"

func terminalIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(terminalIDKey).(string)
	return id
}

// AuthMiddleware verifies the Bearer token and puts the terminal identity on
// the request context. Handlers still check that the payload's terminal_id
// matches the token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			h.respondError(w, http.StatusUnauthorized, "Missing bearer token", r.Method, r.URL.Path)
			return
		}

		terminalID, err := auth.GetTerminalIDFromToken(token, h.secretKey)
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, "Invalid token", r.Method, r.URL.Path)
			return
		}

		ctx := context.WithValue(r.Context(), terminalIDKey, terminalID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
