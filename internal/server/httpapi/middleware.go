package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mpetrenko/homeledger/internal/server/auth"
)

// requireUser verifies the bearer token and checks that the token's user id
// matches the {uid} path segment: users can only touch their own documents.
func requireUser(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := auth.GetUserIDFromToken(token, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if userID != chi.URLParam(r, "uid") {
				writeError(w, http.StatusForbidden, "token does not match user")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
