package middleware

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/errors"
)

// IsAuthorized gates a route behind a bearer token. An empty configured
// token disables the check, which is how single-tenant installs run.
func IsAuthorized(apiToken string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if apiToken == "" {
			next(w, r, ps)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteHTTPUnauthorized(w, "No authorization header", nil)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != apiToken {
			errors.WriteHTTPUnauthorized(w, "Invalid token", nil)
			return
		}

		next(w, r, ps)
	}
}
