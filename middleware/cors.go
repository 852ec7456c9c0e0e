package middleware

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// AllowCORS marks a route's responses as callable from any web origin. The
// API serves player pages hosted anywhere, so there is no origin allowlist.
func AllowCORS() func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			setCORSHeaders(w)
			next(w, r, ps)
		}
	}
}

// CORSPreflight answers OPTIONS requests. httprouter dispatches by method,
// so preflights are handled through the router's GlobalOPTIONS hook rather
// than per-route middleware.
func CORSPreflight() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}
