// Package api serves accounts, activity and trending pairs over JSON HTTP.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured. Mutating
// routes require adminAPIKey as a bearer token when it is set.
func NewServer(port string, h *Handler, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewMux(h, adminAPIKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers the routes of h.
func NewMux(h *Handler, adminAPIKey string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.GetAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}/activity", h.GetAccountActivity)
	mux.HandleFunc("GET /api/v1/accounts/{id}/balance", h.GetBalance)
	mux.HandleFunc("GET /api/v1/accounts/{id}/actions", h.GetActions)
	mux.HandleFunc("GET /api/v1/accounts/{id}/address", h.GetAddress)
	mux.HandleFunc("GET /api/v1/activity", h.GetActivity)
	mux.HandleFunc("GET /api/v1/trending", h.GetTrending)

	admin := func(pattern string, fn http.HandlerFunc) {
		if adminAPIKey != "" {
			mux.Handle(pattern, requireAuth(adminAPIKey, fn))
		} else {
			mux.Handle(pattern, fn)
		}
	}
	admin("POST /api/v1/accounts/{id}/archive", h.Archive)
	admin("POST /api/v1/accounts/{id}/unarchive", h.Unarchive)
	admin("PUT /api/v1/accounts/{id}/label", h.SetLabel)
	admin("POST /api/v1/accounts/{id}/proposals", h.Propose)

	return mux
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
