package server

import (
	"net/http"
	"time"
)

// Item is an entry of the static mock collections.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var (
	mockUsers = []Item{
		{ID: 1, Name: "John Doe"},
		{ID: 2, Name: "Jane Smith"},
	}
	mockTools = []Item{
		{ID: 1, Name: "Cangkul"},
		{ID: 2, Name: "Pupuk"},
		{ID: 3, Name: "Sprayer"},
	}
)

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	ID        string `json:"id"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Hello from " + s.config.GetAppName() + "!"})
	}
}

// UsersMeHandler describes the caller's session. Must run behind RequireSessionToken.
func (s *Server) UsersMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		claims, hasClaims := ClaimsFromContext(r.Context())
		if !ok || !hasClaims {
			s.rejectUnauthorized(w, r, reasonMissingToken, nil)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			ID:        userID,
			ExpiresAt: claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
		})
	}
}

func (s *Server) UsersListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mockUsers)
	}
}

func (s *Server) ToolsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mockTools)
	}
}
