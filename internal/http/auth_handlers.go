package httpapi

import (
	"net/http"
	"time"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      models.Admin `json:"user"`
}

type MeResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeJSON(w, r, "login", &req) {
		return
	}
	admin, err := services.Authenticate(r.Context(), s.DB, s.Tokens, req.Username, req.Password)
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}
	token, exp, err := s.Tokens.CreateSessionToken(admin)
	if err != nil {
		s.fail(w, r, "login", err, admin.ID)
		return
	}
	WriteJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: exp, User: admin})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := CurrentSession(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	WriteJSON(w, http.StatusOK, MeResponse{
		ID:        session.AdminID,
		Username:  session.Username,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout only acknowledges; tokens stay valid until they expire.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
