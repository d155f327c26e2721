package httpapi

import (
	"net/http"
	"strings"
	"time"

	"civilsite-backend-go/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (s *Server) SystemSnapshot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, services.CaptureSystem(s.Config.MetricsDiskPath))
}

func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.Config.CorsOrigins) == 0 {
		return true
	}
	for _, allowed := range s.Config.CorsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// DashboardSocket streams visit and system events to an admin. Browsers
// cannot set headers on websocket requests, so the token comes in ?token=.
func (s *Server) DashboardSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		tokenStr = bearerToken(r)
	}
	if tokenStr == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	session, err := s.Tokens.ParseSession(tokenStr)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !session.IsAdmin() {
		WriteError(w, http.StatusForbidden, "Not allowed")
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: s.allowedOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// The first message goes out before the hub can write to conn.
	if stats, err := s.Visits.Stats(r.Context()); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteJSON(services.DashboardEvent{Type: services.EventVisits, Visits: &stats})
	}
	s.Hub.Add(conn)
	log.Info().Int64("admin_id", session.AdminID).Msg("dashboard client connected")
	defer func() {
		s.Hub.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
