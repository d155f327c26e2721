package httpapi

import (
	"net/http"

	"civilsite-backend-go/internal/services"
)

// TrackVisit counts a page view. Bots are acknowledged without counting.
func (s *Server) TrackVisit(w http.ResponseWriter, r *http.Request) {
	if !services.ShouldTrack(r.UserAgent()) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	stats, err := s.Visits.Record(r.Context(), clientIP(r))
	if err != nil {
		s.fail(w, r, "record visit", err)
		return
	}
	if s.Hub != nil {
		s.Hub.BroadcastVisits(stats)
	}
	w.WriteHeader(http.StatusNoContent)
}
