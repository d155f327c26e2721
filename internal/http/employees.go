package httpapi

import (
	"net/http"

	"civilsite-backend-go/internal/services"
)

func (s *Server) ListEmployees(w http.ResponseWriter, r *http.Request) {
	admins, err := services.ListAdmins(r.Context(), s.DB)
	if err != nil {
		s.fail(w, r, "list employees", err)
		return
	}
	WriteJSON(w, http.StatusOK, admins)
}

func (s *Server) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var in services.CreateAdminInput
	if !s.decodeJSON(w, r, "create employee", &in) {
		return
	}
	admin, err := services.CreateAdmin(r.Context(), s.DB, s.Tokens, in)
	if err != nil {
		s.fail(w, r, "create employee", err)
		return
	}
	WriteJSON(w, http.StatusCreated, admin)
}

func (s *Server) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete employee")
	if !ok {
		return
	}
	session, _ := CurrentSession(r)
	if err := services.DeleteAdmin(r.Context(), s.DB, session.AdminID, id); err != nil {
		s.fail(w, r, "delete employee", err, id)
		return
	}
	writeSuccess(w)
}
