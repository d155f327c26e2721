package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"
	"civilsite-backend-go/internal/site"
)

// Update payloads carry the record id next to the writable fields.
type (
	categoryUpdate struct {
		ID models.RefID `json:"id"`
		content.CategoryInput
	}
	projectUpdate struct {
		ID models.RefID `json:"id"`
		content.ProjectInput
	}
	subServiceUpdate struct {
		ID models.RefID `json:"id"`
		content.SubServiceInput
	}
	partnerUpdate struct {
		ID models.RefID `json:"id"`
		content.PartnerInput
	}
	timelineUpdate struct {
		ID models.RefID `json:"id"`
		content.TimelineInput
	}
)

func (s *Server) GetHero(w http.ResponseWriter, r *http.Request) {
	hero, err := s.Store.Hero(r.Context())
	if err != nil {
		s.fail(w, r, "get hero", err)
		return
	}
	WriteJSON(w, http.StatusOK, hero)
}

func (s *Server) UpdateHero(w http.ResponseWriter, r *http.Request) {
	var in content.HeroInput
	if !s.decodeJSON(w, r, "update hero", &in) {
		return
	}
	hero, err := s.Store.UpdateHero(r.Context(), in)
	if err != nil {
		s.fail(w, r, "update hero", err)
		return
	}
	s.changed(r.Context(), site.EntityHero)
	WriteJSON(w, http.StatusOK, hero)
}

func (s *Server) GetAbout(w http.ResponseWriter, r *http.Request) {
	about, err := s.Store.About(r.Context())
	if err != nil {
		s.fail(w, r, "get about", err)
		return
	}
	WriteJSON(w, http.StatusOK, about)
}

func (s *Server) UpdateAbout(w http.ResponseWriter, r *http.Request) {
	var in content.AboutInput
	if !s.decodeJSON(w, r, "update about", &in) {
		return
	}
	about, err := s.Store.UpdateAbout(r.Context(), in)
	if err != nil {
		s.fail(w, r, "update about", err)
		return
	}
	s.changed(r.Context(), site.EntityAbout)
	WriteJSON(w, http.StatusOK, about)
}

func (s *Server) GetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.Store.Contact(r.Context())
	if err != nil {
		s.fail(w, r, "get contact", err)
		return
	}
	WriteJSON(w, http.StatusOK, contact)
}

func (s *Server) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var in content.ContactInput
	if !s.decodeJSON(w, r, "update contact", &in) {
		return
	}
	contact, err := s.Store.UpdateContact(r.Context(), in)
	if err != nil {
		s.fail(w, r, "update contact", err)
		return
	}
	s.changed(r.Context(), site.EntityContact)
	WriteJSON(w, http.StatusOK, contact)
}

// Categories

func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	id, one, err := queryID(r)
	switch {
	case err != nil:
		s.fail(w, r, "get category", err)
	case one:
		category, err := s.Store.Category(r.Context(), id)
		if err != nil {
			s.fail(w, r, "get category", err, id)
			return
		}
		WriteJSON(w, http.StatusOK, category)
	default:
		categories, err := s.Store.Categories(r.Context())
		if err != nil {
			s.fail(w, r, "list categories", err)
			return
		}
		WriteJSON(w, http.StatusOK, categories)
	}
}

func (s *Server) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in content.CategoryInput
	if !s.decodeJSON(w, r, "create category", &in) {
		return
	}
	category, err := s.Store.CreateCategory(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create category", err)
		return
	}
	s.changed(r.Context(), site.EntityCategories)
	WriteJSON(w, http.StatusCreated, category)
}

func (s *Server) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryUpdate
	if !s.decodeJSON(w, r, "update category", &in) {
		return
	}
	id, err := targetID(r, in.ID)
	if err != nil {
		s.fail(w, r, "update category", err)
		return
	}
	category, err := s.Store.UpdateCategory(r.Context(), id, in.CategoryInput)
	if err != nil {
		s.fail(w, r, "update category", err, id)
		return
	}
	s.changed(r.Context(), site.EntityCategories)
	WriteJSON(w, http.StatusOK, category)
}

func (s *Server) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete category")
	if !ok {
		return
	}
	if err := s.Store.DeleteCategory(r.Context(), id); err != nil {
		s.fail(w, r, "delete category", err, id)
		return
	}
	s.changed(r.Context(), site.EntityCategories)
	writeSuccess(w)
}

// Projects

func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	id, one, err := queryID(r)
	switch {
	case err != nil:
		s.fail(w, r, "get project", err)
	case one:
		project, err := s.Store.Project(r.Context(), id)
		if err != nil {
			s.fail(w, r, "get project", err, id)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	default:
		projects, err := s.Store.Projects(r.Context())
		if err != nil {
			s.fail(w, r, "list projects", err)
			return
		}
		WriteJSON(w, http.StatusOK, projects)
	}
}

func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in content.ProjectInput
	if !s.decodeJSON(w, r, "create project", &in) {
		return
	}
	project, err := s.Store.CreateProject(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create project", err)
		return
	}
	s.changed(r.Context(), site.EntityProjects)
	WriteJSON(w, http.StatusCreated, project)
}

func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var in projectUpdate
	if !s.decodeJSON(w, r, "update project", &in) {
		return
	}
	id, err := targetID(r, in.ID)
	if err != nil {
		s.fail(w, r, "update project", err)
		return
	}
	project, err := s.Store.UpdateProject(r.Context(), id, in.ProjectInput)
	if err != nil {
		s.fail(w, r, "update project", err, id)
		return
	}
	s.changed(r.Context(), site.EntityProjects)
	WriteJSON(w, http.StatusOK, project)
}

func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete project")
	if !ok {
		return
	}
	if err := s.Store.DeleteProject(r.Context(), id); err != nil {
		s.fail(w, r, "delete project", err, id)
		return
	}
	s.changed(r.Context(), site.EntityProjects)
	writeSuccess(w)
}

func (s *Server) ReplaceProjects(w http.ResponseWriter, r *http.Request) {
	var items []content.ProjectInput
	if !s.decodeList(w, r, "replace projects", &items) {
		return
	}
	projects, err := s.Store.ReplaceProjects(r.Context(), items)
	if err != nil {
		s.fail(w, r, "replace projects", err)
		return
	}
	s.changed(r.Context(), site.EntityProjects)
	WriteJSON(w, http.StatusOK, projects)
}

// Services

func (s *Server) ListServices(w http.ResponseWriter, r *http.Request) {
	id, one, err := queryID(r)
	switch {
	case err != nil:
		s.fail(w, r, "get service", err)
	case one:
		service, err := s.Store.Service(r.Context(), id)
		if err != nil {
			s.fail(w, r, "get service", err, id)
			return
		}
		WriteJSON(w, http.StatusOK, service)
	default:
		list, err := s.Store.Services(r.Context())
		if err != nil {
			s.fail(w, r, "list services", err)
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}

func (s *Server) CreateService(w http.ResponseWriter, r *http.Request) {
	var in content.ServiceInput
	if !s.decodeJSON(w, r, "create service", &in) {
		return
	}
	service, err := s.Store.CreateService(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create service", err)
		return
	}
	s.changed(r.Context(), site.EntityServices)
	WriteJSON(w, http.StatusCreated, service)
}

func (s *Server) UpdateService(w http.ResponseWriter, r *http.Request) {
	var in content.ServiceBulkItem
	if !s.decodeJSON(w, r, "update service", &in) {
		return
	}
	id, err := targetID(r, in.ID)
	if err != nil {
		s.fail(w, r, "update service", err)
		return
	}
	service, err := s.Store.UpdateService(r.Context(), id, in.ServiceInput)
	if err != nil {
		s.fail(w, r, "update service", err, id)
		return
	}
	s.changed(r.Context(), site.EntityServices)
	WriteJSON(w, http.StatusOK, service)
}

func (s *Server) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete service")
	if !ok {
		return
	}
	if err := s.Store.DeleteService(r.Context(), id); err != nil {
		s.fail(w, r, "delete service", err, id)
		return
	}
	s.changed(r.Context(), site.EntityServices)
	writeSuccess(w)
}

func (s *Server) BulkUpdateServices(w http.ResponseWriter, r *http.Request) {
	var items []content.ServiceBulkItem
	if !s.decodeList(w, r, "bulk update services", &items) {
		return
	}
	list, err := s.Store.BulkUpdateServices(r.Context(), items)
	if err != nil {
		s.fail(w, r, "bulk update services", err)
		return
	}
	s.changed(r.Context(), site.EntityServices)
	WriteJSON(w, http.StatusOK, list)
}

// Sub-services

func (s *Server) ListSubServices(w http.ResponseWriter, r *http.Request) {
	var serviceID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("serviceId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			s.fail(w, r, "list sub-services", services.ErrBadRequest("serviceId must be a positive integer id"))
			return
		}
		serviceID = id
	}
	subs, err := s.Store.SubServices(r.Context(), serviceID)
	if err != nil {
		s.fail(w, r, "list sub-services", err, serviceID)
		return
	}
	WriteJSON(w, http.StatusOK, subs)
}

func (s *Server) CreateSubService(w http.ResponseWriter, r *http.Request) {
	var in content.SubServiceInput
	if !s.decodeJSON(w, r, "create sub-service", &in) {
		return
	}
	sub, err := s.Store.CreateSubService(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create sub-service", err)
		return
	}
	s.changed(r.Context(), site.EntitySubService)
	WriteJSON(w, http.StatusCreated, sub)
}

func (s *Server) UpdateSubService(w http.ResponseWriter, r *http.Request) {
	var in subServiceUpdate
	if !s.decodeJSON(w, r, "update sub-service", &in) {
		return
	}
	id, err := targetID(r, in.ID)
	if err != nil {
		s.fail(w, r, "update sub-service", err)
		return
	}
	sub, err := s.Store.UpdateSubService(r.Context(), id, in.SubServiceInput)
	if err != nil {
		s.fail(w, r, "update sub-service", err, id)
		return
	}
	s.changed(r.Context(), site.EntitySubService)
	WriteJSON(w, http.StatusOK, sub)
}

func (s *Server) DeleteSubService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete sub-service")
	if !ok {
		return
	}
	if err := s.Store.DeleteSubService(r.Context(), id); err != nil {
		s.fail(w, r, "delete sub-service", err, id)
		return
	}
	s.changed(r.Context(), site.EntitySubService)
	writeSuccess(w)
}

// Partners

func (s *Server) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := s.Store.Partners(r.Context())
	if err != nil {
		s.fail(w, r, "list partners", err)
		return
	}
	WriteJSON(w, http.StatusOK, partners)
}

func (s *Server) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var in content.PartnerInput
	if !s.decodeJSON(w, r, "create partner", &in) {
		return
	}
	partner, err := s.Store.CreatePartner(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create partner", err)
		return
	}
	s.changed(r.Context(), site.EntityPartners)
	WriteJSON(w, http.StatusCreated, partner)
}

func (s *Server) UpdatePartner(w http.ResponseWriter, r *http.Request) {
	var in partnerUpdate
	if !s.decodeJSON(w, r, "update partner", &in) {
		return
	}
	id, err := targetID(r, in.ID)
	if err != nil {
		s.fail(w, r, "update partner", err)
		return
	}
	partner, err := s.Store.UpdatePartner(r.Context(), id, in.PartnerInput)
	if err != nil {
		s.fail(w, r, "update partner", err, id)
		return
	}
	s.changed(r.Context(), site.EntityPartners)
	WriteJSON(w, http.StatusOK, partner)
}

func (s *Server) DeletePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete partner")
	if !ok {
		return
	}
	if err := s.Store.DeletePartner(r.Context(), id); err != nil {
		s.fail(w, r, "delete partner", err, id)
		return
	}
	s.changed(r.Context(), site.EntityPartners)
	writeSuccess(w)
}

// Timeline

func (s *Server) ListTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.Store.Timeline(r.Context())
	if err != nil {
		s.fail(w, r, "list timeline", err)
		return
	}
	WriteJSON(w, http.StatusOK, events)
}

func (s *Server) CreateTimelineEvent(w http.ResponseWriter, r *http.Request) {
	var in content.TimelineInput
	if !s.decodeJSON(w, r, "create timeline event", &in) {
		return
	}
	event, err := s.Store.CreateTimelineEvent(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create timeline event", err)
		return
	}
	s.changed(r.Context(), site.EntityTimeline)
	WriteJSON(w, http.StatusCreated, event)
}

func (s *Server) UpdateTimelineEvent(w http.ResponseWriter, r *http.Request) {
	var in timelineUpdate
	if !s.decodeJSON(w, r, "update timeline event", &in) {
		return
	}
	id, err := targetID(r, in.ID)
	if err != nil {
		s.fail(w, r, "update timeline event", err)
		return
	}
	event, err := s.Store.UpdateTimelineEvent(r.Context(), id, in.TimelineInput)
	if err != nil {
		s.fail(w, r, "update timeline event", err, id)
		return
	}
	s.changed(r.Context(), site.EntityTimeline)
	WriteJSON(w, http.StatusOK, event)
}

func (s *Server) DeleteTimelineEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deleteID(w, r, "delete timeline event")
	if !ok {
		return
	}
	if err := s.Store.DeleteTimelineEvent(r.Context(), id); err != nil {
		s.fail(w, r, "delete timeline event", err, id)
		return
	}
	s.changed(r.Context(), site.EntityTimeline)
	writeSuccess(w)
}
