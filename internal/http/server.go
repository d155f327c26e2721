package httpapi

import (
	"context"
	"net/http"
	"net/netip"

	"civilsite-backend-go/internal/config"
	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"
	"civilsite-backend-go/internal/site"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// ImageUploader stores an uploaded image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Deps are the components the handlers delegate to.
type Deps struct {
	Store  *content.Store
	Visits *services.VisitTracker
	Hub    *services.DashboardHub
	Site   *site.Renderer
	Images ImageUploader
}

type Server struct {
	DB     *sqlx.DB
	Config config.Config
	Tokens services.TokenService
	Store  *content.Store
	Visits *services.VisitTracker
	Hub    *services.DashboardHub
	Site   *site.Renderer
	Images ImageUploader

	loginLimiter   *ipLimiter
	trustedProxies []netip.Prefix
}

func NewServer(conn *sqlx.DB, cfg config.Config, deps Deps) *Server {
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring trusted proxies")
		trusted = nil
	}
	return &Server{
		DB:             conn,
		Config:         cfg,
		Tokens:         services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL()),
		Store:          deps.Store,
		Visits:         deps.Visits,
		Hub:            deps.Hub,
		Site:           deps.Site,
		Images:         deps.Images,
		loginLimiter:   newIPLimiter(cfg.LoginRatePerMinute),
		trustedProxies: trusted,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(realIP(s.trustedProxies))
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	staff := RequireAnyRole(models.RoleAdmin, models.RoleEmployee)
	adminOnly := RequireRole(models.RoleAdmin)

	r.Get("/healthz", s.Health)
	for _, route := range site.AllRoutes {
		r.Get(route, s.Site.Handler(route))
	}
	r.Post("/visits", s.TrackVisit)
	if !s.Config.StorageEnabled() {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(s.Config.MediaDir))))
	}

	r.Route("/auth", func(auth chi.Router) {
		auth.With(s.loginLimiter.Middleware).Post("/login", s.Login)
		auth.Group(func(me chi.Router) {
			me.Use(WithAuth(s.Tokens))
			me.Get("/me", s.Me)
			me.Post("/logout", s.Logout)
		})
	})

	r.Route("/content", func(c chi.Router) {
		c.Get("/hero", s.GetHero)
		c.Get("/about", s.GetAbout)
		c.Get("/contact", s.GetContact)
		c.Get("/categories", s.ListCategories)
		c.Get("/projects", s.ListProjects)
		c.Get("/services", s.ListServices)
		c.Get("/subservices", s.ListSubServices)
		c.Get("/partners", s.ListPartners)
		c.Get("/timeline", s.ListTimeline)

		c.Group(func(g chi.Router) {
			g.Use(WithAuth(s.Tokens), staff)
			g.Post("/projects", s.CreateProject)
			g.Put("/projects", s.UpdateProject)
			g.Delete("/projects", s.DeleteProject)
			g.Put("/projects/bulk", s.ReplaceProjects)
			g.Post("/partners", s.CreatePartner)
			g.Put("/partners", s.UpdatePartner)
			g.Delete("/partners", s.DeletePartner)
		})

		c.Group(func(g chi.Router) {
			g.Use(WithAuth(s.Tokens), adminOnly)
			g.Put("/hero", s.UpdateHero)
			g.Put("/about", s.UpdateAbout)
			g.Put("/contact", s.UpdateContact)
			g.Post("/categories", s.CreateCategory)
			g.Put("/categories", s.UpdateCategory)
			g.Delete("/categories", s.DeleteCategory)
			g.Post("/services", s.CreateService)
			g.Put("/services", s.UpdateService)
			g.Delete("/services", s.DeleteService)
			g.Put("/services/bulk", s.BulkUpdateServices)
			g.Post("/subservices", s.CreateSubService)
			g.Put("/subservices", s.UpdateSubService)
			g.Delete("/subservices", s.DeleteSubService)
			g.Post("/timeline", s.CreateTimelineEvent)
			g.Put("/timeline", s.UpdateTimelineEvent)
			g.Delete("/timeline", s.DeleteTimelineEvent)
			g.Get("/stats", s.Stats)
			g.Get("/backup", s.Backup)
			g.Post("/import", s.Import)
		})
	})

	r.With(WithAuth(s.Tokens), staff).Post("/upload-image", s.UploadImage)

	r.Route("/employees", func(e chi.Router) {
		e.Use(WithAuth(s.Tokens), adminOnly)
		e.Get("/", s.ListEmployees)
		e.Post("/", s.CreateEmployee)
		e.Delete("/", s.DeleteEmployee)
	})

	r.With(WithAuth(s.Tokens), adminOnly).Get("/admin/system", s.SystemSnapshot)
	r.Get("/ws/dashboard", s.DashboardSocket)
	return r
}

// changed drops cached pages after a successful mutation of entity.
func (s *Server) changed(ctx context.Context, entity string) {
	if s.Site != nil {
		s.Site.Invalidate(ctx, entity)
	}
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		s.fail(w, r, "health", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
