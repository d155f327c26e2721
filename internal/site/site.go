// Package site renders the public pages from stored content.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"civilsite-backend-go/internal/cache"
	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	RouteHome      = "/"
	RouteAbout     = "/about"
	RouteServices  = "/services"
	RoutePortfolio = "/portfolio"
	RouteContact   = "/contact"

	homeProjectLimit = 6
	cacheKeyPrefix   = "page:"
)

// AllRoutes lists every public page.
var AllRoutes = []string{RouteHome, RouteAbout, RouteServices, RoutePortfolio, RouteContact}

// Entities whose changes affect rendered pages.
const (
	EntityHero       = "hero"
	EntityAbout      = "about"
	EntityContact    = "contact"
	EntityCategories = "categories"
	EntityProjects   = "projects"
	EntityServices   = "services"
	EntitySubService = "subservices"
	EntityPartners   = "partners"
	EntityTimeline   = "timeline"
	EntityAll        = "all"
)

var routesByEntity = map[string][]string{
	EntityHero:       {RouteHome},
	EntityAbout:      {RouteAbout},
	EntityTimeline:   {RouteAbout},
	EntityServices:   {RouteServices, RouteHome},
	EntitySubService: {RouteServices, RouteHome},
	EntityCategories: {RoutePortfolio, RouteHome},
	EntityProjects:   {RoutePortfolio, RouteHome},
	EntityPartners:   {RouteHome, RouteAbout},
}

// RoutesFor returns the pages that render the entity. Contact appears in the
// footer, so it and unknown entities map to every page.
func RoutesFor(entity string) []string {
	if routes, ok := routesByEntity[entity]; ok {
		return routes
	}
	return AllRoutes
}

type page struct {
	Title       string
	Unavailable bool
	Hero        *models.Hero
	About       *models.About
	Contact     *models.Contact
	Categories  []models.Category
	Projects    []models.Project
	Services    []models.Service
	Partners    []models.Partner
	Timeline    []models.TimelineEvent
}

// errUnavailable marks a page whose singleton row is missing.
var errUnavailable = errors.New("content unavailable")

type Renderer struct {
	store     *content.Store
	cache     cache.Cacher
	templates map[string]*template.Template
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
	siteName  string

	// generations counts invalidations per route. A render only caches its
	// output when no invalidation of the route happened since it began loading.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewRenderer(store *content.Store, c cache.Cacher, siteName string) (*Renderer, error) {
	r := &Renderer{
		store:     store,
		cache:     c,
		templates: map[string]*template.Template{},
		markdown:  goldmark.New(),
		policy:    bluemonday.UGCPolicy(),
		siteName:  siteName,

		generations: map[string]uint64{},
	}
	base, err := template.New("base").Funcs(template.FuncMap{"markdown": r.renderMarkdown}).
		ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, err
	}
	pages := map[string]string{
		RouteHome:      "home.html",
		RouteAbout:     "about.html",
		RouteServices:  "services.html",
		RoutePortfolio: "portfolio.html",
		RouteContact:   "contact.html",
	}
	for route, file := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := clone.ParseFS(templateFS, "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		r.templates[route] = tmpl
	}
	return r, nil
}

func (r *Renderer) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// Handler serves one public route, from cache when possible.
func (r *Renderer) Handler(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if r.cache != nil {
			if body, err := r.cache.Get(ctx, cacheKeyPrefix+route); err == nil {
				writeHTML(w, body)
				return
			} else if !errors.Is(err, cache.ErrCacheMiss) {
				log.Warn().Err(err).Str("route", route).Msg("page cache read failed")
			}
		}

		body, err := r.Render(ctx, route)
		if err != nil {
			log.Error().Err(err).Str("route", route).Msg("render page")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeHTML(w, body)
	}
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Render builds the page for route and caches it. A missing singleton yields
// the unavailable notice, which is not cached.
func (r *Renderer) Render(ctx context.Context, route string) ([]byte, error) {
	tmpl, ok := r.templates[route]
	if !ok {
		return nil, fmt.Errorf("unknown route %q", route)
	}
	gen := r.generation(route)
	data, err := r.load(ctx, route)
	if errors.Is(err, errUnavailable) {
		log.Warn().Str("route", route).Msg("page content unavailable")
		data = page{Title: r.siteName, Unavailable: true}
	} else if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, err
	}
	if !data.Unavailable && r.cache != nil {
		r.cachePage(ctx, route, gen, buf.Bytes())
	}
	return buf.Bytes(), nil
}

// cachePage stores body unless the route was invalidated after gen was taken.
// An invalidation that lands while the write is in flight removes the entry again.
func (r *Renderer) cachePage(ctx context.Context, route string, gen uint64, body []byte) {
	if r.generation(route) != gen {
		return
	}
	key := cacheKeyPrefix + route
	if err := r.cache.Set(ctx, key, body, 0); err != nil {
		log.Warn().Err(err).Str("route", route).Msg("page cache write failed")
		return
	}
	if r.generation(route) != gen {
		if err := r.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("route", route).Msg("stale page eviction failed")
		}
	}
}

func (r *Renderer) generation(route string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[route]
}

// Invalidate drops cached pages that render entity. EntityAll clears the whole page cache.
func (r *Renderer) Invalidate(ctx context.Context, entity string) {
	routes := RoutesFor(entity)
	r.mu.Lock()
	for _, route := range routes {
		r.generations[route]++
	}
	r.mu.Unlock()
	if r.cache == nil {
		return
	}

	var err error
	if entity == EntityAll {
		err = r.cache.Clear(ctx)
	} else {
		keys := make([]string, len(routes))
		for i, route := range routes {
			keys[i] = cacheKeyPrefix + route
		}
		err = r.cache.Delete(ctx, keys...)
	}
	if err != nil {
		log.Warn().Err(err).Str("entity", entity).Msg("page cache invalidation failed")
	}
}

func (r *Renderer) load(ctx context.Context, route string) (page, error) {
	p := page{Title: r.siteName}
	contact, err := r.store.Contact(ctx)
	if err != nil {
		return p, singletonErr(err)
	}
	p.Contact = &contact

	switch route {
	case RouteHome:
		hero, err := r.store.Hero(ctx)
		if err != nil {
			return p, singletonErr(err)
		}
		p.Hero = &hero
		if p.Services, err = r.store.Services(ctx); err != nil {
			return p, err
		}
		if p.Projects, err = r.store.Projects(ctx); err != nil {
			return p, err
		}
		if len(p.Projects) > homeProjectLimit {
			p.Projects = p.Projects[len(p.Projects)-homeProjectLimit:]
		}
		if p.Partners, err = r.store.Partners(ctx); err != nil {
			return p, err
		}
	case RouteAbout:
		about, err := r.store.About(ctx)
		if err != nil {
			return p, singletonErr(err)
		}
		p.About = &about
		p.Title = r.title(about.Title)
		if p.Timeline, err = r.store.Timeline(ctx); err != nil {
			return p, err
		}
		if p.Partners, err = r.store.Partners(ctx); err != nil {
			return p, err
		}
	case RouteServices:
		p.Title = r.title("Services")
		if p.Services, err = r.store.Services(ctx); err != nil {
			return p, err
		}
	case RoutePortfolio:
		p.Title = r.title("Portfolio")
		if p.Categories, err = r.store.Categories(ctx); err != nil {
			return p, err
		}
		if p.Projects, err = r.store.Projects(ctx); err != nil {
			return p, err
		}
	case RouteContact:
		p.Title = r.title(contact.Title)
	}
	return p, nil
}

func (r *Renderer) title(name string) string {
	if name == "" {
		return r.siteName
	}
	return name + " | " + r.siteName
}

func singletonErr(err error) error {
	if svcErr, ok := services.AsServiceError(err); ok && svcErr.Status == http.StatusNotFound {
		return errUnavailable
	}
	return err
}
