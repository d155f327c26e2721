package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"civilsite-backend-go/internal/db"
	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// DocumentVersion is the current backup format version.
const DocumentVersion = "1.0"

// Document is the full-site backup. Projects name their category instead of
// carrying an id so the document survives id reassignment.
type Document struct {
	Version    string                `json:"version"`
	ExportedAt time.Time             `json:"exportedAt"`
	Hero       *models.Hero          `json:"hero"`
	About      *models.About         `json:"about"`
	Contact    *models.Contact       `json:"contact"`
	Categories []ExportCategory      `json:"categories"`
	Projects   []ExportProject       `json:"projects"`
	Services   []ExportService       `json:"services"`
	Partners   []ExportPartner       `json:"partners"`
	Timeline   []ExportTimelineEvent `json:"timeline"`
	Stats      *models.VisitStats    `json:"stats,omitempty"`
}

type ExportCategory struct {
	Name string `json:"name"`
}

type ExportProject struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ImageURL       string  `json:"imageUrl"`
	Client         *string `json:"client,omitempty"`
	CompletionDate *string `json:"completionDate,omitempty"`
	Category       string  `json:"category"`
}

type ExportService struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Icon        string             `json:"icon"`
	SubServices []ExportSubService `json:"subServices"`
}

type ExportSubService struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

type ExportPartner struct {
	LogoURL string `json:"logoUrl"`
}

type ExportTimelineEvent struct {
	Year        string `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Export reads every content table inside one read transaction.
func (s *Store) Export(ctx context.Context) (Document, error) {
	return db.WithTxResult(ctx, s.db, s.txTimeout, db.SnapshotOptions(s.db), func(tx *sqlx.Tx) (Document, error) {
		doc := Document{Version: DocumentVersion, ExportedAt: time.Now().UTC()}

		if hero, err := getHero(ctx, tx); err == nil {
			doc.Hero = &hero
		} else if !isNotFound(err) {
			return doc, err
		}
		if about, err := getAbout(ctx, tx); err == nil {
			doc.About = &about
		} else if !isNotFound(err) {
			return doc, err
		}
		if contact, err := getContact(ctx, tx); err == nil {
			doc.Contact = &contact
		} else if !isNotFound(err) {
			return doc, err
		}

		categories, err := listCategories(ctx, tx)
		if err != nil {
			return doc, err
		}
		doc.Categories = make([]ExportCategory, 0, len(categories))
		for _, c := range categories {
			doc.Categories = append(doc.Categories, ExportCategory{Name: c.Name})
		}

		projects, err := listProjects(ctx, tx)
		if err != nil {
			return doc, err
		}
		doc.Projects = make([]ExportProject, 0, len(projects))
		for _, p := range projects {
			doc.Projects = append(doc.Projects, ExportProject{
				Title:          p.Title,
				Description:    p.Description,
				ImageURL:       p.ImageURL,
				Client:         p.Client,
				CompletionDate: p.CompletionDate,
				Category:       p.CategoryName,
			})
		}

		svcs, err := listServices(ctx, tx)
		if err != nil {
			return doc, err
		}
		doc.Services = make([]ExportService, 0, len(svcs))
		for _, svc := range svcs {
			out := ExportService{Title: svc.Title, Description: svc.Description, Icon: svc.Icon, SubServices: []ExportSubService{}}
			for _, sub := range svc.SubServices {
				out.SubServices = append(out.SubServices, ExportSubService{Title: sub.Title, Description: sub.Description, ImageURL: sub.ImageURL})
			}
			doc.Services = append(doc.Services, out)
		}

		partners, err := listPartners(ctx, tx)
		if err != nil {
			return doc, err
		}
		doc.Partners = make([]ExportPartner, 0, len(partners))
		for _, p := range partners {
			doc.Partners = append(doc.Partners, ExportPartner{LogoURL: p.LogoURL})
		}

		events, err := listTimeline(ctx, tx)
		if err != nil {
			return doc, err
		}
		doc.Timeline = make([]ExportTimelineEvent, 0, len(events))
		for _, ev := range events {
			doc.Timeline = append(doc.Timeline, ExportTimelineEvent{Year: ev.Year, Title: ev.Title, Description: ev.Description})
		}

		var stats models.VisitStats
		err = get(ctx, tx, &stats, `SELECT total_visits, unique_visitors FROM visit_stats WHERE id = ?`, models.SingletonID)
		switch {
		case err == nil:
			doc.Stats = &stats
		case !errors.Is(err, sql.ErrNoRows):
			return doc, err
		}
		return doc, nil
	})
}

type ImportOptions struct {
	// DryRun runs the whole import and then rolls it back.
	DryRun bool
}

// ImportResult counts what an import wrote and what it left out.
type ImportResult struct {
	DryRun   bool           `json:"dryRun"`
	Created  map[string]int `json:"created"`
	Skipped  map[string]int `json:"skipped"`
	Warnings []string       `json:"warnings"`
}

func newImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		DryRun:   dryRun,
		Created:  map[string]int{},
		Skipped:  map[string]int{},
		Warnings: []string{},
	}
}

func (r *ImportResult) skip(entity, format string, args ...any) {
	r.Skipped[entity]++
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn().Str("op", "import").Str("entity", entity).Msg(msg)
}

var errDryRun = errors.New("dry run")

// wipeOrder lists content tables children first.
var wipeOrder = []string{"sub_services", "services", "projects", "categories", "partners", "timeline_events", "hero", "about", "contact"}

// Import replaces all site content with doc in one transaction. Records that
// cannot be placed, such as a project whose category is not in the document,
// are skipped and reported rather than failing the import.
func (s *Store) Import(ctx context.Context, doc Document, opts ImportOptions) (*ImportResult, error) {
	if doc.Version != "" && doc.Version != DocumentVersion {
		return nil, services.ErrBadRequest(fmt.Sprintf("Unsupported backup version %q", doc.Version))
	}
	result := newImportResult(opts.DryRun)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := importDocument(ctx, tx, doc, result); err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func importDocument(ctx context.Context, ext sqlx.ExtContext, doc Document, result *ImportResult) error {
	for _, table := range wipeOrder {
		if _, err := exec(ctx, ext, `DELETE FROM `+table); err != nil {
			return services.WrapError(err, "wipe "+table)
		}
	}

	if err := importSingletons(ctx, ext, doc, result); err != nil {
		return err
	}

	categoryIDs := map[string]int64{}
	for _, c := range doc.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			result.skip("categories", "category with empty name skipped")
			continue
		}
		if _, ok := categoryIDs[name]; ok {
			result.skip("categories", "duplicate category %q skipped", name)
			continue
		}
		id, err := insert(ctx, ext, `INSERT INTO categories (name) VALUES (?)`, name)
		if err != nil {
			return services.WrapError(err, "import category "+name)
		}
		categoryIDs[name] = id
		result.Created["categories"]++
	}

	for _, p := range doc.Projects {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			result.skip("projects", "project with empty title skipped")
			continue
		}
		categoryID, ok := categoryIDs[strings.TrimSpace(p.Category)]
		if !ok {
			result.skip("projects", "project %q skipped: unknown category %q", title, p.Category)
			continue
		}
		in := ProjectInput{
			Title:          &title,
			Description:    &p.Description,
			ImageURL:       &p.ImageURL,
			Client:         p.Client,
			CompletionDate: p.CompletionDate,
		}
		ref := models.RefID(categoryID)
		in.CategoryID = &ref
		if _, err := insertProject(ctx, ext, in); err != nil {
			return services.WrapError(err, "import project "+title)
		}
		result.Created["projects"]++
	}

	for _, svc := range doc.Services {
		title := strings.TrimSpace(svc.Title)
		if title == "" {
			result.skip("services", "service with empty title skipped")
			continue
		}
		serviceID, err := insert(ctx, ext, `INSERT INTO services (title, description, icon) VALUES (?, ?, ?)`,
			title, strings.TrimSpace(svc.Description), strings.TrimSpace(svc.Icon))
		if err != nil {
			return services.WrapError(err, "import service "+title)
		}
		result.Created["services"]++
		position := 0
		for _, sub := range svc.SubServices {
			subTitle := strings.TrimSpace(sub.Title)
			if subTitle == "" {
				result.skip("subServices", "sub-service of %q with empty title skipped", title)
				continue
			}
			row := models.SubService{Title: subTitle, Description: strings.TrimSpace(sub.Description)}
			if sub.ImageURL != nil {
				row.ImageURL = optional(*sub.ImageURL)
			}
			if _, err := insertSubService(ctx, ext, serviceID, position, row); err != nil {
				return services.WrapError(err, "import sub-service "+subTitle)
			}
			position++
			result.Created["subServices"]++
		}
	}

	for _, p := range doc.Partners {
		logo := strings.TrimSpace(p.LogoURL)
		if logo == "" {
			result.skip("partners", "partner without logo skipped")
			continue
		}
		if _, err := insert(ctx, ext, `INSERT INTO partners (logo_url) VALUES (?)`, logo); err != nil {
			return services.WrapError(err, "import partner")
		}
		result.Created["partners"]++
	}

	for _, ev := range doc.Timeline {
		row := models.TimelineEvent{
			Year:        strings.TrimSpace(ev.Year),
			Title:       strings.TrimSpace(ev.Title),
			Description: strings.TrimSpace(ev.Description),
		}
		if row.Year == "" || row.Title == "" {
			result.skip("timeline", "timeline event missing year or title skipped")
			continue
		}
		if _, err := insertTimelineEvent(ctx, ext, row); err != nil {
			return services.WrapError(err, "import timeline event")
		}
		result.Created["timeline"]++
	}

	if doc.Stats != nil {
		if _, err := exec(ctx, ext, `
INSERT INTO visit_stats (id, total_visits, unique_visitors) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET total_visits = excluded.total_visits, unique_visitors = excluded.unique_visitors`,
			models.SingletonID, doc.Stats.TotalVisits, doc.Stats.UniqueVisitors); err != nil {
			return services.WrapError(err, "import stats")
		}
	}
	return nil
}

func importSingletons(ctx context.Context, ext sqlx.ExtContext, doc Document, result *ImportResult) error {
	hero := models.Hero{}
	if doc.Hero != nil {
		hero = *doc.Hero
	}
	if _, err := exec(ctx, ext, `INSERT INTO hero (id, title, subtitle, cta_label, image_url) VALUES (?, ?, ?, ?, ?)`,
		models.SingletonID, hero.Title, hero.Subtitle, hero.CTALabel, hero.ImageURL); err != nil {
		return services.WrapError(err, "import hero")
	}

	about := models.About{}
	if doc.About != nil {
		about = *doc.About
	}
	values, err := encodeValues(about.Values)
	if err != nil {
		return err
	}
	if _, err := exec(ctx, ext, `INSERT INTO about (id, title, body, mission, vision, core_values) VALUES (?, ?, ?, ?, ?, ?)`,
		models.SingletonID, about.Title, about.Body, about.Mission, about.Vision, values); err != nil {
		return services.WrapError(err, "import about")
	}

	contact := models.Contact{}
	if doc.Contact != nil {
		contact = *doc.Contact
	}
	if _, err := exec(ctx, ext, `INSERT INTO contact (id, title, subtitle, address, phone, email, hours) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		models.SingletonID, contact.Title, contact.Subtitle, contact.Address, contact.Phone, contact.Email, contact.Hours); err != nil {
		return services.WrapError(err, "import contact")
	}

	for name, present := range map[string]bool{"hero": doc.Hero != nil, "about": doc.About != nil, "contact": doc.Contact != nil} {
		if present {
			result.Created[name]++
		}
	}
	return nil
}

func isNotFound(err error) bool {
	svcErr, ok := services.AsServiceError(err)
	return ok && svcErr.Status == 404
}
