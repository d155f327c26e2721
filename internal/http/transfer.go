package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/services"
	"civilsite-backend-go/internal/site"

	"github.com/rs/zerolog/log"
)

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Visits.Stats(r.Context())
	if err != nil {
		s.fail(w, r, "visit stats", err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// Backup downloads the full-site export as an attachment.
func (s *Server) Backup(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Store.Export(r.Context())
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	filename := fmt.Sprintf("site-backup-%s.json", doc.ExportedAt.UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// Import restores a backup document. ?dryRun=true reports what would change
// and rolls back.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	opts := content.ImportOptions{}
	if raw := r.URL.Query().Get("dryRun"); raw != "" {
		dry, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, r, "import", services.ErrBadRequest("dryRun must be true or false"))
			return
		}
		opts.DryRun = dry
	}

	var doc content.Document
	if err := decode(w, r, &doc, maxImportBytes); err != nil {
		s.fail(w, r, "import", err)
		return
	}
	start := time.Now()
	result, err := s.Store.Import(r.Context(), doc, opts)
	if err != nil {
		s.fail(w, r, "import", err)
		return
	}
	if !result.DryRun {
		s.changed(r.Context(), site.EntityAll)
	}
	log.Info().
		Bool("dry_run", result.DryRun).
		Interface("created", result.Created).
		Interface("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("import finished")
	WriteJSON(w, http.StatusOK, result)
}
