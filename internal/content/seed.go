package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Seed prepares a fresh store. When the hero row is missing and path is set,
// the seed document is imported; afterwards empty singleton rows are ensured
// so updates never hit a missing row.
func (s *Store) Seed(ctx context.Context, path string) error {
	if path != "" {
		_, err := s.Hero(ctx)
		switch {
		case err == nil:
			log.Debug().Str("file", path).Msg("content present, seed skipped")
		case isNotFound(err):
			doc, err := ReadDocument(path)
			if err != nil {
				return err
			}
			result, err := s.Import(ctx, doc, ImportOptions{})
			if err != nil {
				return fmt.Errorf("seed import: %w", err)
			}
			log.Info().Str("file", path).Interface("created", result.Created).Interface("skipped", result.Skipped).Msg("content seeded")
		default:
			return err
		}
	}
	return s.EnsureSingletons(ctx)
}

func ReadDocument(path string) (Document, error) {
	var doc Document
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read seed file: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse seed file: %w", err)
	}
	return doc, nil
}
