package content

import (
	"context"
	"strings"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

const msgPartnerMissing = "Partner not found"

func (s *Store) Partners(ctx context.Context) ([]models.Partner, error) {
	return listPartners(ctx, s.db)
}

func listPartners(ctx context.Context, ext sqlx.ExtContext) ([]models.Partner, error) {
	items := []models.Partner{}
	err := list(ctx, ext, &items, `SELECT id, logo_url FROM partners ORDER BY id`)
	return items, err
}

func (s *Store) CreatePartner(ctx context.Context, in PartnerInput) (models.Partner, error) {
	if err := services.Validation(in.Validate()); err != nil {
		return models.Partner{}, err
	}
	logo := strings.TrimSpace(*in.LogoURL)
	id, err := insert(ctx, s.db, `INSERT INTO partners (logo_url) VALUES (?)`, logo)
	if err != nil {
		return models.Partner{}, err
	}
	return models.Partner{ID: id, LogoURL: logo}, nil
}

func (s *Store) UpdatePartner(ctx context.Context, id int64, in PartnerInput) (models.Partner, error) {
	if err := requirePositive(id, "id"); err != nil {
		return models.Partner{}, err
	}
	if err := services.Validation(in.Validate()); err != nil {
		return models.Partner{}, err
	}
	logo := strings.TrimSpace(*in.LogoURL)
	if err := execOne(ctx, s.db, msgPartnerMissing, `UPDATE partners SET logo_url = ? WHERE id = ?`, logo, id); err != nil {
		return models.Partner{}, err
	}
	return models.Partner{ID: id, LogoURL: logo}, nil
}

func (s *Store) DeletePartner(ctx context.Context, id int64) error {
	if err := requirePositive(id, "id"); err != nil {
		return err
	}
	return execOne(ctx, s.db, msgPartnerMissing, `DELETE FROM partners WHERE id = ?`, id)
}
