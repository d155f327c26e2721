package content

import (
	"context"
	"encoding/json"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

const (
	msgHeroMissing    = "Hero content not found"
	msgAboutMissing   = "About content not found"
	msgContactMissing = "Contact content not found"
)

// EnsureSingletons inserts empty hero, about and contact rows when absent.
func (s *Store) EnsureSingletons(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return ensureSingletons(ctx, tx)
	})
}

func ensureSingletons(ctx context.Context, ext sqlx.ExtContext) error {
	for _, table := range []string{"hero", "about", "contact"} {
		if _, err := exec(ctx, ext, `INSERT INTO `+table+` (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, models.SingletonID); err != nil {
			return services.WrapError(err, "ensure "+table)
		}
	}
	return nil
}

func (s *Store) Hero(ctx context.Context) (models.Hero, error) {
	return getHero(ctx, s.db)
}

func getHero(ctx context.Context, ext sqlx.ExtContext) (models.Hero, error) {
	var hero models.Hero
	err := get(ctx, ext, &hero, `SELECT id, title, subtitle, cta_label, image_url FROM hero WHERE id = ?`, models.SingletonID)
	return hero, notFound(err, msgHeroMissing)
}

func (s *Store) UpdateHero(ctx context.Context, in HeroInput) (models.Hero, error) {
	if err := services.Validation(in.Validate()); err != nil {
		return models.Hero{}, err
	}
	var hero models.Hero
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if hero, err = getHero(ctx, tx); err != nil {
			return err
		}
		in.apply(&hero)
		return execOne(ctx, tx, msgHeroMissing, `
UPDATE hero SET title = ?, subtitle = ?, cta_label = ?, image_url = ? WHERE id = ?`,
			hero.Title, hero.Subtitle, hero.CTALabel, hero.ImageURL, models.SingletonID)
	})
	return hero, err
}

func (s *Store) About(ctx context.Context) (models.About, error) {
	return getAbout(ctx, s.db)
}

func getAbout(ctx context.Context, ext sqlx.ExtContext) (models.About, error) {
	var about models.About
	err := get(ctx, ext, &about, `SELECT id, title, body, mission, vision, core_values FROM about WHERE id = ?`, models.SingletonID)
	if err != nil {
		return about, notFound(err, msgAboutMissing)
	}
	about.Values = []string{}
	if about.ValuesJSON != "" {
		if err := json.Unmarshal([]byte(about.ValuesJSON), &about.Values); err != nil {
			return about, services.WrapError(err, "decode about values")
		}
	}
	return about, nil
}

func (s *Store) UpdateAbout(ctx context.Context, in AboutInput) (models.About, error) {
	if err := services.Validation(in.Validate()); err != nil {
		return models.About{}, err
	}
	var about models.About
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if about, err = getAbout(ctx, tx); err != nil {
			return err
		}
		in.apply(&about)
		values, err := encodeValues(about.Values)
		if err != nil {
			return err
		}
		about.ValuesJSON = values
		return execOne(ctx, tx, msgAboutMissing, `
UPDATE about SET title = ?, body = ?, mission = ?, vision = ?, core_values = ? WHERE id = ?`,
			about.Title, about.Body, about.Mission, about.Vision, about.ValuesJSON, models.SingletonID)
	})
	return about, err
}

func encodeValues(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	return string(raw), err
}

func (s *Store) Contact(ctx context.Context) (models.Contact, error) {
	return getContact(ctx, s.db)
}

func getContact(ctx context.Context, ext sqlx.ExtContext) (models.Contact, error) {
	var contact models.Contact
	err := get(ctx, ext, &contact, `SELECT id, title, subtitle, address, phone, email, hours FROM contact WHERE id = ?`, models.SingletonID)
	return contact, notFound(err, msgContactMissing)
}

func (s *Store) UpdateContact(ctx context.Context, in ContactInput) (models.Contact, error) {
	if err := services.Validation(in.Validate()); err != nil {
		return models.Contact{}, err
	}
	var contact models.Contact
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if contact, err = getContact(ctx, tx); err != nil {
			return err
		}
		in.apply(&contact)
		return execOne(ctx, tx, msgContactMissing, `
UPDATE contact SET title = ?, subtitle = ?, address = ?, phone = ?, email = ?, hours = ? WHERE id = ?`,
			contact.Title, contact.Subtitle, contact.Address, contact.Phone, contact.Email, contact.Hours, models.SingletonID)
	})
	return contact, err
}
