package content

import (
	"context"
	"strings"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

const (
	msgCategoryMissing  = "Category not found"
	msgCategoryConflict = "Category already exists"
)

func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	return listCategories(ctx, s.db)
}

func listCategories(ctx context.Context, ext sqlx.ExtContext) ([]models.Category, error) {
	items := []models.Category{}
	err := list(ctx, ext, &items, `SELECT id, name FROM categories ORDER BY id`)
	return items, err
}

func (s *Store) Category(ctx context.Context, id int64) (models.Category, error) {
	var item models.Category
	err := get(ctx, s.db, &item, `SELECT id, name FROM categories WHERE id = ?`, id)
	return item, notFound(err, msgCategoryMissing)
}

func (s *Store) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	if err := services.Validation(in.Validate()); err != nil {
		return models.Category{}, err
	}
	name := strings.TrimSpace(*in.Name)
	id, err := insert(ctx, s.db, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return models.Category{}, writeError(err, msgCategoryConflict, "")
	}
	return models.Category{ID: id, Name: name}, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (models.Category, error) {
	if err := requirePositive(id, "id"); err != nil {
		return models.Category{}, err
	}
	if err := services.Validation(in.Validate()); err != nil {
		return models.Category{}, err
	}
	name := strings.TrimSpace(*in.Name)
	err := execOne(ctx, s.db, msgCategoryMissing, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return models.Category{}, writeError(err, msgCategoryConflict, "")
	}
	return models.Category{ID: id, Name: name}, nil
}

// DeleteCategory removes a category; its projects go with it through the foreign key.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if err := requirePositive(id, "id"); err != nil {
		return err
	}
	return execOne(ctx, s.db, msgCategoryMissing, `DELETE FROM categories WHERE id = ?`, id)
}
