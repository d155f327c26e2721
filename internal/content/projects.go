package content

import (
	"context"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

const (
	msgProjectMissing   = "Project not found"
	msgCategoryRefWrong = "categoryId does not reference an existing category"
)

const projectColumns = `p.id, p.title, p.description, p.image_url, p.client, p.completion_date, p.category_id, c.name AS category_name`

func (s *Store) Projects(ctx context.Context) ([]models.Project, error) {
	return listProjects(ctx, s.db)
}

func listProjects(ctx context.Context, ext sqlx.ExtContext) ([]models.Project, error) {
	items := []models.Project{}
	err := list(ctx, ext, &items, `
SELECT `+projectColumns+`
FROM projects p
JOIN categories c ON c.id = p.category_id
ORDER BY p.id`)
	return items, err
}

func (s *Store) Project(ctx context.Context, id int64) (models.Project, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, ext sqlx.ExtContext, id int64) (models.Project, error) {
	var item models.Project
	err := get(ctx, ext, &item, `
SELECT `+projectColumns+`
FROM projects p
JOIN categories c ON c.id = p.category_id
WHERE p.id = ?`, id)
	return item, notFound(err, msgProjectMissing)
}

func (s *Store) CreateProject(ctx context.Context, in ProjectInput) (models.Project, error) {
	if err := services.Validation(in.ValidateCreate()); err != nil {
		return models.Project{}, err
	}
	var created models.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insertProject(ctx, tx, in)
		if err != nil {
			return err
		}
		created, err = getProject(ctx, tx, id)
		return err
	})
	return created, err
}

func insertProject(ctx context.Context, ext sqlx.ExtContext, in ProjectInput) (int64, error) {
	var p models.Project
	in.apply(&p)
	id, err := insert(ctx, ext, `
INSERT INTO projects (title, description, image_url, client, completion_date, category_id)
VALUES (?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.ImageURL, p.Client, p.CompletionDate, p.CategoryID)
	return id, writeError(err, "", msgCategoryRefWrong)
}

func (s *Store) UpdateProject(ctx context.Context, id int64, in ProjectInput) (models.Project, error) {
	if err := requirePositive(id, "id"); err != nil {
		return models.Project{}, err
	}
	if err := services.Validation(in.ValidateUpdate()); err != nil {
		return models.Project{}, err
	}
	var updated models.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getProject(ctx, tx, id)
		if err != nil {
			return err
		}
		in.apply(&current)
		_, err = exec(ctx, tx, `
UPDATE projects
SET title = ?, description = ?, image_url = ?, client = ?, completion_date = ?, category_id = ?
WHERE id = ?`,
			current.Title, current.Description, current.ImageURL, current.Client, current.CompletionDate, current.CategoryID, id)
		if err != nil {
			return writeError(err, "", msgCategoryRefWrong)
		}
		updated, err = getProject(ctx, tx, id)
		return err
	})
	return updated, err
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	if err := requirePositive(id, "id"); err != nil {
		return err
	}
	return execOne(ctx, s.db, msgProjectMissing, `DELETE FROM projects WHERE id = ?`, id)
}

// ReplaceProjects deletes every project and inserts items in order, all in one transaction.
// One invalid record leaves the existing projects untouched.
func (s *Store) ReplaceProjects(ctx context.Context, items []ProjectInput) ([]models.Project, error) {
	for i, in := range items {
		if err := services.Validation(in.ValidateCreate()); err != nil {
			return nil, services.ErrBadRequest(itemMessage(i, err))
		}
	}
	var result []models.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, `DELETE FROM projects`); err != nil {
			return err
		}
		for i, in := range items {
			if _, err := insertProject(ctx, tx, in); err != nil {
				if svcErr, ok := services.AsServiceError(err); ok {
					return services.ErrBadRequest(itemMessage(i, svcErr))
				}
				return err
			}
		}
		var err error
		result, err = listProjects(ctx, tx)
		return err
	})
	return result, err
}
