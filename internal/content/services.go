package content

import (
	"context"
	"fmt"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

const (
	msgServiceMissing    = "Service not found"
	msgSubServiceMissing = "Sub-service not found"
	msgServiceRefWrong   = "serviceId does not reference an existing service"
)

const subServiceColumns = `id, service_id, title, description, image_url, position`

func (s *Store) Services(ctx context.Context) ([]models.Service, error) {
	return listServices(ctx, s.db)
}

// listServices returns services in id order, each with its sub-services in position order.
func listServices(ctx context.Context, ext sqlx.ExtContext) ([]models.Service, error) {
	items := []models.Service{}
	if err := list(ctx, ext, &items, `SELECT id, title, description, icon FROM services ORDER BY id`); err != nil {
		return nil, err
	}
	subs := []models.SubService{}
	if err := list(ctx, ext, &subs, `SELECT `+subServiceColumns+` FROM sub_services ORDER BY service_id, position, id`); err != nil {
		return nil, err
	}
	byService := make(map[int64][]models.SubService, len(items))
	for _, sub := range subs {
		byService[sub.ServiceID] = append(byService[sub.ServiceID], sub)
	}
	for i := range items {
		items[i].SubServices = byService[items[i].ID]
		if items[i].SubServices == nil {
			items[i].SubServices = []models.SubService{}
		}
	}
	return items, nil
}

func (s *Store) Service(ctx context.Context, id int64) (models.Service, error) {
	return getService(ctx, s.db, id)
}

func getService(ctx context.Context, ext sqlx.ExtContext, id int64) (models.Service, error) {
	var svc models.Service
	if err := get(ctx, ext, &svc, `SELECT id, title, description, icon FROM services WHERE id = ?`, id); err != nil {
		return svc, notFound(err, msgServiceMissing)
	}
	svc.SubServices = []models.SubService{}
	err := list(ctx, ext, &svc.SubServices, `SELECT `+subServiceColumns+` FROM sub_services WHERE service_id = ? ORDER BY position, id`, id)
	return svc, err
}

func (s *Store) CreateService(ctx context.Context, in ServiceInput) (models.Service, error) {
	if err := services.Validation(in.ValidateCreate()); err != nil {
		return models.Service{}, err
	}
	var created models.Service
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var svc models.Service
		in.apply(&svc)
		id, err := insert(ctx, tx, `INSERT INTO services (title, description, icon) VALUES (?, ?, ?)`,
			svc.Title, svc.Description, svc.Icon)
		if err != nil {
			return err
		}
		if in.SubServices != nil {
			if err := replaceSubServices(ctx, tx, id, *in.SubServices); err != nil {
				return err
			}
		}
		created, err = getService(ctx, tx, id)
		return err
	})
	return created, err
}

func (s *Store) UpdateService(ctx context.Context, id int64, in ServiceInput) (models.Service, error) {
	if err := requirePositive(id, "id"); err != nil {
		return models.Service{}, err
	}
	if err := services.Validation(in.ValidateUpdate()); err != nil {
		return models.Service{}, err
	}
	var updated models.Service
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		updated, err = updateService(ctx, tx, id, in)
		return err
	})
	return updated, err
}

func updateService(ctx context.Context, ext sqlx.ExtContext, id int64, in ServiceInput) (models.Service, error) {
	current, err := getService(ctx, ext, id)
	if err != nil {
		return models.Service{}, err
	}
	in.apply(&current)
	if _, err := exec(ctx, ext, `UPDATE services SET title = ?, description = ?, icon = ? WHERE id = ?`,
		current.Title, current.Description, current.Icon, id); err != nil {
		return models.Service{}, err
	}
	if in.SubServices != nil {
		if err := replaceSubServices(ctx, ext, id, *in.SubServices); err != nil {
			return models.Service{}, err
		}
	}
	return getService(ctx, ext, id)
}

// BulkUpdateServices applies every item as a per-id update in one transaction.
// Items carrying subServices have that service's sub-services replaced.
func (s *Store) BulkUpdateServices(ctx context.Context, items []ServiceBulkItem) ([]models.Service, error) {
	for i, item := range items {
		if item.ID <= 0 {
			return nil, services.ErrBadRequest(fmt.Sprintf("item %d: id must be a positive integer id", i))
		}
		if err := services.Validation(item.ValidateUpdate()); err != nil {
			return nil, services.ErrBadRequest(itemMessage(i, err))
		}
	}
	var result []models.Service
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for i, item := range items {
			if _, err := updateService(ctx, tx, item.ID.Int64(), item.ServiceInput); err != nil {
				if svcErr, ok := services.AsServiceError(err); ok {
					return services.ServiceError{Status: svcErr.Status, Message: itemMessage(i, svcErr)}
				}
				return err
			}
		}
		var err error
		result, err = listServices(ctx, tx)
		return err
	})
	return result, err
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	if err := requirePositive(id, "id"); err != nil {
		return err
	}
	return execOne(ctx, s.db, msgServiceMissing, `DELETE FROM services WHERE id = ?`, id)
}

func replaceSubServices(ctx context.Context, ext sqlx.ExtContext, serviceID int64, subs []SubServiceInput) error {
	if _, err := exec(ctx, ext, `DELETE FROM sub_services WHERE service_id = ?`, serviceID); err != nil {
		return err
	}
	for pos, in := range subs {
		var sub models.SubService
		in.apply(&sub)
		if _, err := insertSubService(ctx, ext, serviceID, pos, sub); err != nil {
			return err
		}
	}
	return nil
}

func insertSubService(ctx context.Context, ext sqlx.ExtContext, serviceID int64, position int, sub models.SubService) (int64, error) {
	id, err := insert(ctx, ext, `
INSERT INTO sub_services (service_id, title, description, image_url, position)
VALUES (?, ?, ?, ?, ?)`,
		serviceID, sub.Title, sub.Description, sub.ImageURL, position)
	return id, writeError(err, "", msgServiceRefWrong)
}

// SubServices lists sub-services, optionally restricted to one service.
func (s *Store) SubServices(ctx context.Context, serviceID int64) ([]models.SubService, error) {
	items := []models.SubService{}
	if serviceID > 0 {
		err := list(ctx, s.db, &items, `SELECT `+subServiceColumns+` FROM sub_services WHERE service_id = ? ORDER BY position, id`, serviceID)
		return items, err
	}
	err := list(ctx, s.db, &items, `SELECT `+subServiceColumns+` FROM sub_services ORDER BY service_id, position, id`)
	return items, err
}

func getSubService(ctx context.Context, ext sqlx.ExtContext, id int64) (models.SubService, error) {
	var sub models.SubService
	err := get(ctx, ext, &sub, `SELECT `+subServiceColumns+` FROM sub_services WHERE id = ?`, id)
	return sub, notFound(err, msgSubServiceMissing)
}

func (s *Store) CreateSubService(ctx context.Context, in SubServiceInput) (models.SubService, error) {
	if in.ServiceID == nil || *in.ServiceID <= 0 {
		return models.SubService{}, services.ErrBadRequest("serviceId is required")
	}
	if err := services.Validation(in.Validate()); err != nil {
		return models.SubService{}, err
	}
	var created models.SubService
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var sub models.SubService
		in.apply(&sub)
		var next int
		if err := get(ctx, tx, &next, `SELECT COALESCE(MAX(position) + 1, 0) FROM sub_services WHERE service_id = ?`, sub.ServiceID); err != nil {
			return err
		}
		id, err := insertSubService(ctx, tx, sub.ServiceID, next, sub)
		if err != nil {
			return err
		}
		created, err = getSubService(ctx, tx, id)
		return err
	})
	return created, err
}

func (s *Store) UpdateSubService(ctx context.Context, id int64, in SubServiceInput) (models.SubService, error) {
	if err := requirePositive(id, "id"); err != nil {
		return models.SubService{}, err
	}
	if err := services.Validation(in.ValidateUpdate()); err != nil {
		return models.SubService{}, err
	}
	var updated models.SubService
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getSubService(ctx, tx, id)
		if err != nil {
			return err
		}
		in.apply(&current)
		_, err = exec(ctx, tx, `
UPDATE sub_services SET service_id = ?, title = ?, description = ?, image_url = ? WHERE id = ?`,
			current.ServiceID, current.Title, current.Description, current.ImageURL, id)
		if err != nil {
			return writeError(err, "", msgServiceRefWrong)
		}
		updated = current
		return nil
	})
	return updated, err
}

func (s *Store) DeleteSubService(ctx context.Context, id int64) error {
	if err := requirePositive(id, "id"); err != nil {
		return err
	}
	return execOne(ctx, s.db, msgSubServiceMissing, `DELETE FROM sub_services WHERE id = ?`, id)
}

func itemMessage(i int, err error) string {
	return fmt.Sprintf("item %d: %s", i, err.Error())
}
