package content

import (
	"context"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

const msgTimelineMissing = "Timeline event not found"

// Timeline returns events by year, compared as text, then id.
func (s *Store) Timeline(ctx context.Context) ([]models.TimelineEvent, error) {
	return listTimeline(ctx, s.db)
}

func listTimeline(ctx context.Context, ext sqlx.ExtContext) ([]models.TimelineEvent, error) {
	items := []models.TimelineEvent{}
	err := list(ctx, ext, &items, `SELECT id, year, title, description FROM timeline_events ORDER BY year, id`)
	return items, err
}

func getTimelineEvent(ctx context.Context, ext sqlx.ExtContext, id int64) (models.TimelineEvent, error) {
	var ev models.TimelineEvent
	err := get(ctx, ext, &ev, `SELECT id, year, title, description FROM timeline_events WHERE id = ?`, id)
	return ev, notFound(err, msgTimelineMissing)
}

func (s *Store) CreateTimelineEvent(ctx context.Context, in TimelineInput) (models.TimelineEvent, error) {
	if err := services.Validation(in.ValidateCreate()); err != nil {
		return models.TimelineEvent{}, err
	}
	var ev models.TimelineEvent
	in.apply(&ev)
	id, err := insertTimelineEvent(ctx, s.db, ev)
	if err != nil {
		return models.TimelineEvent{}, err
	}
	ev.ID = id
	return ev, nil
}

func insertTimelineEvent(ctx context.Context, ext sqlx.ExtContext, ev models.TimelineEvent) (int64, error) {
	return insert(ctx, ext, `INSERT INTO timeline_events (year, title, description) VALUES (?, ?, ?)`,
		ev.Year, ev.Title, ev.Description)
}

func (s *Store) UpdateTimelineEvent(ctx context.Context, id int64, in TimelineInput) (models.TimelineEvent, error) {
	if err := requirePositive(id, "id"); err != nil {
		return models.TimelineEvent{}, err
	}
	if err := services.Validation(in.ValidateUpdate()); err != nil {
		return models.TimelineEvent{}, err
	}
	var updated models.TimelineEvent
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getTimelineEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		in.apply(&current)
		if _, err := exec(ctx, tx, `UPDATE timeline_events SET year = ?, title = ?, description = ? WHERE id = ?`,
			current.Year, current.Title, current.Description, id); err != nil {
			return err
		}
		updated = current
		return nil
	})
	return updated, err
}

func (s *Store) DeleteTimelineEvent(ctx context.Context, id int64) error {
	if err := requirePositive(id, "id"); err != nil {
		return err
	}
	return execOne(ctx, s.db, msgTimelineMissing, `DELETE FROM timeline_events WHERE id = ?`, id)
}
