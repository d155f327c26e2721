package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"civilsite-backend-go/internal/db"
	"civilsite-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/mileusna/useragent"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// VisitModeIPDay counts one unique visitor per client IP per UTC day.
	VisitModeIPDay = "ip-day"
	// VisitModeLegacy counts a unique visitor on every third visit.
	VisitModeLegacy = "legacy"

	legacyUniqueEvery = 3
	dayLayout         = "2006-01-02"
)

type VisitTracker struct {
	DB        *sqlx.DB
	Mode      string
	Salt      string
	TxTimeout time.Duration
	now       func() time.Time
}

func NewVisitTracker(conn *sqlx.DB, mode, salt string, txTimeout time.Duration) *VisitTracker {
	if mode != VisitModeLegacy {
		mode = VisitModeIPDay
	}
	return &VisitTracker{DB: conn, Mode: mode, Salt: salt, TxTimeout: txTimeout, now: time.Now}
}

func (t *VisitTracker) clock() time.Time {
	if t.now == nil {
		return time.Now().UTC()
	}
	return t.now().UTC()
}

// ShouldTrack reports whether a request with this user agent counts as a visit.
// Only recognised crawlers are skipped; a missing user agent still counts.
func ShouldTrack(userAgent string) bool {
	if userAgent == "" {
		return true
	}
	return !useragent.Parse(userAgent).Bot
}

func (t *VisitTracker) visitorHash(ip, day string) string {
	sum := sha256.Sum256([]byte(t.Salt + "|" + ip + "|" + day))
	return hex.EncodeToString(sum[:])
}

// Stats returns the counters, creating the row on first use.
func (t *VisitTracker) Stats(ctx context.Context) (models.VisitStats, error) {
	if err := ensureVisitStats(ctx, t.DB); err != nil {
		return models.VisitStats{}, err
	}
	var stats models.VisitStats
	err := t.DB.GetContext(ctx, &stats, t.DB.Rebind(`SELECT total_visits, unique_visitors FROM visit_stats WHERE id = ?`), models.SingletonID)
	return stats, err
}

func ensureVisitStats(ctx context.Context, ext sqlx.ExtContext) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`
INSERT INTO visit_stats (id, total_visits, unique_visitors) VALUES (?, 0, 0) ON CONFLICT (id) DO NOTHING`), models.SingletonID)
	return err
}

// Record counts one visit. Total visits always go up by one; whether unique
// visitors do depends on Mode.
func (t *VisitTracker) Record(ctx context.Context, ip string) (models.VisitStats, error) {
	return db.WithTxResult(ctx, t.DB, t.TxTimeout, nil, func(tx *sqlx.Tx) (models.VisitStats, error) {
		var stats models.VisitStats
		if err := ensureVisitStats(ctx, tx); err != nil {
			return stats, err
		}

		newVisitor := false
		if t.Mode == VisitModeIPDay {
			day := t.clock().Format(dayLayout)
			res, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO visit_days (day, visitor_hash) VALUES (?, ?) ON CONFLICT (day, visitor_hash) DO NOTHING`),
				day, t.visitorHash(ip, day))
			if err != nil {
				return stats, err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return stats, err
			}
			newVisitor = n == 1
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE visit_stats SET total_visits = total_visits + 1 WHERE id = ?`), models.SingletonID); err != nil {
			return stats, err
		}
		if err := tx.GetContext(ctx, &stats, tx.Rebind(`SELECT total_visits, unique_visitors FROM visit_stats WHERE id = ?`), models.SingletonID); err != nil {
			return stats, err
		}
		if t.Mode == VisitModeLegacy {
			newVisitor = stats.TotalVisits%legacyUniqueEvery == 0
		}
		if newVisitor {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE visit_stats SET unique_visitors = unique_visitors + 1 WHERE id = ?`), models.SingletonID); err != nil {
				return stats, err
			}
			stats.UniqueVisitors++
		}
		return stats, nil
	})
}

// PruneDays drops per-day visitor records older than keepDays.
func (t *VisitTracker) PruneDays(ctx context.Context, keepDays int) (int64, error) {
	cutoff := t.clock().AddDate(0, 0, -keepDays).Format(dayLayout)
	res, err := t.DB.ExecContext(ctx, t.DB.Rebind(`DELETE FROM visit_days WHERE day < ?`), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartVisitPruner schedules a daily PruneDays run. Stop the returned cron on shutdown.
func StartVisitPruner(tracker *VisitTracker, keepDays int) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := tracker.PruneDays(ctx, keepDays)
		if err != nil {
			log.Error().Err(err).Msg("prune visit days")
			return
		}
		log.Info().Int64("removed", n).Msg("visit days pruned")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
