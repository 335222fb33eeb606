package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Updater periodically updates metrics from the database
type Updater struct {
	db       *pgxpool.Pool
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater
func NewUpdater(db *pgxpool.Pool, interval time.Duration) *Updater {
	return &Updater{
		db:       db,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics update loop
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	// Update immediately on start
	u.update(ctx)

	for {
		select {
		case <-ticker.C:
			u.update(ctx)
		case <-u.stopCh:
			log.Info().Msg("Metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater
func (u *Updater) Stop() {
	close(u.stopCh)
}

// update fetches and updates all metrics
func (u *Updater) update(ctx context.Context) {
	log.Debug().Msg("Updating metrics from database")

	u.updateStrategyMetrics(ctx)
	u.updateDatabaseMetrics()

	log.Debug().Msg("Metrics updated successfully")
}

// updateStrategyMetrics updates the count of approved strategies by kind
func (u *Updater) updateStrategyMetrics(ctx context.Context) {
	query := `
		SELECT kind, COUNT(*)
		FROM strategies
		WHERE status = 'approved'
		GROUP BY kind
	`

	rows, err := u.db.Query(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch approved strategy counts")
		return
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			continue
		}
		seen[kind] = true
		UpdateApprovedStrategies(kind, count)
	}

	for _, kind := range []string{"direct", "cross_venue", "triangular"} {
		if !seen[kind] {
			UpdateApprovedStrategies(kind, 0)
		}
	}
}

// updateDatabaseMetrics updates database connection pool metrics
func (u *Updater) updateDatabaseMetrics() {
	stat := u.db.Stat()
	UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
}
