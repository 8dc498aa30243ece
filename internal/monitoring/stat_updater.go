package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/isdelr/tweeter-be/internal/metrics"
	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// StatUpdater periodically refreshes the community size gauges.
type StatUpdater struct {
	db       *gorm.DB
	log      zerolog.Logger
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewStatUpdater creates a new StatUpdater. A non-positive interval defaults to one minute.
func NewStatUpdater(db *gorm.DB, interval time.Duration, log zerolog.Logger) *StatUpdater {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatUpdater{
		db:       db,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run starts the periodic updates and blocks until Stop is called.
func (su *StatUpdater) Run() {
	su.log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.update()

	for {
		select {
		case <-su.done:
			su.log.Info().Msg("Stopping background stat updater.")
			return
		case <-ticker.C:
			su.update()
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	su.stopOnce.Do(func() { close(su.done) })
}

// Collect counts stored rows and publishes them to the gauges.
func (su *StatUpdater) Collect(ctx context.Context) (map[string]int64, error) {
	db := su.db.WithContext(ctx)
	totals := map[string]int64{}
	for kind, model := range map[string]interface{}{
		"users":   &models.User{},
		"tweets":  &models.Tweet{},
		"likes":   &models.Like{},
		"follows": &models.Follow{},
	} {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			return nil, err
		}
		totals[kind] = n
		metrics.CommunityTotals.WithLabelValues(kind).Set(float64(n))
	}
	return totals, nil
}

func (su *StatUpdater) update() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := su.Collect(ctx); err != nil {
		su.log.Error().Err(err).Msg("StatUpdater: Failed to count community totals")
	}
}
