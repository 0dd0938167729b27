// -----------------------------------------------------------------------
// Eviction Service - cron-scheduled TTL sweeps per entry type plus a
// max-entries shed when the index outgrows its cap
// -----------------------------------------------------------------------

package eviction

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// shedAge is the cutoff used when the index exceeds its entry cap:
// everything older than a day goes, regardless of type-specific TTLs.
const shedAge = 24 * time.Hour

// SweepResult reports one eviction pass.
type SweepResult struct {
	Deleted  int            `json:"deleted"`
	ByType   map[string]int `json:"by_type"`
	Shed     int            `json:"shed"`
	Duration time.Duration  `json:"duration"`
}

// Service runs scheduled and on-demand eviction.
type Service struct {
	config *common.Config
	store  interfaces.VectorStore
	logger arbor.ILogger
	cron   *cron.Cron
}

// NewService creates the eviction service without starting the scheduler.
func NewService(config *common.Config, store interfaces.VectorStore, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		store:  store,
		logger: logger,
	}
}

// Start launches the cron scheduler and optionally runs a first sweep
// immediately.
func (s *Service) Start(ctx context.Context) error {
	if s.config.Eviction.DisableSweeper {
		s.logger.Debug().Msg("Eviction sweeper disabled")
		return nil
	}

	schedule := s.config.Eviction.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled eviction sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid eviction schedule %q: %w", schedule, err)
	}
	s.cron.Start()

	if s.config.Eviction.RunOnStartup {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Startup eviction sweep failed")
		}
	}

	s.logger.Info().Str("schedule", schedule).Msg("Eviction scheduler started")
	return nil
}

// Stop halts the scheduler; a sweep in flight finishes.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// ttls maps entry types to their configured lifetimes.
func (s *Service) ttls() map[string]time.Duration {
	parse := func(raw string, def time.Duration) time.Duration {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		return def
	}
	return map[string]time.Duration{
		models.EntryTypeSearchResult: parse(s.config.Eviction.SearchTTL, 24*time.Hour),
		models.EntryTypeQueryCache:   parse(s.config.Eviction.QueryCacheTTL, 6*time.Hour),
		models.EntryTypeCrawlChunk:   parse(s.config.Eviction.CrawlChunkTTL, 168*time.Hour),
	}
}

// Sweep deletes expired entries per type, then sheds old entries if the
// index still exceeds its cap.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{ByType: make(map[string]int)}

	now := time.Now()
	for entryType, ttl := range s.ttls() {
		deleted, err := s.store.DeleteByMetadata(ctx, &models.MetadataFilter{
			EntryType:     entryType,
			CreatedBefore: now.Add(-ttl),
		})
		if err != nil {
			return nil, fmt.Errorf("eviction sweep failed for %s: %w", entryType, err)
		}
		result.ByType[entryType] = deleted
		result.Deleted += deleted
	}

	if s.config.Storage.MaxEntries > 0 {
		count, err := s.store.Count(ctx, "")
		if err != nil {
			return nil, err
		}
		if count > s.config.Storage.MaxEntries {
			shed, err := s.store.DeleteByMetadata(ctx, &models.MetadataFilter{
				CreatedBefore: now.Add(-shedAge),
			})
			if err != nil {
				return nil, fmt.Errorf("eviction shed failed: %w", err)
			}
			result.Shed = shed
			result.Deleted += shed
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("deleted", result.Deleted).
		Int("shed", result.Shed).
		Dur("duration", result.Duration).
		Msg("Eviction sweep complete")
	return result, nil
}

// FlushAll removes every entry regardless of age. The cutoff sits just
// past now so entries written this instant are included.
func (s *Service) FlushAll(ctx context.Context) (int, error) {
	return s.store.DeleteByMetadata(ctx, &models.MetadataFilter{
		CreatedBefore: time.Now().Add(time.Second),
	})
}
