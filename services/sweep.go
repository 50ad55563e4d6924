package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
)

const sweepBatchLimit = 50

type sweepStore interface {
	ListUnprocessedMaterials(ctx context.Context, limit int64) ([]models.CourseMaterial, error)
}

type sweepEnqueuer interface {
	EnqueueMaterial(materialID string) error
}

// Sweeper periodically re-enqueues materials whose processing never
// finished, picking up uploads whose original task was lost or crashed
// between stages.
type Sweeper struct {
	store     sweepStore
	enqueuer  sweepEnqueuer
	scheduler *gocron.Scheduler
	interval  time.Duration
}

func NewSweeper(store sweepStore, enqueuer sweepEnqueuer, interval time.Duration) *Sweeper {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Sweeper{
		store:     store,
		enqueuer:  enqueuer,
		scheduler: s,
		interval:  interval,
	}
}

func (s *Sweeper) Start() error {
	_, err := s.scheduler.Every(s.interval).Tag("material-sweep").Do(func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Info("Material sweep scheduled", "interval", s.interval.String())
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep enqueues one batch of stuck materials and returns how many it
// submitted. Materials with a recorded error are included: the error may
// have been transient and the pipeline skips completed stages anyway.
func (s *Sweeper) Sweep(ctx context.Context) int {
	materials, err := s.store.ListUnprocessedMaterials(ctx, sweepBatchLimit)
	if err != nil {
		logger.Error("Sweep lookup failed", "error", err)
		return 0
	}
	if len(materials) == 0 {
		return 0
	}

	enqueued := 0
	for _, material := range materials {
		if err := s.enqueuer.EnqueueMaterial(material.ID.Hex()); err != nil {
			logger.Error("Sweep enqueue failed",
				"material_id", material.ID.Hex(), "error", err)
			continue
		}
		enqueued++
	}

	logger.Info("Sweep re-enqueued unprocessed materials",
		"found", len(materials), "enqueued", enqueued)
	return enqueued
}
