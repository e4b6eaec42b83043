package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/Dipanshuofficial/Flow/internal/api/repo"
	"github.com/rs/zerolog"
)

// SnapshotKey is the fixed key the session snapshot lives under.
const SnapshotKey = "__flow_snapshot__"

const storeTimeout = 5 * time.Second

// PersistenceService bridges the graph to durable storage. Writes are debounced
// through the idle scheduler, reads are synchronous.
type PersistenceService struct {
	repo      repo.SnapshotRepository
	scheduler *IdleScheduler
	key       string
	logger    zerolog.Logger
}

func NewPersistenceService(snapshots repo.SnapshotRepository, scheduler *IdleScheduler, logger zerolog.Logger) *PersistenceService {
	return &PersistenceService{
		repo:      snapshots,
		scheduler: scheduler,
		key:       SnapshotKey,
		logger:    logger,
	}
}

// Persist eventually writes state. Only the last state of a burst reaches the store.
func (slf *PersistenceService) Persist(state GraphState) {
	snapshot := SerializeState(state)
	slf.scheduler.Schedule(func() {
		data, err := EncodeSnapshot(snapshot)
		if err != nil {
			slf.logger.Error().Err(err).Msg("Failed to encode flow snapshot")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := slf.repo.Set(ctx, slf.key, data); err != nil {
			slf.logger.Error().Err(err).Str("key", slf.key).Msg("Failed to autosave flow")
			return
		}
		slf.logger.Debug().
			Int("nodes", len(snapshot.Nodes)).
			Int("edges", len(snapshot.Edges)).
			Msg("Flow autosaved")
	})
}

// Restore reads the stored snapshot. A missing or unreadable snapshot yields nil,
// which callers treat as a fresh session.
func (slf *PersistenceService) Restore() *models.Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, err := slf.repo.Get(ctx, slf.key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		slf.logger.Error().Err(err).Str("key", slf.key).Msg("Failed to restore flow")
		return nil
	}

	snapshot, err := DecodeSnapshot(raw)
	if err != nil {
		slf.logger.Error().Err(err).Str("key", slf.key).Msg("Failed to restore flow")
		return nil
	}
	return snapshot
}

// Clear settles any pending write, then removes the stored snapshot.
func (slf *PersistenceService) Clear(ctx context.Context) error {
	slf.scheduler.Flush()
	return slf.repo.Delete(ctx, slf.key)
}

// Close writes whatever is still pending and stops the scheduler.
func (slf *PersistenceService) Close() {
	slf.scheduler.Flush()
	slf.scheduler.Stop()
}
