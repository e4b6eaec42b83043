package flow

import (
	"fmt"

	"github.com/Dipanshuofficial/Flow/internal/api/repo"
	"github.com/rs/zerolog"
)

// OpenSnapshotRepository connects the durable store selected by KV_BACKEND.
// The returned func releases the underlying connection.
func OpenSnapshotRepository(cfg AppConfig, log zerolog.Logger) (repo.SnapshotRepository, func(), error) {
	switch cfg.KVBackend {
	case BackendRedis:
		client, err := ConnectToRedis(cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", client.Options().Addr).Msg("Snapshot store: redis")
		return repo.NewRedisSnapshotRepository(client, cfg.SnapshotTTL), func() { client.Close() }, nil

	case BackendPostgres:
		db, err := ConnectToPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		snapshots := repo.NewPostgresSnapshotRepository(db)
		if err := snapshots.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("migrate snapshot table: %w", err)
		}
		log.Info().Str("database", cfg.MainDatabase.DatabaseName).Msg("Snapshot store: postgres")
		return snapshots, func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil

	case BackendMemory:
		log.Warn().Msg("Snapshot store: memory, sessions will not survive a restart")
		return repo.NewMemorySnapshotRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
}
