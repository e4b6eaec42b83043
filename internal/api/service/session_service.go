package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/Dipanshuofficial/Flow/internal/api/repo"
	"github.com/rs/zerolog"
)

var ErrSessionClosed = errors.New("session closed")

type SessionConfig struct {
	ExportBaseURL string
	// ExportDir, when set, also saves every exported artifact on the host.
	ExportDir  string
	SaveDelay  time.Duration
	HTTPClient *http.Client
	Observers  []func(GraphState)
	OnPhase    func(Phase)
}

// Session owns the one active graph of the process together with its persistence
// and export handshake. It is created by the application at startup and closed on shutdown.
type Session struct {
	Graph       *GraphService
	Persistence *PersistenceService
	Export      *ExportService

	notifier Notifier
	logger   zerolog.Logger

	mu   sync.RWMutex
	open bool
}

// OpenSession restores the last snapshot and wires autosave onto every graph mutation.
func OpenSession(cfg SessionConfig, snapshots repo.SnapshotRepository, notifier Notifier, logger zerolog.Logger) *Session {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	persistence := NewPersistenceService(snapshots, NewIdleScheduler(cfg.SaveDelay), logger)
	restored := persistence.Restore()

	graphOpts := []GraphOption{
		WithSnapshot(restored),
		WithPersister(persistence),
		WithObserver(persistence.Persist),
		WithGraphLogger(logger),
	}
	for _, fn := range cfg.Observers {
		graphOpts = append(graphOpts, WithObserver(fn))
	}
	graph := NewGraphService(graphOpts...)

	exportOpts := []ExportOption{WithNotifier(notifier), WithExportLogger(logger)}
	if cfg.HTTPClient != nil {
		exportOpts = append(exportOpts, WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.ExportDir != "" {
		exportOpts = append(exportOpts, WithDelivery(DirDelivery{Dir: cfg.ExportDir}))
	}
	if cfg.OnPhase != nil {
		exportOpts = append(exportOpts, WithPhaseObserver(cfg.OnPhase))
	}

	s := &Session{
		Graph:       graph,
		Persistence: persistence,
		Export:      NewExportService(cfg.ExportBaseURL, graph, exportOpts...),
		notifier:    notifier,
		logger:      logger,
		open:        true,
	}

	if !restored.IsEmpty() {
		logger.Info().Int("nodes", len(restored.Nodes)).Int("edges", len(restored.Edges)).Msg("Previous session restored")
		notifier.Notify(context.Background(), Notification{Level: LevelSuccess, Message: "Previous session restored!"})
	}
	return s
}

func (slf *Session) IsOpen() bool {
	slf.mu.RLock()
	defer slf.mu.RUnlock()
	return slf.open
}

// Drop instantiates a palette node. It does nothing once the session is closed.
func (slf *Session) Drop(payload string, at models.Position) (models.Node, bool) {
	slf.mu.RLock()
	defer slf.mu.RUnlock()

	if !slf.open {
		return models.Node{}, false
	}
	return slf.Graph.Drop(payload, at)
}

// Reset clears the graph and removes the stored snapshot.
func (slf *Session) Reset(ctx context.Context) error {
	if !slf.IsOpen() {
		return ErrSessionClosed
	}
	slf.Graph.ClearAll()
	return slf.Persistence.Clear(ctx)
}

// Close makes the last state durable and stops background work.
func (slf *Session) Close() {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	if !slf.open {
		return
	}
	slf.open = false
	slf.Persistence.Close()
	slf.logger.Info().Msg("Session closed")
}
