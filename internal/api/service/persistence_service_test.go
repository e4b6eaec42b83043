package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/Dipanshuofficial/Flow/internal/api/repo"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepository struct{ err error }

func (slf failingRepository) Get(context.Context, string) ([]byte, error) { return nil, slf.err }
func (slf failingRepository) Set(context.Context, string, []byte) error { return slf.err }
func (slf failingRepository) Delete(context.Context, string) error { return slf.err }

func newTestPersistence(snapshots repo.SnapshotRepository, delay time.Duration) *PersistenceService {
	return NewPersistenceService(snapshots, NewIdleScheduler(delay), zerolog.Nop())
}

func TestPersistence_RestoreMissing(t *testing.T) {
	p := newTestPersistence(repo.NewMemorySnapshotRepository(), time.Hour)
	defer p.Close()

	assert.Nil(t, p.Restore())
}

func TestPersistence_RestoreMalformed(t *testing.T) {
	snapshots := repo.NewMemorySnapshotRepository()
	require.NoError(t, snapshots.Set(context.Background(), SnapshotKey, []byte(`{"nodes":"oops"`)))
	p := newTestPersistence(snapshots, time.Hour)
	defer p.Close()

	assert.Nil(t, p.Restore())
}

func TestPersistence_RestoreKeepsOddFieldValues(t *testing.T) {
	raw := `{"nodes":[
		{"id":"llm-1","type":"llm","position":{"x":0,"y":0},"data":{"label":"llm node"}},
		{"id":"loopNode-1","type":"loopNode","position":{"x":50,"y":0},"data":{"label":"loop","count":"3x"}}
	],"edges":[]}`
	snapshots := repo.NewMemorySnapshotRepository()
	require.NoError(t, snapshots.Set(context.Background(), SnapshotKey, []byte(raw)))
	p := newTestPersistence(snapshots, time.Hour)
	defer p.Close()

	got := p.Restore()
	require.NotNil(t, got)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "3x", models.EncodeNodeData(got.Nodes[1].Data)["count"])
}

func TestPersistence_RestoreBackendFailure(t *testing.T) {
	p := newTestPersistence(failingRepository{err: errors.New("connection refused")}, time.Hour)
	defer p.Close()

	assert.Nil(t, p.Restore())
}

func TestPersistence_PersistThenRestore(t *testing.T) {
	snapshots := repo.NewMemorySnapshotRepository()
	p := newTestPersistence(snapshots, 10*time.Millisecond)
	defer p.Close()

	want := sampleSnapshot()
	p.Persist(GraphState{Nodes: want.Nodes, Edges: want.Edges, Viewport: want.Viewport})

	require.Eventually(t, func() bool { return snapshots.Writes() == 1 }, time.Second, 5*time.Millisecond)
	got := p.Restore()
	require.NotNil(t, got)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("restored snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistence_BurstWritesOnce(t *testing.T) {
	snapshots := repo.NewMemorySnapshotRepository()
	p := newTestPersistence(snapshots, 20*time.Millisecond)
	defer p.Close()

	g := newTestGraph(WithObserver(p.Persist))
	for i := 0; i < 25; i++ {
		g.Drop("llm", models.Position{X: float64(i)})
	}

	require.Eventually(t, func() bool { return snapshots.Writes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, snapshots.Writes())

	got := p.Restore()
	require.NotNil(t, got)
	assert.Len(t, got.Nodes, 25)
}

func TestPersistence_CloseFlushes(t *testing.T) {
	snapshots := repo.NewMemorySnapshotRepository()
	p := newTestPersistence(snapshots, time.Hour)

	p.Persist(GraphState{Nodes: sampleSnapshot().Nodes})
	p.Close()

	assert.Equal(t, 1, snapshots.Writes())
	restored := newTestPersistence(snapshots, time.Hour)
	defer restored.Close()
	assert.Len(t, restored.Restore().Nodes, 3)
}

func TestPersistence_ClearAllThenRestore(t *testing.T) {
	snapshots := repo.NewMemorySnapshotRepository()
	p := newTestPersistence(snapshots, 10*time.Millisecond)

	g := newTestGraph(WithObserver(p.Persist), WithPersister(p))
	g.Drop("llm", models.Position{})
	g.Drop("text", models.Position{})
	g.ClearAll()
	p.Close()

	reopened := newTestPersistence(snapshots, time.Hour)
	defer reopened.Close()
	got := reopened.Restore()
	require.NotNil(t, got)
	assert.True(t, got.IsEmpty())
}

func TestPersistence_Clear(t *testing.T) {
	snapshots := repo.NewMemorySnapshotRepository()
	p := newTestPersistence(snapshots, time.Hour)
	defer p.Close()

	p.Persist(GraphState{Nodes: sampleSnapshot().Nodes})
	require.NoError(t, p.Clear(context.Background()))

	assert.Nil(t, p.Restore())
}
