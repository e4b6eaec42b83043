package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationLog struct {
	mu   sync.Mutex
	list []Notification
}

func (slf *notificationLog) Notify(_ context.Context, n Notification) {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	slf.list = append(slf.list, n)
}

func (slf *notificationLog) all() []Notification {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	return append([]Notification(nil), slf.list...)
}

type memoryDelivery struct {
	delivered []Artifact
}

func (slf *memoryDelivery) Deliver(_ context.Context, a Artifact) error {
	slf.delivered = append(slf.delivered, a)
	return nil
}

type staticPicker struct {
	platform Platform
	err      error
	calls    int
}

func (slf *staticPicker) PickDestination(context.Context) (Platform, error) {
	slf.calls++
	return slf.platform, slf.err
}

func detail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

func exportFixture(t *testing.T, handler http.HandlerFunc, opts ...ExportOption) (*ExportService, *GraphService, *notificationLog) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := newTestGraph()
	a := addNode(g, models.NodeTypeLLM)
	b := addNode(g, models.NodeTypeText)
	mustConnect(t, g, a.ID, b.ID)

	notes := &notificationLog{}
	opts = append([]ExportOption{WithNotifier(notes)}, opts...)
	return NewExportService(srv.URL, g, opts...), g, notes
}

// ============ Cycle marker ============

func TestExtractCycleNode(t *testing.T) {
	tests := []struct {
		detail string
		want   string
		found  bool
	}{
		{"CYCLE_DETECTED: llm-3", "llm-3", true},
		{"CYCLE_DETECTED: llm-3 ", "llm-3", true},
		{"CYCLE_DETECTED:text-2", "text-2", true},
		{"Validation failed. CYCLE_DETECTED:  condition-1 (via text-4)", "condition-1", true},
		{"CYCLE_DETECTED:   ", "", false},
		{"Graph has a cycle", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			got, found := ExtractCycleNode(tt.detail)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Zapier ")
	require.NoError(t, err)
	assert.Equal(t, PlatformZapier, p)

	_, err = ParsePlatform("airflow")
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	assert.Equal(t, "ostrich_make_export.json", ArtifactFilename(PlatformMake))
}

// ============ Validate ============

func TestValidate_Success(t *testing.T) {
	var got models.Pipeline
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export/n8n", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	g.SetErrorNode("llm-1")

	ok, err := svc.Validate(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, PhaseAwaitingDestination, svc.Phase())
	assert.Empty(t, g.ErrorNodeID())
	assert.Empty(t, notes.all())
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
}

func TestValidate_CycleDetected(t *testing.T) {
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		detail(w, http.StatusBadRequest, "CYCLE_DETECTED: llm-3 ")
	})

	ok, err := svc.Validate(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "llm-3", g.ErrorNodeID())
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Cycle found at llm-3", NodeID: "llm-3"}}, notes.all())
	assert.Equal(t, PhaseIdle, svc.Phase())
}

func TestValidate_OtherRejection(t *testing.T) {
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		detail(w, http.StatusBadRequest, "Pipeline has no output node")
	})

	ok, err := svc.Validate(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, g.ErrorNodeID())
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Pipeline has no output node"}}, notes.all())
}

func TestValidate_StructuredDetail(t *testing.T) {
	svc, _, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":[{"loc":["body","nodes"],"msg":"field required"}]}`)
	})

	ok, err := svc.Validate(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, notes.all(), 1)
	assert.Contains(t, notes.all()[0].Message, "field required")
}

func TestValidate_Unreachable(t *testing.T) {
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	svc.baseURL = "http://127.0.0.1:1"

	ok, err := svc.Validate(context.Background())

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrBackendUnreached)
	assert.Empty(t, g.ErrorNodeID())
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Backend unreachable"}}, notes.all())
	assert.Equal(t, PhaseIdle, svc.Phase())
}

func TestValidate_PhaseTransitions(t *testing.T) {
	var phases []Phase
	svc, _, _ := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		detail(w, http.StatusBadRequest, "CYCLE_DETECTED: text-1")
	}, WithPhaseObserver(func(p Phase) { phases = append(phases, p) }))

	_, err := svc.Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Phase{PhaseValidating, PhaseValidationFailed, PhaseIdle}, phases)
}

func TestValidate_StaleResponseDiscarded(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		if first {
			close(arrived)
			<-release
			detail(w, http.StatusBadRequest, "CYCLE_DETECTED: llm-1")
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := svc.Validate(context.Background())
		done <- result{ok, err}
	}()
	<-arrived

	ok, err := svc.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	close(release)
	stale := <-done

	assert.False(t, stale.ok)
	assert.ErrorIs(t, stale.err, ErrStaleResponse)
	assert.Empty(t, g.ErrorNodeID())
	assert.Empty(t, notes.all())
	assert.Equal(t, PhaseAwaitingDestination, svc.Phase())
}

// ============ Export ============

func TestExport_Success(t *testing.T) {
	delivery := &memoryDelivery{}
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export/zapier", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"steps":[]}`)
	}, WithDelivery(delivery))

	artifact, err := svc.Export(context.Background(), PlatformZapier)

	require.NoError(t, err)
	assert.Equal(t, "ostrich_zapier_export.json", artifact.Filename)
	assert.JSONEq(t, `{"steps":[]}`, string(artifact.Body))
	assert.Equal(t, "application/json", artifact.ContentType)
	assert.Empty(t, g.ErrorNodeID())
	assert.Empty(t, notes.all())
	require.Len(t, delivery.delivered, 1)
	assert.Equal(t, artifact.Filename, delivery.delivered[0].Filename)
	assert.Equal(t, PhaseIdle, svc.Phase())
}

func TestExport_Rejected(t *testing.T) {
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		detail(w, http.StatusBadRequest, "CYCLE_DETECTED: text-2 ")
	})

	artifact, err := svc.Export(context.Background(), PlatformMake)

	assert.Nil(t, artifact)
	assert.ErrorIs(t, err, ErrExportRejected)
	assert.Equal(t, "text-2", g.ErrorNodeID())
	require.Len(t, notes.all(), 1)
	assert.Equal(t, "Export Error: CYCLE_DETECTED: text-2 ", notes.all()[0].Message)
	assert.Equal(t, "text-2", notes.all()[0].NodeID)
}

func TestExport_UnknownPlatform(t *testing.T) {
	var phases []Phase
	svc, g, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, WithPhaseObserver(func(p Phase) { phases = append(phases, p) }))
	g.SetErrorNode("llm-1")

	_, err := svc.Export(context.Background(), Platform("airflow"))

	assert.ErrorIs(t, err, ErrUnknownPlatform)
	assert.Empty(t, notes.all())
	assert.Empty(t, g.ErrorNodeID())
	assert.Equal(t, []Phase{PhaseExporting, PhaseExportFailed, PhaseIdle}, phases)
}

func TestExport_ArtifactOverLimit(t *testing.T) {
	delivery := &memoryDelivery{}
	svc, _, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 65))
	}, WithDelivery(delivery), WithArtifactLimit(64))

	artifact, err := svc.Export(context.Background(), PlatformN8N)

	assert.Nil(t, artifact)
	assert.ErrorIs(t, err, ErrArtifactTooLarge)
	assert.Empty(t, delivery.delivered)
	require.Len(t, notes.all(), 1)
	assert.True(t, strings.HasPrefix(notes.all()[0].Message, "Export Error: "))
	assert.Equal(t, PhaseIdle, svc.Phase())
}

func TestExport_ArtifactAtLimit(t *testing.T) {
	delivery := &memoryDelivery{}
	svc, _, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 64))
	}, WithDelivery(delivery), WithArtifactLimit(64))

	artifact, err := svc.Export(context.Background(), PlatformN8N)

	require.NoError(t, err)
	assert.Len(t, artifact.Body, 64)
	assert.Len(t, delivery.delivered, 1)
	assert.Empty(t, notes.all())
}

func TestExport_DeliveryDoesNotHoldPhase(t *testing.T) {
	var svc *ExportService
	var during Phase
	delivery := DeliveryFunc(func(context.Context, Artifact) error {
		during = svc.Phase()
		return nil
	})
	svc, _, _ = exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}, WithDelivery(delivery))

	_, err := svc.Export(context.Background(), PlatformMake)

	require.NoError(t, err)
	assert.Equal(t, PhaseExporting, during)
	assert.Equal(t, PhaseIdle, svc.Phase())
}

func TestExport_Unreachable(t *testing.T) {
	svc, _, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	svc.baseURL = "http://127.0.0.1:1"

	_, err := svc.Export(context.Background(), PlatformN8N)

	assert.ErrorIs(t, err, ErrBackendUnreached)
	require.Len(t, notes.all(), 1)
	assert.True(t, strings.HasPrefix(notes.all()[0].Message, "Connection error: "))
}

func TestExport_DeliveryFailure(t *testing.T) {
	svc, _, notes := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}, WithDelivery(DeliveryFunc(func(context.Context, Artifact) error { return errors.New("disk full") })))

	_, err := svc.Export(context.Background(), PlatformN8N)

	assert.ErrorContains(t, err, "disk full")
	require.Len(t, notes.all(), 1)
	assert.Equal(t, "Export Error: disk full", notes.all()[0].Message)
	assert.Equal(t, PhaseIdle, svc.Phase())
}

// ============ Run ============

func TestRun(t *testing.T) {
	var paths []string
	svc, _, _ := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		io.WriteString(w, `{"flow":"make"}`)
	})
	picker := &staticPicker{platform: PlatformMake}

	artifact, err := svc.Run(context.Background(), picker)

	require.NoError(t, err)
	assert.Equal(t, "ostrich_make_export.json", artifact.Filename)
	assert.Equal(t, []string{"/export/n8n", "/export/make"}, paths)
	assert.Equal(t, 1, picker.calls)
}

func TestRun_ValidationFailedSkipsPicker(t *testing.T) {
	svc, _, _ := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		detail(w, http.StatusBadRequest, "CYCLE_DETECTED: llm-1")
	})
	picker := &staticPicker{platform: PlatformMake}

	_, err := svc.Run(context.Background(), picker)

	assert.ErrorIs(t, err, ErrExportRejected)
	assert.Equal(t, 0, picker.calls)
}

func TestRun_PickerCancelled(t *testing.T) {
	svc, _, _ := exportFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := svc.Run(context.Background(), &staticPicker{err: context.Canceled})

	assert.ErrorIs(t, err, ErrNoDestination)
	assert.Equal(t, PhaseIdle, svc.Phase())
}

// ============ Delivery ============

func TestDirDelivery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	d := DirDelivery{Dir: dir}

	err := d.Deliver(context.Background(), Artifact{Filename: "ostrich_n8n_export.json", Body: []byte(`{"nodes":[]}`)})
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(dir, "ostrich_n8n_export.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(body))
}
