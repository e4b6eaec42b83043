package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CycleMarker prefixes the offending node id in validator error details.
const CycleMarker = "CYCLE_DETECTED:"

// validation runs against the n8n exporter, which checks the graph before generating.
const validationPath = "/export/n8n"

// DefaultArtifactLimit caps the size of a downloaded export artifact.
const DefaultArtifactLimit int64 = 32 << 20

var (
	ErrUnknownPlatform  = errors.New("unknown export platform")
	ErrStaleResponse    = errors.New("response superseded by a newer export attempt")
	ErrExportRejected   = errors.New("export rejected")
	ErrNoDestination    = errors.New("no export destination selected")
	ErrBackendUnreached = errors.New("export backend unreachable")
	ErrArtifactTooLarge = errors.New("export artifact too large")
)

type Platform string

const (
	PlatformN8N    Platform = "n8n"
	PlatformZapier Platform = "zapier"
	PlatformMake   Platform = "make"
)

var Platforms = []Platform{PlatformN8N, PlatformZapier, PlatformMake}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// ArtifactFilename is the name the exported file is delivered under.
func ArtifactFilename(p Platform) string {
	return fmt.Sprintf("ostrich_%s_export.json", p)
}

// ExtractCycleNode finds the cycle marker in a validator detail and returns the node id
// that follows it, trimmed of surrounding whitespace.
func ExtractCycleNode(detail string) (string, bool) {
	idx := strings.Index(detail, CycleMarker)
	if idx < 0 {
		return "", false
	}
	fields := strings.Fields(detail[idx+len(CycleMarker):])
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// Artifact is the platform-specific file produced by a successful export.
type Artifact struct {
	Platform    Platform
	Filename    string
	ContentType string
	Body        []byte
}

// Delivery hands a finished artifact to the user.
type Delivery interface {
	Deliver(ctx context.Context, a Artifact) error
}

// DestinationPicker asks the user which platform to export to.
type DestinationPicker interface {
	PickDestination(ctx context.Context) (Platform, error)
}

// GraphSource is the part of the graph the export handshake reads and flags.
type GraphSource interface {
	State() GraphState
	SetErrorNode(id string)
	ClearErrorNode()
}

type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseValidating          Phase = "validating"
	PhaseValidationFailed    Phase = "validation_failed"
	PhaseAwaitingDestination Phase = "awaiting_destination"
	PhaseExporting           Phase = "exporting"
	PhaseExportFailed        Phase = "export_failed"
	PhaseExportSucceeded     Phase = "export_succeeded"
)

type ExportOption func(*ExportService)

func WithHTTPClient(c *http.Client) ExportOption {
	return func(slf *ExportService) { slf.http = c }
}

func WithNotifier(n Notifier) ExportOption {
	return func(slf *ExportService) { slf.notifier = n }
}

func WithDelivery(d Delivery) ExportOption {
	return func(slf *ExportService) { slf.delivery = d }
}

func WithArtifactLimit(n int64) ExportOption {
	return func(slf *ExportService) { slf.artifactLimit = n }
}

func WithExportLogger(logger zerolog.Logger) ExportOption {
	return func(slf *ExportService) { slf.logger = logger }
}

// WithPhaseObserver is called on every phase transition, including the transient
// failure and success phases that immediately fall back to idle.
func WithPhaseObserver(fn func(Phase)) ExportOption {
	return func(slf *ExportService) { slf.onPhase = fn }
}

// ExportService validates the graph against the remote exporter and downloads the
// platform artifact. Each attempt carries a token and only the latest attempt
// settles: flags the error node, notifies, delivers.
type ExportService struct {
	baseURL       string
	graph         GraphSource
	http          *http.Client
	notifier      Notifier
	delivery      Delivery
	logger        zerolog.Logger
	onPhase       func(Phase)
	artifactLimit int64

	mu    sync.Mutex
	token uint64
	phase Phase
}

func NewExportService(baseURL string, graph GraphSource, opts ...ExportOption) *ExportService {
	slf := &ExportService{
		baseURL:       strings.TrimRight(baseURL, "/"),
		graph:         graph,
		http:          &http.Client{Timeout: 30 * time.Second},
		notifier:      NotifierFunc(func(context.Context, Notification) {}),
		logger:        zerolog.Nop(),
		phase:         PhaseIdle,
		artifactLimit: DefaultArtifactLimit,
	}
	for _, opt := range opts {
		opt(slf)
	}
	return slf
}

func (slf *ExportService) Phase() Phase {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	return slf.phase
}

// Validate sends the current graph to the validator. It reports false, without an
// error, when the validator rejects the graph; a cycle marker in the rejection
// flags the offending node. Transport failures are notified and returned.
func (slf *ExportService) Validate(ctx context.Context) (bool, error) {
	token := slf.begin(PhaseValidating)
	pipeline := slf.graph.State().Pipeline()

	resp, err := slf.post(ctx, validationPath, pipeline)
	if err != nil {
		return false, slf.unreachable(ctx, token, PhaseValidationFailed, "Backend unreachable", err)
	}
	defer resp.Body.Close()

	if ok2xx(resp.StatusCode) {
		if !slf.settle(token, PhaseAwaitingDestination, nil, nil) {
			return false, ErrStaleResponse
		}
		slf.logger.Debug().Int("nodes", len(pipeline.Nodes)).Msg("Pipeline validated")
		return true, nil
	}

	detail := readDetail(resp)
	note := Notification{Level: LevelError, Message: detail}
	nodeID, cycle := ExtractCycleNode(detail)
	if cycle {
		note = Notification{Level: LevelError, Message: fmt.Sprintf("Cycle found at %s", nodeID), NodeID: nodeID}
	}
	applied := slf.settle(token, PhaseValidationFailed, func() {
		if cycle {
			slf.graph.SetErrorNode(nodeID)
		}
	}, func() error {
		slf.notifier.Notify(ctx, note)
		return nil
	})
	if !applied {
		return false, ErrStaleResponse
	}
	slf.logger.Info().Int("status", resp.StatusCode).Str("detail", detail).Msg("Pipeline validation failed")
	return false, nil
}

// Export requests the artifact for platform and hands it to the configured delivery.
// An unknown platform ends the attempt without contacting the exporter.
func (slf *ExportService) Export(ctx context.Context, platform Platform) (*Artifact, error) {
	token := slf.begin(PhaseExporting)

	platform, err := ParsePlatform(string(platform))
	if err != nil {
		if !slf.settle(token, PhaseExportFailed, nil, nil) {
			return nil, ErrStaleResponse
		}
		return nil, err
	}
	pipeline := slf.graph.State().Pipeline()

	resp, err := slf.post(ctx, "/export/"+string(platform), pipeline)
	if err != nil {
		return nil, slf.unreachable(ctx, token, PhaseExportFailed, fmt.Sprintf("Connection error: %v", err), err)
	}
	defer resp.Body.Close()

	if !ok2xx(resp.StatusCode) {
		detail := readDetail(resp)
		note := Notification{Level: LevelError, Message: fmt.Sprintf("Export Error: %s", detail)}
		if nodeID, found := ExtractCycleNode(detail); found {
			note.NodeID = nodeID
		}
		applied := slf.settle(token, PhaseExportFailed, func() {
			if note.NodeID != "" {
				slf.graph.SetErrorNode(note.NodeID)
			}
		}, func() error {
			slf.notifier.Notify(ctx, note)
			return nil
		})
		if !applied {
			return nil, ErrStaleResponse
		}
		return nil, fmt.Errorf("%w: %s", ErrExportRejected, detail)
	}

	body, err := slf.readArtifact(resp)
	if errors.Is(err, ErrArtifactTooLarge) {
		applied := slf.settle(token, PhaseExportFailed, nil, func() error {
			slf.notifier.Notify(ctx, Notification{Level: LevelError, Message: fmt.Sprintf("Export Error: %v", err)})
			return nil
		})
		if !applied {
			return nil, ErrStaleResponse
		}
		slf.logger.Error().Str("platform", string(platform)).Int64("limit", slf.artifactLimit).Msg("Export artifact exceeds size limit")
		return nil, err
	}
	if err != nil {
		return nil, slf.unreachable(ctx, token, PhaseExportFailed, fmt.Sprintf("Connection error: %v", err), err)
	}
	artifact := &Artifact{
		Platform:    platform,
		Filename:    ArtifactFilename(platform),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	var deliverErr error
	applied := slf.settle(token, PhaseExportSucceeded, nil, func() error {
		if slf.delivery == nil {
			return nil
		}
		if deliverErr = slf.delivery.Deliver(ctx, *artifact); deliverErr != nil {
			slf.notifier.Notify(ctx, Notification{Level: LevelError, Message: fmt.Sprintf("Export Error: %v", deliverErr)})
		}
		return deliverErr
	})
	if !applied {
		return nil, ErrStaleResponse
	}
	if deliverErr != nil {
		return nil, fmt.Errorf("deliver %s: %w", artifact.Filename, deliverErr)
	}
	slf.logger.Info().Str("platform", string(platform)).Str("file", artifact.Filename).Int("bytes", len(body)).Msg("Pipeline exported")
	return artifact, nil
}

// readArtifact reads the whole body, failing instead of truncating past the limit.
func (slf *ExportService) readArtifact(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, slf.artifactLimit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > slf.artifactLimit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrArtifactTooLarge, slf.artifactLimit)
	}
	return body, nil
}

// Run drives the whole handshake: validate, pick a destination, export.
func (slf *ExportService) Run(ctx context.Context, picker DestinationPicker) (*Artifact, error) {
	ok, err := slf.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrExportRejected
	}

	platform, err := picker.PickDestination(ctx)
	if err != nil {
		slf.mu.Lock()
		if slf.phase == PhaseAwaitingDestination {
			slf.transition(PhaseIdle)
		}
		slf.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNoDestination, err)
	}
	return slf.Export(ctx, platform)
}

// begin starts a new attempt, superseding any outstanding one, and clears the stale error flag.
func (slf *ExportService) begin(phase Phase) uint64 {
	slf.mu.Lock()
	slf.token++
	token := slf.token
	slf.transition(phase)
	slf.mu.Unlock()

	slf.graph.ClearErrorNode()
	return token
}

// settle applies the outcome of attempt token if it is still the latest one. flag
// runs under the lock so a superseded attempt can never mark the graph; report
// (notifications, delivery) runs outside it. A failing report turns a successful
// export into a failed one. Terminal phases fall straight back to idle unless a
// newer attempt started meanwhile.
func (slf *ExportService) settle(token uint64, phase Phase, flag func(), report func() error) bool {
	slf.mu.Lock()
	if token != slf.token {
		latest := slf.token
		slf.mu.Unlock()
		slf.logger.Debug().Uint64("token", token).Uint64("latest", latest).Msg("Discarding superseded export response")
		return false
	}
	if flag != nil {
		flag()
	}
	slf.mu.Unlock()

	if report != nil && report() != nil && phase == PhaseExportSucceeded {
		phase = PhaseExportFailed
	}

	slf.mu.Lock()
	defer slf.mu.Unlock()
	if token != slf.token {
		return true
	}
	slf.transition(phase)
	if phase != PhaseAwaitingDestination {
		slf.transition(PhaseIdle)
	}
	return true
}

func (slf *ExportService) unreachable(ctx context.Context, token uint64, phase Phase, message string, cause error) error {
	applied := slf.settle(token, phase, nil, func() error {
		slf.notifier.Notify(ctx, Notification{Level: LevelError, Message: message})
		return nil
	})
	if !applied {
		return ErrStaleResponse
	}
	slf.logger.Error().Err(cause).Str("baseUrl", slf.baseURL).Msg("Export backend request failed")
	return fmt.Errorf("%w: %v", ErrBackendUnreached, cause)
}

func (slf *ExportService) transition(phase Phase) {
	slf.phase = phase
	if slf.onPhase != nil {
		slf.onPhase(phase)
	}
}

func (slf *ExportService) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slf.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return slf.http.Do(req)
}

func ok2xx(status int) bool {
	return status >= 200 && status < 300
}

// readDetail extracts the error detail of a rejected request. Non-string details
// (framework validation errors) are returned as raw JSON.
func readDetail(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(raw))
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		return detail
	}
	return string(body.Detail)
}
