package job

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hanzhu/tablab/internal/anomaly"
	"github.com/hanzhu/tablab/internal/dataset"
	"github.com/hanzhu/tablab/internal/metrics"
	"github.com/hanzhu/tablab/internal/model"
	"github.com/hanzhu/tablab/internal/signing"
	"github.com/hanzhu/tablab/internal/upload"
)

const (
	SummaryFilename = "summary.json"
	HistFilename    = "hist.png"

	// MaxTopK bounds the anomaly count a client may request.
	MaxTopK = 50
)

// Options are the per-request analysis parameters.
type Options struct {
	HistColumn string
	TopK       int
}

// OrchestratorConfig carries the knobs the orchestrator needs from config.
type OrchestratorConfig struct {
	OutDir        string
	MaxBytes      int64
	AllowedExt    map[string]bool
	AllowedMIME   map[string]bool
	MaxConcurrent int64
	Contamination float64
	RandomSeed    int64
}

// Orchestrator coordinates ingestion, status tracking, background execution,
// artifact writing, and signed-URL issuance. Submission returns immediately;
// a weighted semaphore sized from MaxConcurrent provides admission control so
// no more than that many jobs execute at once, with the rest queued in their
// goroutines.
type Orchestrator struct {
	store  Store
	signer *signing.Service
	models *model.Store
	cfg    OrchestratorConfig
	sem    *semaphore.Weighted

	// onFinish, when set, is called after each execution; tests use it to
	// synchronize on job completion.
	onFinish func(requestID string)
}

// NewOrchestrator wires an orchestrator. models may be nil, in which case
// every anomaly pass fits an ad-hoc forest.
func NewOrchestrator(store Store, signer *signing.Service, models *model.Store, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Contamination <= 0 {
		cfg.Contamination = anomaly.DefaultContamination
	}
	if cfg.RandomSeed == 0 {
		cfg.RandomSeed = anomaly.DefaultSeed
	}
	return &Orchestrator{
		store:  store,
		signer: signer,
		models: models,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// Submit validates the upload eagerly, streams it into a fresh per-request
// directory, records the queued status, and schedules background execution.
// All validation and ingestion errors surface here, before any work is
// scheduled; execution errors only ever surface through the status record.
func (o *Orchestrator) Submit(ctx context.Context, src io.Reader, filename, contentType string, opts Options) (string, error) {
	if _, _, err := upload.ValidateType(filename, contentType, o.cfg.AllowedExt, o.cfg.AllowedMIME); err != nil {
		return "", err
	}
	opts.TopK = clampTopK(opts.TopK)

	requestID := uuid.NewString()
	dir := filepath.Join(o.cfg.OutDir, requestID)

	stored, err := upload.StoreStreaming(src, dir, filename, contentType, o.cfg.MaxBytes)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	metrics.BytesIngested.Add(float64(stored.SizeBytes))

	if err := o.store.Create(ctx, requestID); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("record submission: %w", err)
	}

	metrics.JobsSubmitted.Inc()
	go o.run(requestID, stored, opts)
	return requestID, nil
}

func (o *Orchestrator) run(requestID string, stored *upload.StoredFile, opts Options) {
	// Admission control: block this goroutine, not the submitter.
	if err := o.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer o.sem.Release(1)

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("job execution panic", "request_id", requestID, "panic", r)
			o.fail(requestID, fmt.Sprintf("internal error: %v", r))
		}
		if o.onFinish != nil {
			o.onFinish(requestID)
		}
	}()

	o.execute(requestID, stored, opts)
}

// execute is the uninterruptible unit of work for one request. Any failure
// becomes a terminal failed status with a short cause; the full error is only
// logged. A failure here never touches another request's record or directory.
func (o *Orchestrator) execute(requestID string, stored *upload.StoredFile, opts Options) {
	ctx := context.Background()
	dir := filepath.Join(o.cfg.OutDir, requestID)
	start := time.Now()
	timing := make(map[string]int64)

	if err := o.store.MarkRunning(ctx, requestID); err != nil {
		slog.Error("mark running failed", "request_id", requestID, "error", err)
		return
	}

	stage := time.Now()
	tbl, err := dataset.Load(stored.Path)
	if err != nil {
		slog.Error("table load failed", "request_id", requestID, "path", stored.Path, "error", err)
		o.fail(requestID, "could not parse uploaded table")
		return
	}
	tbl = dataset.BasicClean(tbl)
	timing["parse"] = time.Since(stage).Milliseconds()

	stage = time.Now()
	payload := resultPayload{Summary: dataset.Summarize(tbl)}
	timing["summarize"] = time.Since(stage).Milliseconds()

	stage = time.Now()
	if res, ok := o.scoreAnomalies(tbl, opts.TopK); ok {
		payload.Anomaly = buildAnomalySection(tbl, res)
	}
	timing["anomaly"] = time.Since(stage).Milliseconds()

	histURL := ""
	if opts.HistColumn != "" {
		stage = time.Now()
		if err := dataset.SaveHist(tbl, opts.HistColumn, filepath.Join(dir, HistFilename), dataset.DefaultBins); err != nil {
			slog.Error("histogram failed", "request_id", requestID, "column", opts.HistColumn, "error", err)
			o.fail(requestID, fmt.Sprintf("histogram column %q: not found or not numeric", opts.HistColumn))
			return
		}
		timing["hist"] = time.Since(stage).Milliseconds()
		histURL = o.signer.IssueURL(requestID, HistFilename)
	}

	if err := writeJSON(filepath.Join(dir, SummaryFilename), payload); err != nil {
		slog.Error("summary write failed", "request_id", requestID, "error", err)
		o.fail(requestID, "could not write summary artifact")
		return
	}
	summaryURL := o.signer.IssueURL(requestID, SummaryFilename)
	timing["total"] = time.Since(start).Milliseconds()

	if err := o.store.MarkDone(ctx, requestID, summaryURL, histURL, timing); err != nil {
		slog.Error("mark done failed", "request_id", requestID, "error", err)
		return
	}
	metrics.JobsCompleted.WithLabelValues(StatusDone).Inc()
	slog.Info("job done", "request_id", requestID, "rows", payload.Summary.Rows, "total_ms", timing["total"])
}

// scoreAnomalies prefers the cached trained bundle; without one it fits an
// ad-hoc forest on the table itself.
func (o *Orchestrator) scoreAnomalies(tbl *dataset.Table, topK int) (*anomaly.Result, bool) {
	if o.models != nil {
		if b, ok := o.models.Cached(); ok {
			return anomaly.ScoreWithBundle(tbl, b.Forest, b.FeatureColumns, topK)
		}
	}
	return anomaly.Score(tbl, topK, o.cfg.Contamination, o.cfg.RandomSeed)
}

func (o *Orchestrator) fail(requestID, message string) {
	if err := o.store.MarkFailed(context.Background(), requestID, message); err != nil {
		slog.Error("mark failed failed", "request_id", requestID, "error", err)
		return
	}
	metrics.JobsCompleted.WithLabelValues(StatusFailed).Inc()
}

func clampTopK(k int) int {
	if k <= 0 {
		return anomaly.DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// resultPayload is the summary.json document.
type resultPayload struct {
	Summary dataset.Summary `json:"summary"`
	Anomaly *anomalySection `json:"anomaly,omitempty"`
}

type anomalySection struct {
	Indices []int        `json:"indices"`
	Scores  []float64    `json:"scores"`
	TopRows []rowPreview `json:"top_rows"`
}

type rowPreview struct {
	Index int               `json:"index"`
	Score float64           `json:"score"`
	Row   map[string]string `json:"row"`
}

func buildAnomalySection(tbl *dataset.Table, res *anomaly.Result) *anomalySection {
	// Map original row ids back to current positions for previews.
	pos := make(map[int]int, len(tbl.Index))
	for i, id := range tbl.Index {
		pos[id] = i
	}

	sec := &anomalySection{
		Indices: res.Indices,
		Scores:  res.Scores,
		TopRows: make([]rowPreview, 0, len(res.Indices)),
	}
	for i, id := range res.Indices {
		preview := rowPreview{Index: id, Score: res.Scores[i]}
		if p, ok := pos[id]; ok {
			preview.Row = tbl.Row(p)
		}
		sec.TopRows = append(sec.TopRows, preview)
	}
	return sec
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
