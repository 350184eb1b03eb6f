package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"holoexport/internal/config"
	"holoexport/internal/export"
	"holoexport/internal/logging"
	"holoexport/internal/metrics"
	"holoexport/internal/services"
	"holoexport/internal/textutil"
)

// Progress checkpoints recorded while a job is processing.
const (
	progressStarted       = 10
	progressSourceChecked = 20
	progressOutputReady   = 30
	progressEncoding      = 40
)

// ErrNotReady is returned when an artifact is requested for a job that has
// not completed yet.
var ErrNotReady = errors.New("job not ready")

// SubmitRequest is the submission boundary payload.
type SubmitRequest struct {
	Owner   string
	Source  string
	Format  export.Format
	Options export.Options
}

// Receipt is returned immediately on submission; the export itself runs in
// the background.
type Receipt struct {
	JobID            string  `json:"job_id"`
	Message          string  `json:"message"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
}

// Artifact locates a completed job's output for download.
type Artifact struct {
	Path      string
	MediaType string
	SizeBytes int64
}

// Controller schedules export jobs onto a bounded worker pool and drives
// each through the store's state machine.
type Controller struct {
	cfg      *config.Config
	store    *Store
	registry *export.Registry
	logger   *slog.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

func NewController(cfg *config.Config, store *Store, registry *export.Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workers.MaxConcurrentExports
	if workers <= 0 {
		workers = 1
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		logger:     logging.NewComponentLogger(logger, "jobs"),
		slots:      make(chan struct{}, workers),
		cancels:    make(map[string]context.CancelFunc),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// Close stops accepting work and waits for in-flight jobs to reach a
// terminal state.
func (c *Controller) Close() {
	c.baseCancel()
	c.wg.Wait()
}

// Submit persists a pending job and schedules it for background execution.
// The returned receipt carries the ETA derived from the strategy's
// performance constant.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (Receipt, error) {
	if strings.TrimSpace(req.Source) == "" {
		return Receipt{}, services.Wrap(services.ErrValidation, "jobs", "submit", "source path is required", nil)
	}
	if req.Format == "" {
		return Receipt{}, services.Wrap(services.ErrValidation, "jobs", "submit", "format is required", nil)
	}

	request := Request{Source: req.Source, Format: req.Format, Options: req.Options}
	requestJSON, err := request.Marshal()
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal request: %w", err)
	}

	job, err := c.store.Create(ctx, &Job{
		Owner:       req.Owner,
		Format:      req.Format,
		RequestJSON: requestJSON,
	})
	if err != nil {
		return Receipt{}, err
	}

	metrics.JobsSubmittedTotal.WithLabelValues(string(req.Format)).Inc()
	c.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldFormat, string(req.Format)),
		logging.String(logging.FieldOwner, req.Owner),
	)

	c.wg.Add(1)
	go c.run(job.ID, job.Owner, request)

	eta := c.registry.EstimateSeconds(req.Format, req.Options.Duration)
	return Receipt{
		JobID:            job.ID,
		Message:          fmt.Sprintf("export accepted, poll status for job %s", job.ID),
		EstimatedSeconds: eta,
	}, nil
}

// run drives one job to a terminal state. Any panic is converted into a
// failed job so the pool survives.
func (c *Controller) run(id, owner string, request Request) {
	defer c.wg.Done()

	jobCtx, cancel := context.WithCancel(c.baseCtx)
	c.registerCancel(id, cancel)
	defer c.unregisterCancel(id)

	metrics.JobQueueDepth.Inc()
	defer metrics.JobQueueDepth.Dec()

	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-jobCtx.Done():
		c.failJob(id, CancelledReason)
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error("job worker panicked",
				logging.String(logging.FieldJobID, id),
				logging.Any("panic", recovered),
			)
			c.failJob(id, fmt.Sprintf("internal error: %v", recovered))
		}
	}()

	logger := c.logger.With(logging.String(logging.FieldJobID, id))

	if err := c.store.MarkProcessing(context.Background(), id, progressStarted); err != nil {
		logger.Warn("job skipped processing transition", logging.Error(err))
		return
	}

	if _, err := os.Stat(request.Source); err != nil {
		c.failJob(id, fmt.Sprintf("source %s not readable: %v", request.Source, err))
		return
	}
	c.progress(id, progressSourceChecked)

	// Artifacts land in a per-owner subdirectory of the export dir.
	outputDir := c.cfg.Paths.ExportDir
	if strings.TrimSpace(owner) != "" {
		outputDir = filepath.Join(outputDir, textutil.SanitizeToken(owner))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		c.failJob(id, fmt.Sprintf("prepare export directory: %v", err))
		return
	}
	output := filepath.Join(outputDir, id+request.Format.Extension())
	c.progress(id, progressOutputReady)

	c.progress(id, progressEncoding)
	result := c.registry.Export(jobCtx, request.Source, output, request.Format, request.Options)
	if !result.Success {
		message := result.Error
		if errors.Is(jobCtx.Err(), context.Canceled) {
			message = CancelledReason
		}
		c.failJob(id, message)
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		c.failJob(id, fmt.Sprintf("encode result: %v", err))
		return
	}
	if err := c.store.MarkComplete(context.Background(), id, string(resultJSON), result.OutputPath); err != nil {
		logger.Warn("completion rejected", logging.Error(err))
		return
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(StatusComplete)).Inc()
	logger.Info("job complete",
		logging.String(logging.FieldOutput, result.OutputPath),
		logging.Int64("size_bytes", result.SizeBytes),
		logging.Duration(logging.FieldDuration, result.Elapsed),
	)
}

func (c *Controller) progress(id string, value int) {
	if err := c.store.UpdateProgress(context.Background(), id, value); err != nil {
		c.logger.Warn("progress update failed",
			logging.String(logging.FieldJobID, id),
			logging.Int(logging.FieldProgress, value),
			logging.Error(err),
		)
	}
}

func (c *Controller) failJob(id, message string) {
	if err := c.store.MarkFailed(context.Background(), id, message); err != nil {
		if !errors.Is(err, ErrTerminal) {
			c.logger.Warn("failure transition rejected",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
			)
		}
		return
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(StatusFailed)).Inc()
	c.logger.Info("job failed",
		logging.String(logging.FieldJobID, id),
		logging.String("reason", message),
	)
}

func (c *Controller) registerCancel(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels[id] = cancel
}

func (c *Controller) unregisterCancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancels, id)
}

// Cancel aborts an in-flight job. The worker observes the cancelled context,
// kills the encoder process, and records the cancelled reason. A job with no
// live worker (for example after a restart) is failed directly.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	job, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, id)
	}

	c.mu.Lock()
	cancel, ok := c.cancels[id]
	c.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	return c.store.MarkFailed(ctx, id, CancelledReason)
}

// Status fetches the job record for status queries. Safe to call from any
// goroutine at any point in the lifecycle.
func (c *Controller) Status(ctx context.Context, id string) (*Job, error) {
	return c.store.GetByID(ctx, id)
}

// History lists recent jobs, newest first, optionally filtered by owner.
func (c *Controller) History(ctx context.Context, owner string, limit int) ([]*Job, error) {
	return c.store.ListByOwner(ctx, owner, limit)
}

// ArtifactFor locates a completed job's output. A missing job is not-found,
// a non-terminal or failed job is not-ready, and a complete job whose file
// has vanished is an integrity error, never a silent miss.
func (c *Controller) ArtifactFor(ctx context.Context, id string) (Artifact, error) {
	job, err := c.store.GetByID(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	if job.Status != StatusComplete {
		return Artifact{}, fmt.Errorf("%w: job %s is %s", ErrNotReady, id, job.Status)
	}
	if strings.TrimSpace(job.OutputPath) == "" {
		return Artifact{}, services.Wrap(services.ErrIntegrity, "jobs", "artifact", fmt.Sprintf("job %s is complete but records no output path", id), nil)
	}
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrIntegrity, "jobs", "artifact", fmt.Sprintf("job %s is complete but artifact %s is missing", id, job.OutputPath), nil)
	}
	return Artifact{
		Path:      job.OutputPath,
		MediaType: job.Format.MediaType(),
		SizeBytes: info.Size(),
	}, nil
}
