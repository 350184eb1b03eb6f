package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/logging"
	"holoexport/internal/metrics"
)

// defaultSecondsPerOutputSecond backs ETA estimates for formats with no
// registered strategy.
const defaultSecondsPerOutputSecond = 1.5

// Registry maps formats to strategies and aggregates cross-format counters.
// Registration happens at startup; during traffic the strategy map is
// read-only and only the atomic counters mutate.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	strategies map[Format]Strategy
	byFormat   map[Format]*atomic.Int64

	totalExports atomic.Int64
	totalNanos   atomic.Int64
	totalBytes   atomic.Int64
}

// RegistryStats is the aggregate counter snapshot exposed by Stats.
type RegistryStats struct {
	TotalExports     int64                    `json:"total_exports"`
	ExportsByFormat  map[Format]int64         `json:"exports_by_format"`
	TotalExportTime  time.Duration            `json:"total_export_time_ns"`
	TotalOutputBytes int64                    `json:"total_output_bytes"`
	AverageSeconds   float64                  `json:"average_export_seconds"`
	Strategies       map[Format]StatsSnapshot `json:"-"`
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		logger:     logging.NewComponentLogger(logger, "export-registry"),
		strategies: make(map[Format]Strategy),
		byFormat:   make(map[Format]*atomic.Int64),
	}
}

// NewDefaultRegistry builds a registry with the three stock strategies
// registered.
func NewDefaultRegistry(cfg *config.Config, locator *deps.Locator, logger *slog.Logger) (*Registry, error) {
	registry := NewRegistry(logger)
	strategies := []Strategy{
		NewMP4Strategy(cfg, locator, logger),
		NewGIFStrategy(cfg, locator, logger),
		NewWebMAlphaStrategy(cfg, locator, logger),
	}
	for _, strategy := range strategies {
		if err := registry.Register(strategy); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds or replaces the strategy for its declared format. Replacing
// an existing registration is logged, not rejected.
func (r *Registry) Register(strategy Strategy) error {
	if strategy == nil {
		return fmt.Errorf("register: nil strategy")
	}
	descriptor := strategy.Descriptor()
	if descriptor.Format == "" {
		return fmt.Errorf("register: strategy %q declares no format", descriptor.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[descriptor.Format]; exists {
		r.logger.Warn("overwriting registered strategy",
			logging.String(logging.FieldFormat, string(descriptor.Format)),
		)
	}
	r.strategies[descriptor.Format] = strategy
	if _, ok := r.byFormat[descriptor.Format]; !ok {
		r.byFormat[descriptor.Format] = &atomic.Int64{}
	}
	return nil
}

func (r *Registry) strategy(format Format) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.strategies[format]
	return strategy, ok
}

// Formats returns the sorted list of registered formats.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]Format, 0, len(r.strategies))
	for format := range r.strategies {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Export routes the request to the strategy registered for format. An
// unknown format is a failure result naming the supported set; nothing is
// thrown past this boundary.
func (r *Registry) Export(ctx context.Context, source, output string, format Format, opts Options) Result {
	strategy, ok := r.strategy(format)
	if !ok {
		return Failure(format, fmt.Sprintf("format %q not supported (supported: %s)", string(format), formatList(r.Formats())))
	}

	metrics.ExportsInFlight.Inc()
	start := time.Now()
	result := strategy.Export(ctx, source, output, opts)
	elapsed := time.Since(start)
	metrics.ExportsInFlight.Dec()

	outcome := "failure"
	if result.Success {
		outcome = "success"
		r.totalExports.Add(1)
		r.totalNanos.Add(int64(elapsed))
		r.totalBytes.Add(result.SizeBytes)
		if counter := r.formatCounter(format); counter != nil {
			counter.Add(1)
		}
	}
	metrics.ExportsTotal.WithLabelValues(string(format), outcome).Inc()
	metrics.ExportDuration.WithLabelValues(string(format)).Observe(elapsed.Seconds())
	return result
}

func (r *Registry) formatCounter(format Format) *atomic.Int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byFormat[format]
}

// Capabilities returns the descriptor catalog, sorted by format.
func (r *Registry) Capabilities() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptors := make([]Descriptor, 0, len(r.strategies))
	for _, strategy := range r.strategies {
		descriptors = append(descriptors, strategy.Descriptor())
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Format < descriptors[j].Format })
	return descriptors
}

// Stats snapshots the aggregate counters. Safe to call with zero exports.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	byFormat := make(map[Format]int64, len(r.byFormat))
	strategies := make(map[Format]StatsSnapshot, len(r.strategies))
	for format, counter := range r.byFormat {
		byFormat[format] = counter.Load()
	}
	for format, strategy := range r.strategies {
		strategies[format] = strategy.Stats()
	}
	r.mu.RUnlock()

	total := r.totalExports.Load()
	totalTime := time.Duration(r.totalNanos.Load())
	average := 0.0
	if total > 0 {
		average = totalTime.Seconds() / float64(total)
	}
	return RegistryStats{
		TotalExports:     total,
		ExportsByFormat:  byFormat,
		TotalExportTime:  totalTime,
		TotalOutputBytes: r.totalBytes.Load(),
		AverageSeconds:   average,
		Strategies:       strategies,
	}
}

// EstimateSeconds predicts wall-clock export time for a clip of the given
// duration. Unknown formats fall back to a conservative default constant.
func (r *Registry) EstimateSeconds(format Format, duration float64) float64 {
	constant := defaultSecondsPerOutputSecond
	if strategy, ok := r.strategy(format); ok {
		constant = strategy.Descriptor().SecondsPerOutputSecond
	}
	if duration < 0 {
		duration = 0
	}
	return constant * duration
}
