package export

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"holoexport/internal/logging"
)

// stubStrategy satisfies Strategy with a scripted outcome.
type stubStrategy struct {
	descriptor Descriptor
	result     Result
	stats      Stats
}

func (s *stubStrategy) Descriptor() Descriptor { return s.descriptor }
func (s *stubStrategy) Stats() StatsSnapshot   { return s.stats.Snapshot() }
func (s *stubStrategy) Validate(Options) error { return nil }
func (s *stubStrategy) Export(context.Context, string, string, Options) Result {
	s.stats.record(s.result, time.Millisecond)
	return s.result
}

func newStubStrategy(format Format, success bool) *stubStrategy {
	result := Result{Success: success, Format: format, SizeBytes: 64}
	if !success {
		result = Failure(format, "stub failure")
	}
	return &stubStrategy{
		descriptor: Descriptor{
			Name:                   "stub " + string(format),
			Format:                 format,
			Qualities:              []Quality{QualityMedium},
			MaxWidth:               1920,
			MaxHeight:              1080,
			SecondsPerOutputSecond: 2,
		},
		result: result,
	}
}

func TestRegisterRejectsMissingFormat(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	if err := registry.Register(&stubStrategy{descriptor: Descriptor{Name: "anonymous"}}); err == nil {
		t.Fatal("expected rejection of a strategy with no format")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected rejection of a nil strategy")
	}
}

func TestRegisterOverwriteKeepsLatest(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	first := newStubStrategy(FormatMP4, true)
	second := newStubStrategy(FormatMP4, false)
	if err := registry.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(second); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	result := registry.Export(context.Background(), "in", "out", FormatMP4, Options{})
	if result.Success {
		t.Fatal("expected the replacement strategy to handle the export")
	}
}

func TestExportUnknownFormatListsSupported(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	if err := registry.Register(newStubStrategy(FormatMP4, true)); err != nil {
		t.Fatalf("register: %v", err)
	}
	result := registry.Export(context.Background(), "in", "out", Format("avi"), Options{})
	if result.Success {
		t.Fatal("expected routing failure")
	}
	if !strings.Contains(result.Error, `"avi"`) || !strings.Contains(result.Error, "mp4") {
		t.Fatalf("error does not name format and supported set: %q", result.Error)
	}
}

func TestCapabilitiesMatchRegisteredSet(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	for _, format := range []Format{FormatGIF, FormatMP4} {
		if err := registry.Register(newStubStrategy(format, true)); err != nil {
			t.Fatalf("register %s: %v", format, err)
		}
	}
	descriptors := registry.Capabilities()
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descriptors))
	}
	if descriptors[0].Format != FormatGIF || descriptors[1].Format != FormatMP4 {
		t.Fatalf("catalog not sorted by format: %+v", descriptors)
	}
	if len(descriptors[0].Qualities) != 1 || descriptors[0].Qualities[0] != QualityMedium {
		t.Fatalf("descriptor qualities diverge from strategy: %+v", descriptors[0])
	}
}

func TestStatsSafeWithZeroExports(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	stats := registry.Stats()
	if stats.TotalExports != 0 || stats.AverageSeconds != 0 {
		t.Fatalf("unexpected zero-state stats: %+v", stats)
	}
}

func TestConcurrentExportsDoNotLoseUpdates(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	if err := registry.Register(newStubStrategy(FormatMP4, true)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(newStubStrategy(FormatGIF, true)); err != nil {
		t.Fatalf("register: %v", err)
	}

	const workers = 16
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		format := FormatMP4
		if i%2 == 1 {
			format = FormatGIF
		}
		wg.Add(1)
		go func(format Format) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				registry.Export(context.Background(), "in", "out", format, Options{})
			}
		}(format)
	}
	wg.Wait()

	stats := registry.Stats()
	want := int64(workers * perWorker)
	if stats.TotalExports != want {
		t.Fatalf("total exports = %d, want %d", stats.TotalExports, want)
	}
	if stats.ExportsByFormat[FormatMP4] != want/2 || stats.ExportsByFormat[FormatGIF] != want/2 {
		t.Fatalf("per-format counters lost updates: %+v", stats.ExportsByFormat)
	}
	if stats.TotalOutputBytes != want*64 {
		t.Fatalf("cumulative bytes = %d, want %d", stats.TotalOutputBytes, want*64)
	}
	if stats.TotalExportTime <= 0 {
		t.Fatal("expected cumulative export time to advance")
	}
}

func TestEstimateSeconds(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	if err := registry.Register(newStubStrategy(FormatMP4, true)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := registry.EstimateSeconds(FormatMP4, 10); got != 20 {
		t.Fatalf("EstimateSeconds(mp4, 10) = %v, want 20", got)
	}
	if got := registry.EstimateSeconds(Format("avi"), 10); got != 10*defaultSecondsPerOutputSecond {
		t.Fatalf("unknown format estimate = %v", got)
	}
	if got := registry.EstimateSeconds(FormatMP4, -3); got != 0 {
		t.Fatalf("negative duration estimate = %v, want 0", got)
	}
}
