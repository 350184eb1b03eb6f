package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"holoexport/internal/config"
	"holoexport/internal/logging"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("startup message")
}

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "export")
	component.Info("job finished",
		logging.String(logging.FieldFormat, "mp4"),
		logging.Int(logging.FieldProgress, 100),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "export: job finished") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "format=mp4") || !strings.Contains(line, "progress=100") {
		t.Fatalf("expected key=value attrs, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be folded into the prefix, got %q", line)
	}
}

func TestConsoleHandlerFiltersBelowLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "filtered.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("visible")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("info line should be filtered, got %q", content)
	}
	if !strings.Contains(string(content), "visible") {
		t.Fatalf("warn line missing, got %q", content)
	}
}

func TestJSONFormatLowercasesLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Error("boom")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"level":"error"`) {
		t.Fatalf("expected lowercase level key, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
