package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/campus/internal/errors"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Config{
		Level:       level,
		Format:      format,
		Output:      NewOutput(buf),
		ServiceName: "campus",
	}), buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Error("expected JSON format")
	}
	if ParseFormat("console") != FormatText {
		t.Error("expected text format for unknown value")
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, FormatText)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestJSONOutputIncludesService(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatJSON)

	logger.WithComponent("session").Info("login succeeded", "user", "alice")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if record["service"] != "campus" {
		t.Errorf("expected service=campus, got %v", record["service"])
	}
	if record["component"] != "session" {
		t.Errorf("expected component=session, got %v", record["component"])
	}
	if record["user"] != "alice" {
		t.Errorf("expected user=alice, got %v", record["user"])
	}
}

func TestWithErrorCampusError(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatJSON)

	err := errors.Wrap(errors.ErrCodeNetwork, "Network error", fmt.Errorf("connection refused")).
		WithSuggestion("check the API URL")
	logger.WithError(fmt.Errorf("login: %w", err)).Error("request failed")

	var record map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &record); jsonErr != nil {
		t.Fatalf("invalid JSON log line: %v", jsonErr)
	}
	if record["error_code"] != "NET-001" {
		t.Errorf("expected error_code NET-001, got %v", record["error_code"])
	}
	if record["cause"] != "connection refused" {
		t.Errorf("expected cause, got %v", record["cause"])
	}
}

func TestWithErrorNil(t *testing.T) {
	logger, _ := newBufferLogger(LevelDebug, FormatText)
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogErrorPlain(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatText)

	logger.LogErrorContext(context.Background(), fmt.Errorf("boom"))
	logger.LogError(nil)

	out := buf.String()
	if !strings.Contains(out, "operation failed") || !strings.Contains(out, "boom") {
		t.Errorf("unexpected output: %s", out)
	}
	if strings.Count(out, "operation failed") != 1 {
		t.Errorf("nil error should not be logged: %s", out)
	}
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "campus.log")

	out, err := OutputFile(path)
	if err != nil {
		t.Fatalf("OutputFile: %v", err)
	}
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: out})
	logger.Info("written to file")
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestDefaultLogger(t *testing.T) {
	custom := Nop()
	SetDefaultLogger(custom)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	if DefaultLogger() != custom {
		t.Error("expected the configured default logger")
	}
	if OrDefault(nil) != custom {
		t.Error("OrDefault(nil) should fall back to the default logger")
	}
	other := Nop()
	if OrDefault(other) != other {
		t.Error("OrDefault should keep a non-nil logger")
	}
}
