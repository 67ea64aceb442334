package pkg

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// withLogger installs a logger writing to buf at the given level and
// restores the previous configuration when the test ends.
func withLogger(t *testing.T, buf *bytes.Buffer, level slog.Level) {
	t.Helper()
	original := DefaultLogger
	originalLevel := GetLogLevel()
	originalOutput := logOutput
	t.Cleanup(func() {
		SetLogger(original)
		SetLogLevel(originalLevel)
		logMutex.Lock()
		logOutput = originalOutput
		logFormat = LogFormatText
		logMutex.Unlock()
	})
	SetLogLevel(level)
	SetLogger(NewLogger(buf, nil))
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			if got := GetLogLevel(); got != tt.level {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)
	if logger == nil {
		t.Fatal("NewJSONLogger returned nil")
	}

	logger.Warn("test message")
	if !strings.Contains(buf.String(), `"msg":"test message"`) {
		t.Errorf("JSON log output missing message: %s", buf.String())
	}
}

func TestLogComponents(t *testing.T) {
	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
		want      string
	}{
		{"debug", LogDebug, ComponentBus, "component=bus"},
		{"info", LogInfo, ComponentEndpoint, "component=endpoint"},
		{"warn", LogWarn, ComponentAllocator, "component=allocator"},
		{"error", LogError, ComponentSim, "component=sim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			withLogger(t, &buf, slog.LevelDebug)

			tt.log(tt.component, tt.name+" message", "ep", 2)
			output := buf.String()
			if !strings.Contains(output, tt.name+" message") {
				t.Errorf("log missing message: %s", output)
			}
			if !strings.Contains(output, tt.want) {
				t.Errorf("log missing %q: %s", tt.want, output)
			}
			if !strings.Contains(output, "ep=2") {
				t.Errorf("log missing attribute: %s", output)
			}
		})
	}
}

func TestLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	withLogger(t, &buf, slog.LevelWarn)

	LogDebug(ComponentBus, "hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message logged at warn level: %s", buf.String())
	}
}

func TestSetLogFile(t *testing.T) {
	var buf bytes.Buffer
	withLogger(t, &buf, slog.LevelInfo)

	path := filepath.Join(t.TempDir(), "usbhs.log")
	closer := SetLogFile(path, 1, 1)
	LogInfo(ComponentCLI, "rotated sink")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "rotated sink") {
		t.Errorf("log file missing message: %s", data)
	}
	if buf.Len() != 0 {
		t.Errorf("message also written to previous logger: %s", buf.String())
	}
}

func TestSetLogFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	withLogger(t, &buf, slog.LevelInfo)

	logMutex.Lock()
	logOutput = &buf
	logMutex.Unlock()

	SetLogFormat(LogFormatJSON)
	LogInfo(ComponentBus, "json output")
	if !strings.Contains(buf.String(), `"component":"bus"`) {
		t.Errorf("JSON log missing component: %s", buf.String())
	}
}
