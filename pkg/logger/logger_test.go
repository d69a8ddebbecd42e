package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"debug", DebugConfig(), false},
		{"bad level", &Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", &Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"bad output", &Config{Level: InfoLevel, Format: TextFormat, Output: "syslog"}, true},
		{"file without path", &Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJSONLoggerKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&Config{Level: DebugLevel, Format: JSONFormat, Output: StdoutOutput}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}

	l.WithComponent("mapping").WithField("pairs", 2).WithError(errors.New("boom")).Warn("conflict")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "mapping" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["pairs"] != float64(2) {
		t.Errorf("expected pairs field, got %v", entry["pairs"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
	if entry["level"] != "warning" {
		t.Errorf("expected warning level, got %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&Config{Level: WarnLevel, Format: TextFormat, Output: StdoutOutput, DisableTimestamp: true}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn line in output: %q", out)
	}
}

func TestProgressTrackerConcurrent(t *testing.T) {
	var mu sync.Mutex
	var updates []ProgressStats

	tracker := NewProgressTracker(ProgressConfig{
		Operation:   "attribute",
		Total:       100,
		LogInterval: time.Nanosecond,
		Logger:      Discard(),
		OnUpdate: func(s ProgressStats) {
			mu.Lock()
			updates = append(updates, s)
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				tracker.Increment()
			}
		}()
	}
	wg.Wait()
	tracker.Complete()

	stats := tracker.GetStats()
	if stats.Current != 100 {
		t.Errorf("expected 100 processed, got %d", stats.Current)
	}
	if stats.Percentage != 100 {
		t.Errorf("expected 100%%, got %.1f", stats.Percentage)
	}
	if len(updates) == 0 {
		t.Error("expected OnUpdate to be called")
	}
	if !strings.Contains(stats.String(), "attribute: 100/100") {
		t.Errorf("unexpected stats string %q", stats.String())
	}
}
