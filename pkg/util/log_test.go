package util

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// captureLog sends log lines to a buffer until the test ends.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	out, level, formatter := Logger.Out, Logger.Level, Logger.Formatter
	t.Cleanup(func() {
		Logger.SetOutput(out)
		Logger.SetLevel(level)
		Logger.SetFormatter(formatter)
	})
	var buf bytes.Buffer
	Logger.SetOutput(&buf)
	return &buf
}

func TestSetLogLevel(t *testing.T) {
	captureLog(t)

	tests := []struct {
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{"debug", logrus.DebugLevel, false},
		{"info", logrus.InfoLevel, false},
		{"warn", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"invalid", logrus.ErrorLevel, true},
	}
	for _, tt := range tests {
		err := SetLogLevel(tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
		}
		if Logger.Level != tt.want {
			t.Errorf("SetLogLevel(%q) level = %v, want %v", tt.level, Logger.Level, tt.want)
		}
	}
}

func TestSetJSONFormatCarriesDeviceContext(t *testing.T) {
	buf := captureLog(t)
	SetJSONFormat()

	WithStep("sw1", "add_device").Warn("device exists")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["device"] != "sw1" || entry["step"] != "add_device" {
		t.Errorf("entry = %v, want device sw1 at step add_device", entry)
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want warning", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLog(t)
	SetLogLevel("warn")

	Debug("debug")
	Debugf("debug %d", 1)
	Infof("info %d", 2)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	Warnf("warn %d", 3)
	WithDevice("sw1").Errorf("error %d", 4)
	got := buf.String()
	if !strings.Contains(got, "warn 3") || !strings.Contains(got, "error 4") || !strings.Contains(got, "device=sw1") {
		t.Errorf("missing warn/error output: %q", got)
	}
}

func TestSetLogFile(t *testing.T) {
	captureLog(t)
	path := filepath.Join(t.TempDir(), "sotboard.log")

	if err := SetLogFile(path); err != nil {
		t.Fatalf("SetLogFile() error = %v", err)
	}
	Warnf("written to %s", "file")
	if c, ok := Logger.Out.(io.Closer); ok {
		defer c.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}

	if err := SetLogFile(filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("SetLogFile() into a missing directory should fail")
	}
}

func TestContextHelpers(t *testing.T) {
	if e := WithField("key", "value"); e.Data["key"] != "value" {
		t.Errorf("WithField() data = %v", e.Data)
	}
	if e := WithFields(map[string]interface{}{"a": 1}); e.Data["a"] != 1 {
		t.Errorf("WithFields() data = %v", e.Data)
	}
	if e := WithDevice("sw1"); e.Data["device"] != "sw1" {
		t.Errorf("WithDevice() data = %v", e.Data)
	}
}
