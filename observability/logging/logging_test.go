package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, " landsaled ", "test")
	logger.Info("mint committed", "kind", "public")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "mint committed" || line["severity"] != "INFO" {
		t.Fatalf("unexpected core keys: %v", line)
	}
	if line["service"] != "landsaled" || line["env"] != "test" {
		t.Fatalf("unexpected service attributes: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("expected timestamp key: %v", line)
	}
}

func TestSetupWithFileWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger, closer := SetupWithFile("landsaled", "", FileOptions{Path: path, MaxSizeMB: 1})
	logger.Warn("rotating sink")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"rotating sink"`)) {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestMaskField(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"client", "203.0.113.7", RedactedValue},
		{"method", "landsale_mintLand", "landsale_mintLand"},
		{"requestId", "0b9f", "0b9f"},
		{" RequestID ", "0b9f", "0b9f"},
		{"client", "  ", "  "},
	}
	for _, tc := range cases {
		if got := MaskField(tc.key, tc.value).Value.String(); got != tc.want {
			t.Fatalf("MaskField(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestMaskCredential(t *testing.T) {
	cases := map[string]string{
		"Bearer secret": "Bearer " + RedactedValue,
		"secret":        RedactedValue,
		"":              "",
	}
	for header, want := range cases {
		if got := MaskCredential("authorization", header).Value.String(); got != want {
			t.Fatalf("MaskCredential(%q) = %q, want %q", header, got, want)
		}
	}
}
