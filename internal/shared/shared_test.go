package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestMaskSecret(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "short", in: "abc", want: "***"},
		{name: "prefix kept", in: "sk-1234567890", want: "sk-123..."},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSecret(tt.in); got != tt.want {
				t.Errorf("MaskSecret() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Run("empty defaults to info", func(t *testing.T) {
		lvl, err := ParseLevel("")
		if err != nil || lvl != log.InfoLevel {
			t.Errorf("expected info, got %v (%v)", lvl, err)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		lvl, err := ParseLevel("DEBUG")
		if err != nil || lvl != log.DebugLevel {
			t.Errorf("expected debug, got %v (%v)", lvl, err)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		if _, err := ParseLevel("chatty"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLogger(NewLogger(&buf), "component", "test")
	logger.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "component=test") {
		t.Errorf("unexpected log output %q", out)
	}

	if id := GenerateID(); len(id) != 36 {
		t.Errorf("expected uuid string, got %q", id)
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tui.log")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "written to file") {
		t.Errorf("expected log line in file, got %q (%v)", data, err)
	}
}
