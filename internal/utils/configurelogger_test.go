package utils

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigureDefaultLogger_UnexpectedLevel(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	if _, err := ConfigureDefaultLogger("verbose", "", slog.HandlerOptions{}); !errors.Is(err, errUnexpectedLogLevel) {
		t.Errorf("expected errUnexpectedLogLevel, got %v", err)
	}
}

func TestConfigureDefaultLogger_File(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "pcmstream.log")
	logFilePointer, err := ConfigureDefaultLogger("warn", path, slog.HandlerOptions{})
	if err != nil {
		t.Fatalf("ConfigureDefaultLogger failed: %v", err)
	}
	if logFilePointer == nil {
		t.Fatal("expected a log file pointer")
	}

	slog.Info("hidden")
	slog.Warn("shown", "frames", 3)
	logFilePointer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"frames":3`) {
		t.Errorf("expected JSON warn record, got %q", out)
	}
}

func TestConfigureDefaultLogger_None(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logFilePointer, err := ConfigureDefaultLogger("none", "ignored.log", slog.HandlerOptions{})
	if err != nil || logFilePointer != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", logFilePointer, err)
	}
}
