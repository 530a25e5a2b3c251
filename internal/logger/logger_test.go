package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestQuiet(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Init("valve-autotune", "info")
	defer func() { Quiet = false }()

	Quiet = true
	Info("hidden %d", 1)
	Debug("hidden %d", 2)
	if buf.Len() != 0 {
		t.Fatalf("Quiet: ожидали пустой вывод, получили %q", buf.String())
	}

	Error("boom %s", "x")
	Warn("careful")
	out := buf.String()
	if !strings.Contains(out, "boom x") || !strings.Contains(out, "careful") {
		t.Errorf("Error/Warn должны выводиться при Quiet, получили %q", out)
	}
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Init("valve-autotune", "info")

	Info("peak count: %d", 5)
	if !strings.Contains(buf.String(), `"message":"peak count: 5"`) {
		t.Errorf("неожиданный вывод %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("нет уровня в выводе %q", buf.String())
	}
}
