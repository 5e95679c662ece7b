package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
)

// captureStderr runs fn with stderr redirected and returns what was written.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestConsoleLogger_Prefixes(t *testing.T) {
	tests := []struct {
		name string
		log  func(l *ConsoleLogger)
		want string
	}{
		{"info has no prefix", func(l *ConsoleLogger) { l.Info("loaded %d rows", 5) }, "loaded 5 rows\n"},
		{"warn", func(l *ConsoleLogger) { l.Warn("replacing %d rows", 2) }, "[WARN] replacing 2 rows\n"},
		{"error", func(l *ConsoleLogger) { l.Error("load failed: %s", "boom") }, "[ERROR] load failed: boom\n"},
		{"verbose enabled", func(l *ConsoleLogger) { l.Verbose("acquired session") }, "[VERBOSE] acquired session\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := captureStderr(t, func() { tt.log(NewConsoleLogger(true)) })
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsoleLogger_VerboseDisabled(t *testing.T) {
	got := captureStderr(t, func() {
		NewConsoleLogger(false).Verbose("should not appear")
	})
	if got != "" {
		t.Errorf("expected no output, got %q", got)
	}
}

func TestConsoleLogger_LiteralPercentWithoutArgs(t *testing.T) {
	got := captureStderr(t, func() {
		NewConsoleLogger(false).Info("progress 100%")
	})
	if got != "progress 100%\n" {
		t.Errorf("format verbs must not be interpreted without args, got %q", got)
	}
}

func TestConsoleLogger_ConcurrentWritesStayWhole(t *testing.T) {
	output := captureStderr(t, func() {
		logger := NewConsoleLogger(true)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				logger.Info("message %d", id)
				logger.Error("error %d", id)
			}(i)
		}
		wg.Wait()
	})

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if !strings.Contains(line, "message") && !strings.Contains(line, "error") {
			t.Errorf("line %d appears interleaved: %q", i, line)
		}
	}
}

func TestNullLogger_Discards(t *testing.T) {
	got := captureStderr(t, func() {
		l := NewNullLogger()
		l.Verbose("v")
		l.Info("i")
		l.Warn("w")
		l.Error("e")
	})
	if got != "" {
		t.Errorf("NullLogger must discard everything, got %q", got)
	}
}
