package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBoundedFile_KeepsTailUnderCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	f, err := OpenBounded(path, 256)
	if err != nil {
		t.Fatalf("OpenBounded: %v", err)
	}
	defer func() { _ = f.Close() }()

	for i := 0; i < 50; i++ {
		if _, err := fmt.Fprintf(f, "{\"n\":%02d}\n", i); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() > 256 {
		t.Fatalf("file size %d exceeds cap", st.Size())
	}

	lines, err := f.Tail(0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) == 0 {
		t.Fatalf("expected lines after truncation")
	}
	if got := lines[len(lines)-1]; got != `{"n":49}` {
		t.Fatalf("last line: want newest record, got %q", got)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, `{"n":`) || !strings.HasSuffix(l, "}") {
			t.Fatalf("partial record kept: %q", l)
		}
	}
}

func TestBoundedFile_TailLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	f, err := OpenBounded(path, 1024)
	if err != nil {
		t.Fatalf("OpenBounded: %v", err)
	}
	defer func() { _ = f.Close() }()

	for _, s := range []string{"a", "b", "c", "d"} {
		_, _ = f.Write([]byte(s + "\n"))
	}
	lines, err := f.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 || lines[0] != "c" || lines[1] != "d" {
		t.Fatalf("Tail(2): got %v", lines)
	}
}

func TestBoundedFile_RecoversAfterFailedTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	f, err := OpenBounded(path, 64)
	if err != nil {
		t.Fatalf("OpenBounded: %v", err)
	}

	errDisk := errors.New("disk full")
	writeFile = func(string, []byte, os.FileMode) error { return errDisk }
	t.Cleanup(func() { writeFile = os.WriteFile })

	if _, err := f.Write([]byte(strings.Repeat("x", 80) + "\n")); !errors.Is(err, errDisk) {
		t.Fatalf("expected truncate failure, got %v", err)
	}

	writeFile = os.WriteFile
	if _, err := f.Write([]byte("ok\n")); err != nil {
		t.Fatalf("write after failed truncate: %v", err)
	}
	lines, err := f.Tail(0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 1 || lines[0] != "ok" {
		t.Fatalf("Tail: got %v", lines)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.Write([]byte("late\n")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after Close: got %v", err)
	}
}

func TestNewEventLogger_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	lg, f, err := NewEventLogger("events", dir, "events.log", 4096)
	if err != nil {
		t.Fatalf("NewEventLogger: %v", err)
	}
	lg.Infow("command_received", "type", "light.toggle")
	_ = lg.Sync()
	_ = f.Close()

	data, err := os.ReadFile(filepath.Join(dir, "events.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"message":"command_received"`, `"logger":"events"`, `"level":"INFO"`, `"type":"light.toggle"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
}

func TestToZapLevel(t *testing.T) {
	cases := map[string]string{
		InfoLevel:  "info",
		WarnLevel:  "warn",
		ErrorLevel: "error",
		"bogus":    "debug",
	}
	for in, want := range cases {
		if got := toZapLevel(in).String(); got != want {
			t.Errorf("toZapLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
