package psgs

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debugf(format string, args ...interface{}) {
	r.lines = append(r.lines, "D "+fmt.Sprintf(format, args...))
}
func (r *recordingLogger) Infof(format string, args ...interface{}) {
	r.lines = append(r.lines, "I "+fmt.Sprintf(format, args...))
}
func (r *recordingLogger) Warningf(format string, args ...interface{}) {
	r.lines = append(r.lines, "W "+fmt.Sprintf(format, args...))
}
func (r *recordingLogger) Errorf(format string, args ...interface{}) {
	r.lines = append(r.lines, "E "+fmt.Sprintf(format, args...))
}
func (r *recordingLogger) Shutdown() {}

func TestLogMode(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	oldMode := LogMode()
	defer func() {
		SetLogger(nil)
		SetLogMode(oldMode)
	}()

	SetLogMode(WarningMode)
	Debugf("d")
	Infof("i")
	Warningf("w")
	Errorf("e")
	if len(rec.lines) != 2 {
		t.Fatalf("expected 2 lines at warning level, got %v", rec.lines)
	}
	if rec.lines[0] != "W w" || rec.lines[1] != "E e" {
		t.Errorf("unexpected lines %v", rec.lines)
	}

	rec.lines = nil
	SetLogMode(SilentMode)
	Errorf("nothing")
	if len(rec.lines) != 0 {
		t.Errorf("silent mode logged %v", rec.lines)
	}

	SetLogMode(DebugMode)
	tlog := NewTimeLog()
	tlog.Debugf("step %d", 1)
	if len(rec.lines) != 1 {
		t.Fatalf("expected timed debug line, got %v", rec.lines)
	}
	if !strings.HasPrefix(rec.lines[0], "D step 1: ") {
		t.Errorf("expected elapsed time after message, got %q", rec.lines[0])
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if !FileExists(dir) {
		t.Errorf("expected %s to exist", dir)
	}
	if FileExists(filepath.Join(dir, "missing")) {
		t.Errorf("didn't expect missing file to exist")
	}
}
