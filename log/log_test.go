package log

import (
	"errors"
	"io"
	"testing"
	"time"
)

var (
	sampleInt      = 3
	sampleBytes    = []byte("123")
	sampleList     = []int64{10, 0, -10}
	sampleDuration = time.Second
	sampleTime     = time.Unix(12345678, 0)

	errSample = errors.New("some error")
)

func doLogs() {
	// Some sample logs from existing code.
	Infof("added %d entries to ledger %x", sampleInt, sampleBytes)
	Debugw("importing circuit", "hash", "abc123", "curve", "bn254")
	Errorf("cannot commit to store: %v", errSample)
	Warnw("various types",
		"list", sampleList,
		"duration", sampleDuration,
		"time", sampleTime,
	)
	Error(errSample)
}

func TestLevels(t *testing.T) {
	Init(LogLevelWarn, "", io.Discard)
	if Level() != "warn" {
		t.Errorf("expected warn level, got %s", Level())
	}
	Init("bogus", "", io.Discard)
	if Level() != "info" {
		t.Errorf("unknown levels should default to info, got %s", Level())
	}
}

func BenchmarkLogger(b *testing.B) {
	Init(LogLevelDebug, "", io.Discard)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		doLogs()
	}
}
