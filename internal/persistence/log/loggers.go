package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"cornerlink/internal/sim/multiworld"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	// now is swapped in tests.
	now func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// DecisionLogger writes one JSONL entry per handled portal trip (compressed).
// It satisfies multiworld.DecisionSink; write errors are counted, not returned.
type DecisionLogger struct {
	w      *JSONLZstdWriter
	mu     sync.Mutex
	errs   uint64
	errLog func(error)
}

func NewDecisionLogger(dataDir string) *DecisionLogger {
	return &DecisionLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "decisions"), "decisions")}
}

// OnError installs a callback for failed writes.
func (l *DecisionLogger) OnError(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errLog = fn
}

func (l *DecisionLogger) WriteDecision(rec multiworld.DecisionRecord) error { return l.w.Write(rec) }

func (l *DecisionLogger) RecordDecision(rec multiworld.DecisionRecord) {
	if err := l.WriteDecision(rec); err != nil {
		l.mu.Lock()
		l.errs++
		fn := l.errLog
		l.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// WriteErrors returns the number of failed RecordDecision writes.
func (l *DecisionLogger) WriteErrors() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errs
}

func (l *DecisionLogger) Close() error { return l.w.Close() }
