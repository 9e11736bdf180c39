// Package log holds a town's append-only history. cmd/replay rebuilds a town
// from a snapshot plus the txs stream.
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

	"cryptotown.ai/internal/sim/town"
)

// JSONLZstdWriter appends one JSON object per line to zstd files rotated on
// the UTC hour: <baseDir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst. Every Write is
// flushed, so a crash loses at most the frame in progress and readers stop
// at the last complete line.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

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

// TxLogger records every applied transaction, accepted or rejected, in seq
// order under <townDir>/txs. Entries carry the full request so replaying them
// over the snapshot at seq-1 reproduces the town, including which
// transactions failed and with what code.
type TxLogger struct{ w *JSONLZstdWriter }

func NewTxLogger(townDir string) *TxLogger {
	return &TxLogger{w: NewJSONLZstdWriter(filepath.Join(townDir, "txs"), "txs")}
}

func (l *TxLogger) WriteTx(v town.TxLogEntry) error { return l.w.Write(v) }
func (l *TxLogger) Close() error                    { return l.w.Close() }

// EventLogger records committed events under <townDir>/events. Rolled-back
// transactions never reach it; an entry's seq ties it to its txs line.
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(townDir string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(townDir, "events"), "events")}
}

func (l *EventLogger) WriteEvent(v town.EventLogEntry) error { return l.w.Write(v) }
func (l *EventLogger) Close() error                          { return l.w.Close() }
