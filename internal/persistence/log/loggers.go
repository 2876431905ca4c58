package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"riverfish.ai/internal/sim/tank"
)

// hourlyLog appends JSON records to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
// Each process run appends its own zstd frame to the hour's file; Close ends
// the frame so readers see every record.
type hourlyLog struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	out  *zstdFile
}

type zstdFile struct {
	f   *os.File
	zw  *zstd.Encoder
	enc *json.Encoder
}

func newHourlyLog(dir, prefix string) *hourlyLog {
	return &hourlyLog{dir: dir, prefix: prefix, now: time.Now}
}

func (l *hourlyLog) Write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.now().UTC().Format("2006-01-02-15")
	if l.out == nil || hour != l.hour {
		if err := l.switchTo(hour); err != nil {
			return err
		}
	}
	// json.Encoder terminates each record with '\n'.
	return l.out.enc.Encode(v)
}

func (l *hourlyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.out.close()
	l.out = nil
	return err
}

func (l *hourlyLog) switchTo(hour string) error {
	if err := l.out.close(); err != nil {
		return err
	}
	l.out = nil
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour)
	out, err := openZstdFile(filepath.Join(l.dir, name))
	if err != nil {
		return err
	}
	l.out = out
	l.hour = hour
	return nil
}

func openZstdFile(path string) (*zstdFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &zstdFile{f: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

func (z *zstdFile) close() error {
	if z == nil {
		return nil
	}
	err := z.zw.Close()
	if cerr := z.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadJSONL calls fn for every line of a zstd JSONL file. Concatenated
// frames from earlier process runs are read in order.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimRight(line, "\n"); len(line) > 0 {
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// TickLogger writes one JSONL entry per logged tick (compressed).
type TickLogger struct{ w *hourlyLog }

func NewTickLogger(tankDir string) *TickLogger {
	return &TickLogger{w: newHourlyLog(filepath.Join(tankDir, "events"), "events")}
}

func (l *TickLogger) WriteTick(v tank.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                        { return l.w.Close() }

// CatchLogger writes one JSONL entry per removal (compressed).
type CatchLogger struct{ w *hourlyLog }

func NewCatchLogger(tankDir string) *CatchLogger {
	return &CatchLogger{w: newHourlyLog(filepath.Join(tankDir, "catches"), "catches")}
}

func (l *CatchLogger) WriteCatch(n tank.RemovalNotice) error { return l.w.Write(n) }
func (l *CatchLogger) Close() error                          { return l.w.Close() }
