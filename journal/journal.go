// Package journal writes server events as zstd-compressed JSONL files,
// rotated hourly. It is an operator-facing audit trail, not game state;
// a nil Recorder discards everything.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Event is one journal line.
type Event struct {
	TS     int64  `json:"ts"`
	Kind   string `json:"kind"`
	Agent  string `json:"agent,omitempty"`
	Matrix string `json:"matrix,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Recorder appends events to hourly files named <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type Recorder struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// New returns a Recorder writing under baseDir, or nil if baseDir is empty.
func New(baseDir, prefix string) *Recorder {
	if baseDir == "" {
		return nil
	}
	return &Recorder{baseDir: baseDir, prefix: prefix}
}

// Record appends one event. Errors rotate files or write lines; a nil
// Recorder silently discards.
func (r *Recorder) Record(ev Event) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.TS == 0 {
		ev.TS = time.Now().Unix()
	}
	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != r.curHour {
		if err := r.rotateLocked(hour); err != nil {
			return err
		}
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(line); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

func (r *Recorder) rotateLocked(hour string) error {
	if err := r.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.jsonl.zst", r.prefix, hour)
	f, err := os.OpenFile(filepath.Join(r.baseDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.enc = enc
	r.w = bufio.NewWriterSize(enc, 64<<10)
	r.curHour = hour
	return nil
}

// Close flushes and closes the current file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Recorder) closeLocked() error {
	if r.f == nil {
		return nil
	}
	var firstErr error
	if err := r.w.Flush(); err != nil {
		firstErr = err
	}
	if err := r.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	r.f, r.enc, r.w = nil, nil, nil
	r.curHour = ""
	return firstErr
}
