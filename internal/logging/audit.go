package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// DefaultAuditBuffer is the audit queue depth used when none is given.
const DefaultAuditBuffer = 256

// AuditWriter appends JSON values to an NDJSON file from a background goroutine.
// Write never blocks and never fails: a full queue drops the value, and I/O
// errors are only reported at debug level.
type AuditWriter struct {
	path  string
	queue chan []byte
	done  chan struct{}

	mu     sync.Mutex
	closed bool

	statsMu sync.Mutex
	stats   AuditStats
}

// AuditStats counts what happened to submitted values.
type AuditStats struct {
	Written int
	Dropped int
	Failed  int
}

// NewAuditWriter starts a writer for path. The file and its directory are
// created lazily on the first write.
func NewAuditWriter(path string, buffer int) *AuditWriter {
	if buffer <= 0 {
		buffer = DefaultAuditBuffer
	}
	w := &AuditWriter{
		path:  path,
		queue: make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Path returns the target file path.
func (w *AuditWriter) Path() string {
	return w.path
}

// Write encodes v and enqueues one line for it.
func (w *AuditWriter) Write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		Get(CategoryAudit).Debug("audit: marshal failed: %v", err)
		w.count(func(s *AuditStats) { s.Failed++ })
		return
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.count(func(s *AuditStats) { s.Dropped++ })
		return
	}
	select {
	case w.queue <- data:
	default:
		w.count(func(s *AuditStats) { s.Dropped++ })
	}
}

// Close drains queued lines, closes the file and stops the goroutine.
// It is safe to call more than once.
func (w *AuditWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

// Stats returns a snapshot of the writer counters.
func (w *AuditWriter) Stats() AuditStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

func (w *AuditWriter) count(fn func(*AuditStats)) {
	w.statsMu.Lock()
	fn(&w.stats)
	w.statsMu.Unlock()
}

func (w *AuditWriter) run() {
	defer close(w.done)

	var file *os.File
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	for line := range w.queue {
		if file == nil {
			f, err := openAppend(w.path)
			if err != nil {
				Get(CategoryAudit).Debug("audit: cannot open %s: %v", w.path, err)
				w.count(func(s *AuditStats) { s.Failed++ })
				continue
			}
			file = f
		}
		if _, err := file.Write(line); err != nil {
			Get(CategoryAudit).Debug("audit: write to %s failed: %v", w.path, err)
			w.count(func(s *AuditStats) { s.Failed++ })
			continue
		}
		w.count(func(s *AuditStats) { s.Written++ })
	}
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
