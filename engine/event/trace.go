package event

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nika/nika/engine/core"
)

// CalculateWorkflowHash fingerprints a workflow's raw YAML source. The
// original implementation hashes with xxh3_64 and prefixes the hex digest
// with "xxh3:"; no xxh3 implementation exists in this module's dependency
// set, so xxhash/v2 (xxh64) is substituted and the prefix adjusted to
// "xxh64:" to keep the algorithm identifiable in stored traces.
func CalculateWorkflowHash(yamlSource []byte) string {
	sum := xxhash.Sum64(yamlSource)
	return "xxh64:" + strconv.FormatUint(sum, 16)
}

// DefaultTraceDir is the dot-folder under the current working directory used
// when no trace directory is configured explicitly.
const DefaultTraceDir = ".nika/traces"

// ValidateGenerationID rejects anything containing path separators, "..", or
// characters outside [A-Za-z0-9_-T], before any filesystem call is made.
func ValidateGenerationID(id string) error {
	if id == "" {
		return core.NewErrorf(core.CodeIO, map[string]any{"generation_id": id}, "generation id must not be empty")
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return core.NewErrorf(
				core.CodeIO,
				map[string]any{"generation_id": id},
				"invalid generation id %q: must be alphanumeric with hyphens/underscores only",
				id,
			)
		}
	}
	return nil
}

// GenerateGenerationID builds a per-run identifier: a UTC timestamp formatted
// YYYY-MM-DDTHH-MM-SS, suffixed with four random hex digits.
func GenerateGenerationID() (string, error) {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", core.NewError(err, core.CodeIO, nil)
	}
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	return stamp + "-" + hex.EncodeToString(buf[:]), nil
}

// TraceWriter appends one JSON object per line to <dir>/<generationID>.ndjson.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter validates generationID, creates dir if needed, and opens
// <dir>/<generationID>.ndjson for writing.
func NewTraceWriter(dir, generationID string) (*TraceWriter, error) {
	if err := ValidateGenerationID(generationID); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = DefaultTraceDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewError(err, core.CodeIO, map[string]any{"dir": dir})
	}
	path := filepath.Join(dir, generationID+".ndjson")
	f, err := os.Create(path)
	if err != nil {
		return nil, core.NewError(err, core.CodeIO, map[string]any{"path": path})
	}
	return &TraceWriter{file: f, writer: bufio.NewWriter(f), path: path}, nil
}

// Path returns the file path this writer appends to.
func (t *TraceWriter) Path() string {
	return t.path
}

// WriteEvent serializes ev as one compact JSON line and flushes immediately.
func (t *TraceWriter) WriteEvent(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return core.NewError(err, core.CodeIO, nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.Write(b); err != nil {
		return core.NewError(err, core.CodeIO, nil)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return core.NewError(err, core.CodeIO, nil)
	}
	return t.writer.Flush()
}

// WriteAll writes every event currently recorded in log, in order.
func (t *TraceWriter) WriteAll(log *Log) error {
	for _, ev := range log.Events() {
		if err := t.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases the underlying file handle.
func (t *TraceWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writer.Flush(); err != nil {
		return core.NewError(err, core.CodeIO, nil)
	}
	return t.file.Close()
}

// TraceInfo describes one discovered trace file.
type TraceInfo struct {
	GenerationID string
	Path         string
	SizeBytes    int64
	ModTime      time.Time
}

// ListTraces lists every *.ndjson file under dir, newest first. A missing
// directory is not an error: it yields an empty list.
func ListTraces(dir string) ([]TraceInfo, error) {
	if dir == "" {
		dir = DefaultTraceDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.NewError(err, core.CodeIO, map[string]any{"dir": dir})
	}
	var traces []TraceInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".ndjson" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, TraceInfo{
			GenerationID: e.Name()[:len(e.Name())-len(".ndjson")],
			Path:         filepath.Join(dir, e.Name()),
			SizeBytes:    info.Size(),
			ModTime:      info.ModTime(),
		})
	}
	sort.Slice(traces, func(i, j int) bool { return traces[i].ModTime.After(traces[j].ModTime) })
	return traces, nil
}
