package event_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nika/nika/engine/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGenerationID(t *testing.T) {
	t.Run("Should accept alphanumeric ids with hyphens and underscores", func(t *testing.T) {
		assert.NoError(t, event.ValidateGenerationID("2026-07-29T10-30-00-ab12"))
		assert.NoError(t, event.ValidateGenerationID("run_1"))
	})
	t.Run("Should reject the empty string", func(t *testing.T) {
		assert.Error(t, event.ValidateGenerationID(""))
	})
	t.Run("Should reject path separators and traversal", func(t *testing.T) {
		assert.Error(t, event.ValidateGenerationID("../escape"))
		assert.Error(t, event.ValidateGenerationID("a/b"))
		assert.Error(t, event.ValidateGenerationID(`a\b`))
	})
	t.Run("Should reject other punctuation", func(t *testing.T) {
		assert.Error(t, event.ValidateGenerationID("bad id"))
		assert.Error(t, event.ValidateGenerationID("bad.id"))
	})
}

func TestGenerateGenerationID(t *testing.T) {
	t.Run("Should produce a valid, unique-looking id each call", func(t *testing.T) {
		id1, err := event.GenerateGenerationID()
		require.NoError(t, err)
		id2, err := event.GenerateGenerationID()
		require.NoError(t, err)
		assert.NoError(t, event.ValidateGenerationID(id1))
		assert.NoError(t, event.ValidateGenerationID(id2))
	})
}

func TestTraceWriter(t *testing.T) {
	t.Run("Should reject an invalid generation id before touching the filesystem", func(t *testing.T) {
		_, err := event.NewTraceWriter(t.TempDir(), "../nope")
		assert.Error(t, err)
	})
	t.Run("Should write one JSON line per event and flush", func(t *testing.T) {
		dir := t.TempDir()
		w, err := event.NewTraceWriter(dir, "gen1")
		require.NoError(t, err)
		require.NoError(t, w.WriteEvent(event.Event{ID: 0, TimestampMs: 1, Kind: event.WorkflowStarted()}))
		require.NoError(t, w.WriteEvent(event.Event{ID: 1, TimestampMs: 2, Kind: event.WorkflowCompleted(1, time.Second, "ok")}))
		require.NoError(t, w.Close())

		data, err := os.ReadFile(filepath.Join(dir, "gen1.ndjson"))
		require.NoError(t, err)
		lines := splitLines(string(data))
		assert.Len(t, lines, 2)
	})
	t.Run("Should write every event from a log via WriteAll", func(t *testing.T) {
		dir := t.TempDir()
		log := event.NewLog()
		log.Emit(event.WorkflowStarted())
		log.Emit(event.TaskStarted("a", nil))
		log.Emit(event.TaskCompleted("a", "out", time.Millisecond))

		w, err := event.NewTraceWriter(dir, "gen2")
		require.NoError(t, err)
		require.NoError(t, w.WriteAll(log))
		require.NoError(t, w.Close())

		data, err := os.ReadFile(w.Path())
		require.NoError(t, err)
		assert.Len(t, splitLines(string(data)), 3)
	})
}

func TestListTraces(t *testing.T) {
	t.Run("Should return an empty list for a missing directory", func(t *testing.T) {
		traces, err := event.ListTraces(filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, err)
		assert.Empty(t, traces)
	})
	t.Run("Should list ndjson files newest first", func(t *testing.T) {
		dir := t.TempDir()
		w1, err := event.NewTraceWriter(dir, "gen-old")
		require.NoError(t, err)
		require.NoError(t, w1.Close())
		time.Sleep(10 * time.Millisecond)
		w2, err := event.NewTraceWriter(dir, "gen-new")
		require.NoError(t, err)
		require.NoError(t, w2.Close())

		traces, err := event.ListTraces(dir)
		require.NoError(t, err)
		require.Len(t, traces, 2)
		assert.Equal(t, "gen-new", traces[0].GenerationID)
		assert.Equal(t, "gen-old", traces[1].GenerationID)
	})
}

func TestCalculateWorkflowHash(t *testing.T) {
	t.Run("Should produce a stable, xxh64-prefixed digest", func(t *testing.T) {
		h1 := event.CalculateWorkflowHash([]byte("workflow: a"))
		h2 := event.CalculateWorkflowHash([]byte("workflow: a"))
		assert.Equal(t, h1, h2)
		assert.Contains(t, h1, "xxh64:")
	})
	t.Run("Should differ for different content", func(t *testing.T) {
		h1 := event.CalculateWorkflowHash([]byte("workflow: a"))
		h2 := event.CalculateWorkflowHash([]byte("workflow: b"))
		assert.NotEqual(t, h1, h2)
	})
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
