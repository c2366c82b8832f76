package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// workerChunk is the chunk as written to a worker's stdin. Lines travel as
// base64 so that bytes which are not valid UTF-8 reach the worker unchanged.
type workerChunk struct {
	Index  int      `json:"index"`
	Offset int      `json:"offset"`
	Lines  [][]byte `json:"lines"`
}

// workerResult is what a worker process writes to stdout
type workerResult struct {
	Partial int64 `json:"partial"`
}

func encodeChunk(chunk Chunk) workerChunk {
	lines := make([][]byte, len(chunk.Lines))
	for i, line := range chunk.Lines {
		lines[i] = []byte(line)
	}
	return workerChunk{Index: chunk.Index, Offset: chunk.Offset, Lines: lines}
}

func (w workerChunk) decode() Chunk {
	lines := make([]string, len(w.Lines))
	for i, line := range w.Lines {
		lines[i] = string(line)
	}
	return Chunk{Index: w.Index, Offset: w.Offset, Lines: lines}
}

// ProcessDispatcher runs each chunk in a fresh worker process. The chunk is
// written to the worker's stdin as JSON with base64-encoded lines and the
// worker answers on stdout with {"partial": n}. Worker processes do not
// share a cache.
type ProcessDispatcher struct {
	argv []string
	env  []string
}

// NewProcessDispatcher creates a dispatcher starting workers with argv.
// env is appended to the parent's environment.
func NewProcessDispatcher(argv []string, env ...string) *ProcessDispatcher {
	return &ProcessDispatcher{argv: argv, env: env}
}

// Dispatch starts a worker for chunk and waits for its partial result
func (d *ProcessDispatcher) Dispatch(ctx context.Context, chunk Chunk) (int64, error) {
	if len(d.argv) == 0 {
		return 0, errors.New("no worker command configured")
	}

	payload, err := json.Marshal(encodeChunk(chunk))
	if err != nil {
		return 0, fmt.Errorf("failed to encode chunk %d: %w", chunk.Index, err)
	}

	cmd := exec.CommandContext(ctx, d.argv[0], d.argv[1:]...)
	cmd.Env = append(os.Environ(), d.env...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = os.Stderr
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	slog.Debug("Starting worker process",
		"chunk", chunk.Index,
		"lines", len(chunk.Lines),
		"command", d.argv[0])

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("worker process for chunk %d: %w", chunk.Index, err)
	}

	var result workerResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return 0, fmt.Errorf("failed to decode worker result for chunk %d: %w", chunk.Index, err)
	}
	return result.Partial, nil
}

// ServeWorker is the worker side of ProcessDispatcher: it reads one chunk
// from r, processes it and writes the partial result to w.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, processor *ChunkProcessor) error {
	var wire workerChunk
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return fmt.Errorf("failed to decode chunk: %w", err)
	}
	chunk := wire.decode()

	slog.Info("Worker received chunk",
		"chunk", chunk.Index,
		"offset", chunk.Offset,
		"lines", len(chunk.Lines))

	partial, err := processor.Process(ctx, chunk.Lines)
	if err != nil {
		return fmt.Errorf("failed to process chunk %d: %w", chunk.Index, err)
	}

	if err := json.NewEncoder(w).Encode(workerResult{Partial: partial}); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
