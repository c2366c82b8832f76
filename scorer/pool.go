package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
)

// Pool runs chunks on at most size workers at a time and reduces their
// partial results into a total.
type Pool struct {
	dispatcher Dispatcher
	size       int
	metrics    *MetricsRecorder
}

// NewPool creates a pool of size workers dispatching through d
func NewPool(d Dispatcher, size int, metrics *MetricsRecorder) *Pool {
	if size <= 0 {
		size = DefaultNumWorkers
	}
	return &Pool{
		dispatcher: d,
		size:       size,
		metrics:    metrics,
	}
}

// Run dispatches every chunk and returns the sum of their partial results.
// The first failed chunk fails the run with a *WorkerError; partial results
// are never silently dropped.
func (p *Pool) Run(ctx context.Context, chunks []Chunk) (int64, error) {
	partials, err := p.dispatchAll(ctx, chunks)
	if err != nil {
		return 0, &StageError{Stage: StageDispatch, Err: err}
	}

	total, err := reduce(partials)
	if err != nil {
		return 0, &StageError{Stage: StageReduce, Err: err}
	}
	return total, nil
}

func (p *Pool) dispatchAll(ctx context.Context, chunks []Chunk) ([]int64, error) {
	partials := make([]int64, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i := range chunks {
		chunk := chunks[i]
		g.Go(func() error {
			partial, err := p.dispatcher.Dispatch(gctx, chunk)
			if err != nil {
				p.metrics.RecordChunkFailure()
				slog.Error("Chunk dispatch failed",
					"chunk", chunk.Index,
					"lines", len(chunk.Lines),
					"error", err)
				return &WorkerError{Chunk: chunk.Index, Err: err}
			}
			partials[i] = partial
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

// reduce sums partials, reporting int64 overflow instead of wrapping
func reduce(partials []int64) (int64, error) {
	var total int64
	for i, v := range partials {
		var ok bool
		if total, ok = addScore(total, v); !ok {
			return 0, fmt.Errorf("%w: at chunk %d", ErrScoreOverflow, i)
		}
	}
	return total, nil
}

// addScore returns total+v, or false when the sum does not fit in an int64
func addScore(total, v int64) (int64, bool) {
	if (v > 0 && total > math.MaxInt64-v) || (v < 0 && total < math.MinInt64-v) {
		return 0, false
	}
	return total + v, true
}

// LocalDispatcher runs chunks in the calling process. All chunks share the
// processor's cache.
type LocalDispatcher struct {
	processor *ChunkProcessor
}

// NewLocalDispatcher creates a dispatcher running processor in-process
func NewLocalDispatcher(processor *ChunkProcessor) *LocalDispatcher {
	return &LocalDispatcher{processor: processor}
}

// Dispatch processes chunk on the calling goroutine
func (d *LocalDispatcher) Dispatch(ctx context.Context, chunk Chunk) (int64, error) {
	slog.Debug("Dispatching chunk locally",
		"chunk", chunk.Index,
		"offset", chunk.Offset,
		"lines", len(chunk.Lines))
	return d.processor.Process(ctx, chunk.Lines)
}
