package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ChunkProcessor scores every line of a chunk with at most maxConcurrent
// operations in flight and sums the results.
type ChunkProcessor struct {
	client        Client
	scorer        *LineScorer
	maxConcurrent int
	metrics       *MetricsRecorder
}

// NewChunkProcessor creates a processor scoring lines through client
func NewChunkProcessor(client Client, scorer *LineScorer, maxConcurrent int, metrics *MetricsRecorder) *ChunkProcessor {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &ChunkProcessor{
		client:        client,
		scorer:        scorer,
		maxConcurrent: maxConcurrent,
		metrics:       metrics,
	}
}

// Process scores lines and returns their sum. One session is shared by all
// operations of the call and closed once they have all finished. Process
// fails when ctx ends while waiting for an admission slot, in which case
// operations already started still run to completion before it returns, or
// when the sum overflows int64 (ErrScoreOverflow).
func (p *ChunkProcessor) Process(ctx context.Context, lines []string) (int64, error) {
	start := time.Now()
	slog.Info("Processing chunk", "lines", len(lines))

	session := p.client.NewSession()
	defer session.Close()

	gate := semaphore.NewWeighted(int64(p.maxConcurrent))
	scores := make([]int64, len(lines))

	var wg sync.WaitGroup
	var gateErr error
	for i, line := range lines {
		if err := gate.Acquire(ctx, 1); err != nil {
			gateErr = fmt.Errorf("waiting for admission slot at line %d: %w", i, err)
			break
		}
		p.metrics.RecordInflight(1)

		wg.Add(1)
		go func(i int, line string) {
			defer wg.Done()
			defer gate.Release(1)
			defer p.metrics.RecordInflight(-1)
			scores[i] = p.scorer.Score(ctx, session, line)
		}(i, line)
	}
	wg.Wait()

	if gateErr != nil {
		return 0, gateErr
	}

	var sum int64
	for i, score := range scores {
		var ok bool
		if sum, ok = addScore(sum, score); !ok {
			return 0, fmt.Errorf("%w: at line %d of chunk", ErrScoreOverflow, i)
		}
	}

	p.metrics.RecordChunk(time.Since(start).Seconds())
	slog.Info("Finished processing chunk",
		"lines", len(lines),
		"partial", sum,
		"duration", time.Since(start))

	return sum, nil
}
