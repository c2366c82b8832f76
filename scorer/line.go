package scorer

import (
	"context"
	"log/slog"
)

// LineScorer resolves the score of one line. Empty lines get EmptyLineScore,
// cached lines are answered from the cache and everything else goes to the
// endpoint with retries. Score never fails: exhausted retries yield
// FallbackScore, which is not cached so that a later identical line is tried
// again.
type LineScorer struct {
	cache   *ScoreCache
	retry   *RetryConfig
	metrics *MetricsRecorder
}

// NewLineScorer creates a scorer backed by cache
func NewLineScorer(cache *ScoreCache, retry *RetryConfig, metrics *MetricsRecorder) *LineScorer {
	if cache == nil {
		cache = NewScoreCache()
	}
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &LineScorer{
		cache:   cache,
		retry:   retry,
		metrics: metrics,
	}
}

// Cache returns the cache the scorer reads and fills
func (s *LineScorer) Cache() *ScoreCache {
	return s.cache
}

// Score returns the score for line, calling the endpoint through session
// only on a cache miss.
func (s *LineScorer) Score(ctx context.Context, session Session, line string) int64 {
	if line == "" {
		s.metrics.RecordLine("empty")
		return EmptyLineScore
	}

	if score, ok := s.cache.Get(line); ok {
		s.metrics.RecordLine("cache")
		return score
	}

	w := &RetryWrapper{session: session, config: s.retry, metrics: s.metrics}
	score, err := w.Score(ctx, line)
	if err != nil {
		s.metrics.RecordLine("fallback")
		slog.Debug("Line scored with fallback",
			"line_length", len(line),
			"error", err)
		return FallbackScore
	}

	s.cache.Put(line, score)
	s.metrics.RecordLine("remote")
	return score
}
