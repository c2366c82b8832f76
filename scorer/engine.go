package scorer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Engine wires partitioning, dispatch and reduction into a complete run
type Engine struct {
	config    Config
	client    Client
	breaker   *CircuitBreakerClient
	scorer    *LineScorer
	processor *ChunkProcessor
	pool      *Pool
	metrics   *MetricsRecorder
}

// HealthStatus represents the state of the engine's endpoint resilience
type HealthStatus struct {
	Healthy bool                   // Overall health status
	Status  string                 // Human-readable status message
	Details map[string]interface{} // Additional health details
}

// New creates an engine for cfg, building the endpoint client it describes
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metrics := NewMetricsRecorder(cfg.EnableMetrics)

	var client Client
	switch cfg.Provider {
	case ProviderOpenAI:
		provider, err := NewOpenAIProvider(cfg.OpenAIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		provider.metrics = metrics
		client = provider
	default:
		httpClient := NewHTTPClient(cfg.Endpoint, cfg.Timeout, cfg.MaxConcurrent)
		httpClient.metrics = metrics
		client = httpClient
	}

	return newEngine(cfg, client, metrics), nil
}

// NewWithClient creates an engine scoring through a caller-supplied client.
// Provider fields of cfg are ignored.
func NewWithClient(cfg Config, client Client) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validateEngine(); err != nil {
		return nil, err
	}
	return newEngine(cfg, client, NewMetricsRecorder(cfg.EnableMetrics)), nil
}

func newEngine(cfg Config, client Client, metrics *MetricsRecorder) *Engine {
	e := &Engine{
		config:  cfg,
		metrics: metrics,
	}

	if cfg.EnableCircuitBreaker {
		slog.Info("Enabling circuit breaker",
			"max_requests", cfg.CircuitBreakerConfig.MaxRequests,
			"timeout", cfg.CircuitBreakerConfig.Timeout)

		cbConfig := *cfg.CircuitBreakerConfig
		userCallback := cbConfig.OnStateChange
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
			if userCallback != nil {
				userCallback(name, from, to)
			}
		}
		e.breaker = NewCircuitBreakerClient(client, &cbConfig)
		client = e.breaker
	}

	e.client = client
	e.scorer = NewLineScorer(NewScoreCache(), cfg.RetryConfig, metrics)
	e.processor = NewChunkProcessor(client, e.scorer, cfg.MaxConcurrent, metrics)

	var dispatcher Dispatcher
	switch cfg.Backend {
	case BackendProcess:
		dispatcher = NewProcessDispatcher(cfg.WorkerCommand)
	default:
		dispatcher = NewLocalDispatcher(e.processor)
	}
	e.pool = NewPool(dispatcher, cfg.NumWorkers, metrics)

	slog.Info("Scoring engine created",
		"provider", cfg.Provider,
		"backend", cfg.Backend,
		"workers", cfg.NumWorkers,
		"max_concurrent", cfg.MaxConcurrent,
		"max_attempts", cfg.RetryConfig.MaxAttempts,
		"circuit_breaker", cfg.EnableCircuitBreaker)

	return e
}

// Run scores lines and returns the total. Fatal errors are *StageError
// values naming the stage that failed.
func (e *Engine) Run(ctx context.Context, lines []string) (Result, error) {
	start := time.Now()

	total := e.config.TotalLines
	if total == 0 {
		total = len(lines)
	}

	slog.Info("Starting run",
		"lines", len(lines),
		"declared_lines", total,
		"workers", e.config.NumWorkers)

	chunks, err := Partition(lines, total, e.config.NumWorkers)
	if err != nil {
		return Result{}, &StageError{Stage: StagePartition, Err: err}
	}

	sum, err := e.pool.Run(ctx, chunks)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Total:   sum,
		Lines:   len(lines),
		Chunks:  len(chunks),
		Elapsed: time.Since(start),
	}
	e.metrics.RecordTotal(sum)

	slog.Info("Run finished",
		"total_score", result.Total,
		"elapsed", result.Elapsed,
		"cached_lines", e.scorer.Cache().Len())

	return result, nil
}

// Processor returns the chunk processor used by local workers and by
// ServeWorker in worker processes.
func (e *Engine) Processor() *ChunkProcessor {
	return e.processor
}

// Cache returns the process-wide score cache
func (e *Engine) Cache() *ScoreCache {
	return e.scorer.Cache()
}

// GetHealth returns the health status of the engine
func (e *Engine) GetHealth() HealthStatus {
	health := HealthStatus{
		Healthy: true,
		Status:  "ok",
		Details: map[string]interface{}{
			"provider":        string(e.config.Provider),
			"backend":         string(e.config.Backend),
			"cached_lines":    e.scorer.Cache().Len(),
			"circuit_breaker": e.config.EnableCircuitBreaker,
		},
	}

	if e.breaker == nil {
		return health
	}

	state := e.breaker.State()
	counts := e.breaker.Counts()
	health.Details["circuit_breaker_state"] = state.String()
	health.Details["circuit_breaker_requests"] = counts.Requests
	health.Details["circuit_breaker_failures"] = counts.TotalFailures

	switch state {
	case gobreaker.StateOpen:
		health.Healthy = false
		health.Status = "circuit open"
	case gobreaker.StateHalfOpen:
		health.Status = "degraded"
	}
	return health
}
