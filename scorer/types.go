package scorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	// EmptyLineScore is returned for an empty line without consulting the
	// cache or the endpoint.
	EmptyLineScore int64 = 136261

	// FallbackScore is returned when every attempt for a line failed. It is
	// never cached.
	FallbackScore int64 = 0

	DefaultNumWorkers    = 10
	DefaultMaxConcurrent = 100
	DefaultMaxAttempts   = 3
	DefaultInitialDelay  = 2 * time.Second
	DefaultTimeout       = 30 * time.Second
)

// Client opens sessions against a scoring endpoint.
type Client interface {
	// NewSession returns a session whose connections are shared by every
	// scoring call made through it. The caller must Close it.
	NewSession() Session
}

// Session performs one scoring exchange per call.
type Session interface {
	// Score sends line to the endpoint once and returns the endpoint's score.
	Score(ctx context.Context, line string) (int64, error)

	// Close releases the session's connections.
	Close()
}

// Dispatcher runs one chunk on a worker and returns its partial result.
// Implementations must be safe to call concurrently.
type Dispatcher interface {
	Dispatch(ctx context.Context, chunk Chunk) (int64, error)
}

// Chunk is a contiguous run of input lines assigned to one worker.
type Chunk struct {
	Index  int      `json:"index"`  // Position of the chunk in the partition
	Offset int      `json:"offset"` // Index of the first line in the full input
	Lines  []string `json:"lines"`  // Lines in original order
}

// Result is the outcome of a complete run.
type Result struct {
	Total   int64         // Sum of all partial results
	Lines   int           // Number of lines scored
	Chunks  int           // Number of chunks dispatched
	Elapsed time.Duration // Wall-clock time of the run
}

// Backend selects how chunks are dispatched to workers.
type Backend string

const (
	BackendLocal   Backend = "local"
	BackendProcess Backend = "process"
)

// Provider selects the kind of scoring endpoint.
type Provider string

const (
	ProviderHTTP   Provider = "http"
	ProviderOpenAI Provider = "openai"
)

// Config holds the configuration for the scoring engine
type Config struct {
	Endpoint             string                // Scoring endpoint URL (http provider)
	Provider             Provider              // Endpoint provider
	OpenAIKey            string                // API key (openai provider)
	Model                string                // Model name (openai provider)
	NumWorkers           int                   // Number of chunks and worker slots
	MaxConcurrent        int                   // In-flight requests per chunk
	TotalLines           int                   // Declared line count (0 = use the input length)
	Timeout              time.Duration         // Per-request timeout
	Backend              Backend               // Worker backend
	WorkerCommand        []string              // Argv for process workers (process backend)
	EnableCircuitBreaker bool                  // Enable circuit breaker pattern
	EnableMetrics        bool                  // Record Prometheus metrics
	CircuitBreakerConfig *CircuitBreakerConfig // Circuit breaker configuration
	RetryConfig          *RetryConfig          // Retry configuration
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	MaxRequests   uint32                                      // Max requests in half-open state
	Interval      time.Duration                               // Interval for closed state
	Timeout       time.Duration                               // Timeout for open state
	ReadyToTrip   func(counts gobreaker.Counts) bool          // Custom trip condition
	OnStateChange func(name string, from, to gobreaker.State) // State change callback
}

// RetryConfig holds retry settings
type RetryConfig struct {
	MaxAttempts  int           // Total attempts per line, including the first
	InitialDelay time.Duration // Delay after the first failure; doubles each retry
}

// Error definitions
var (
	ErrMissingEndpoint    = errors.New("scoring endpoint is required")
	ErrMissingAPIKey      = errors.New("OpenAI API key is required")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrPartitionMismatch  = errors.New("declared line count does not match input")
	ErrInvalidWorkerCount = errors.New("worker count must be positive")
	ErrMalformedResponse  = errors.New("malformed score response")
	ErrScoreOverflow      = errors.New("total score overflows int64")
)

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned %s", e.Status)
}

// WorkerError reports a chunk whose dispatch failed as a whole.
type WorkerError struct {
	Chunk int
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker for chunk %d failed: %v", e.Chunk, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// Stage names the phase of a run that raised a fatal error.
type Stage string

const (
	StagePartition Stage = "partition"
	StageDispatch  Stage = "dispatch"
	StageReduce    Stage = "reduce"
)

// StageError tags a fatal run error with the stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
