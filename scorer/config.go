package scorer

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

// NewDefaultConfig creates a config for the HTTP endpoint with sensible defaults
func NewDefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		Provider:      ProviderHTTP,
		NumWorkers:    DefaultNumWorkers,
		MaxConcurrent: DefaultMaxConcurrent,
		Timeout:       DefaultTimeout,
		Backend:       BackendLocal,
		RetryConfig:   DefaultRetryConfig(),
	}
}

// NewProductionConfig creates a config with circuit breaking and metrics enabled
func NewProductionConfig(endpoint string) Config {
	cfg := NewDefaultConfig(endpoint)
	cfg.EnableMetrics = true
	return cfg.WithCircuitBreaker()
}

// DefaultRetryConfig returns three attempts with 2s and 4s waits in between
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
	}
}

// WithCircuitBreaker enables circuit breaker with default settings
func (c Config) WithCircuitBreaker() Config {
	c.EnableCircuitBreaker = true
	c.CircuitBreakerConfig = &CircuitBreakerConfig{
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: defaultReadyToTrip,
	}
	return c
}

// WithCircuitBreakerConfig enables circuit breaker with custom settings
func (c Config) WithCircuitBreakerConfig(config *CircuitBreakerConfig) Config {
	c.EnableCircuitBreaker = true
	c.CircuitBreakerConfig = config
	return c
}

// WithRetryConfig replaces the retry settings
func (c Config) WithRetryConfig(config *RetryConfig) Config {
	c.RetryConfig = config
	return c
}

// WithOpenAI switches the provider to OpenAI chat completions
func (c Config) WithOpenAI(apiKey, model string) Config {
	c.Provider = ProviderOpenAI
	c.OpenAIKey = apiKey
	c.Model = model
	return c
}

// WithWorkers sets the number of chunks and concurrent workers
func (c Config) WithWorkers(n int) Config {
	if n <= 0 {
		panic("NumWorkers must be positive")
	}
	c.NumWorkers = n
	return c
}

// WithMaxConcurrent sets the maximum in-flight requests per chunk
func (c Config) WithMaxConcurrent(max int) Config {
	if max <= 0 {
		panic("MaxConcurrent must be positive")
	}
	c.MaxConcurrent = max
	return c
}

// WithTotalLines declares the expected input line count
func (c Config) WithTotalLines(n int) Config {
	if n < 0 {
		panic("TotalLines must be non-negative")
	}
	c.TotalLines = n
	return c
}

// WithTimeout sets the per-request timeout
func (c Config) WithTimeout(timeout time.Duration) Config {
	if timeout < 0 {
		panic("timeout must be positive")
	}
	c.Timeout = timeout
	return c
}

// WithProcessBackend dispatches chunks to worker processes started with argv
func (c Config) WithProcessBackend(argv ...string) Config {
	c.Backend = BackendProcess
	c.WorkerCommand = argv
	return c
}

// WithMetrics toggles Prometheus metrics
func (c Config) WithMetrics(enabled bool) Config {
	c.EnableMetrics = enabled
	return c
}

// Validate checks if the config is valid
func (c Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	return c.validateEngine()
}

func (c Config) validateProvider() error {
	switch c.Provider {
	case ProviderHTTP, "":
		if c.Endpoint == "" {
			return ErrMissingEndpoint
		}
		u, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("%w: endpoint: %v", ErrInvalidConfig, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: endpoint scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return ErrMissingAPIKey
		}
		if c.Model != "" && !isValidModel(c.Model) {
			return fmt.Errorf("unsupported model: %s", c.Model)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	return nil
}

func (c Config) validateEngine() error {
	if c.NumWorkers <= 0 {
		return errors.New("NumWorkers must be positive")
	}

	if c.MaxConcurrent <= 0 {
		return errors.New("MaxConcurrent must be positive")
	}

	if c.TotalLines < 0 {
		return errors.New("TotalLines must be non-negative")
	}

	if c.Timeout < 0 {
		return errors.New("timeout must be positive")
	}

	switch c.Backend {
	case BackendLocal, "":
	case BackendProcess:
		if len(c.WorkerCommand) == 0 {
			return errors.New("process backend requires a worker command")
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	if c.EnableCircuitBreaker && c.CircuitBreakerConfig == nil {
		return errors.New("circuit breaker enabled but config is nil")
	}

	if c.RetryConfig != nil {
		if c.RetryConfig.MaxAttempts <= 0 {
			return errors.New("retry MaxAttempts must be positive")
		}
		if c.RetryConfig.InitialDelay < 0 {
			return errors.New("retry InitialDelay must be non-negative")
		}
	}

	return nil
}

// withDefaults fills zero values left by callers that build Config by hand
func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderHTTP
	}
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = DefaultNumWorkers
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryConfig == nil {
		c.RetryConfig = DefaultRetryConfig()
	}
	if c.Provider == ProviderOpenAI && c.Model == "" {
		c.Model = openai.GPT4oMini
	}
	return c
}

// defaultReadyToTrip trips on 5 consecutive failures or a failure rate over 60%
func defaultReadyToTrip(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.ConsecutiveFailures >= 5 ||
		(counts.Requests >= 10 && failureRatio > 0.6)
}

// isValidModel checks if the model is supported
func isValidModel(model string) bool {
	validModels := []string{
		openai.GPT4,
		openai.GPT4o,
		openai.GPT4oMini,
		openai.GPT4Turbo,
		openai.GPT3Dot5Turbo,
	}

	for _, valid := range validModels {
		if model == valid {
			return true
		}
	}
	return false
}
