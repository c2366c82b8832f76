package scorer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerClient wraps a Client so that every scoring exchange, from
// any session, passes through one shared circuit breaker.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[int64]
}

// NewCircuitBreakerClient creates a new circuit breaker wrapper around a Client
func NewCircuitBreakerClient(client Client, config *CircuitBreakerConfig) *CircuitBreakerClient {
	if config == nil {
		config = &CircuitBreakerConfig{
			MaxRequests: 10,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: defaultReadyToTrip,
		}
	}

	settings := gobreaker.Settings{
		Name:        "scoring-endpoint",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: config.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			if config.OnStateChange != nil {
				config.OnStateChange(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return !ShouldTripCircuit(err)
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[int64](settings),
	}
}

// NewSession opens a session on the wrapped client
func (c *CircuitBreakerClient) NewSession() Session {
	return &circuitBreakerSession{
		session: c.client.NewSession(),
		cb:      c.cb,
	}
}

// State returns the current state of the circuit breaker
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the current counts of the circuit breaker
func (c *CircuitBreakerClient) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

type circuitBreakerSession struct {
	session Session
	cb      *gobreaker.CircuitBreaker[int64]
}

func (s *circuitBreakerSession) Score(ctx context.Context, line string) (int64, error) {
	score, err := s.cb.Execute(func() (int64, error) {
		return s.session.Score(ctx, line)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Debug("Circuit breaker is open, request rejected",
				"error", err)
		} else if errors.Is(err, gobreaker.ErrTooManyRequests) {
			slog.Debug("Circuit breaker in half-open state, too many requests",
				"error", err)
		}
	}

	return score, err
}

func (s *circuitBreakerSession) Close() {
	s.session.Close()
}

// ShouldTripCircuit determines if an error should count against the circuit.
// Client-side cancellation says nothing about the endpoint's health.
func ShouldTripCircuit(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		// Rate limiting is expected under load
		return statusErr.StatusCode != 429
	}

	return true
}

// stateToInt converts circuit breaker state to int for metrics
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
