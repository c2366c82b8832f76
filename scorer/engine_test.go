package scorer_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sony/gobreaker/v2"

	"github.com/JohnPlummer/line-scorer/scorer"
)

// scoringServer scores "a" as 2, "b" as 3 and anything else by its length
type scoringServer struct {
	*httptest.Server
	requests atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newScoringServer(delay time.Duration) *scoringServer {
	s := &scoringServer{delay: delay}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		n := s.inflight.Add(1)
		defer s.inflight.Add(-1)
		for {
			p := s.peak.Load()
			if n <= p || s.peak.CompareAndSwap(p, n) {
				break
			}
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}

		body, _ := io.ReadAll(r.Body)
		score := len(body)
		switch string(body) {
		case "a":
			score = 2
		case "b":
			score = 3
		}
		fmt.Fprintf(w, `{"score": %d}`, score)
	}))
	return s
}

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should reject a config without an endpoint", func() {
			_, err := scorer.New(scorer.Config{})
			Expect(err).To(MatchError(scorer.ErrMissingEndpoint))
		})

		It("should fill in defaults for a hand-built config", func() {
			engine, err := scorer.New(scorer.Config{Endpoint: "http://localhost:9"})
			Expect(err).ToNot(HaveOccurred())
			Expect(engine.GetHealth().Details["backend"]).To(Equal("local"))
		})

		It("should build an OpenAI engine", func() {
			_, err := scorer.New(scorer.NewDefaultConfig("").WithOpenAI("test-key", ""))
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Run against an HTTP endpoint", func() {
		var server *scoringServer

		AfterEach(func() {
			server.Close()
		})

		It("should score, cache and sum lines", func() {
			server = newScoringServer(0)
			cfg := scorer.NewDefaultConfig(server.URL).
				WithWorkers(1).
				WithMaxConcurrent(1).
				WithRetryConfig(fastRetry())
			engine, err := scorer.New(cfg)
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Run(ctx, []string{"a", "", "a", "b"})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Total).To(Equal(int64(2 + scorer.EmptyLineScore + 2 + 3)))
			Expect(result.Lines).To(Equal(4))
			Expect(result.Chunks).To(Equal(1))
			Expect(server.requests.Load()).To(Equal(int32(2)))
			Expect(engine.Cache().Len()).To(Equal(2))
		})

		It("should bound in-flight requests by workers times the per-chunk limit", func() {
			server = newScoringServer(5 * time.Millisecond)
			cfg := scorer.NewDefaultConfig(server.URL).
				WithWorkers(2).
				WithMaxConcurrent(3).
				WithRetryConfig(fastRetry())
			engine, err := scorer.New(cfg)
			Expect(err).ToNot(HaveOccurred())

			lines := make([]string, 60)
			for i := range lines {
				lines[i] = fmt.Sprintf("line %03d", i)
			}
			result, err := engine.Run(ctx, lines)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Total).To(Equal(int64(60 * 8)))
			Expect(server.peak.Load()).To(BeNumerically("<=", 6))
		})

		It("should count unreachable lines as zero", func() {
			server = newScoringServer(0)
			url := server.URL
			server.Close()

			cfg := scorer.NewDefaultConfig(url).WithRetryConfig(fastRetry())
			engine, err := scorer.New(cfg)
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Run(ctx, []string{"x", "", "y"})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Total).To(Equal(int64(scorer.EmptyLineScore)))
			Expect(engine.Cache().Len()).To(BeZero())
		})
	})

	Describe("Run with a custom client", func() {
		It("should match the serial sum for any worker count", func() {
			lines := []string{"alpha", "", "beta", "gamma", "alpha", "", "delta", "epsilon", "z"}
			var expected int64
			for _, l := range lines {
				if l == "" {
					expected += scorer.EmptyLineScore
				} else {
					expected += int64(len(l))
				}
			}

			for workers := 1; workers <= 12; workers++ {
				cfg := scorer.NewDefaultConfig("").WithWorkers(workers).WithMaxConcurrent(2)
				engine, err := scorer.NewWithClient(cfg, newMockClient(lengthScore))
				Expect(err).ToNot(HaveOccurred())

				result, err := engine.Run(ctx, lines)
				Expect(err).ToNot(HaveOccurred())
				Expect(result.Total).To(Equal(expected), "workers=%d", workers)
				Expect(result.Chunks).To(Equal(workers))
			}
		})

		It("should fail in the partition stage when the declared count is wrong", func() {
			cfg := scorer.NewDefaultConfig("").WithTotalLines(10)
			client := newMockClient(lengthScore)
			engine, err := scorer.NewWithClient(cfg, client)
			Expect(err).ToNot(HaveOccurred())

			_, err = engine.Run(ctx, []string{"a", "b"})

			var stageErr *scorer.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(scorer.StagePartition))
			Expect(errors.Is(err, scorer.ErrPartitionMismatch)).To(BeTrue())
			Expect(client.total.Load()).To(BeZero())
		})

		It("should fail the run when a chunk's sum overflows", func() {
			client := newMockClient(func(string) (int64, error) { return math.MaxInt64, nil })
			engine, err := scorer.NewWithClient(scorer.NewDefaultConfig("").WithWorkers(1), client)
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Run(ctx, []string{"a", "b"})

			Expect(result.Total).To(BeZero())
			Expect(errors.Is(err, scorer.ErrScoreOverflow)).To(BeTrue())
			var workerErr *scorer.WorkerError
			Expect(errors.As(err, &workerErr)).To(BeTrue())
			var stageErr *scorer.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(scorer.StageDispatch))
		})

		It("should score an empty input as zero", func() {
			engine, err := scorer.NewWithClient(scorer.NewDefaultConfig(""), newMockClient(lengthScore))
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Run(ctx, nil)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Total).To(BeZero())
		})
	})

	Describe("Health", func() {
		It("should be healthy without a circuit breaker", func() {
			engine, err := scorer.NewWithClient(scorer.NewDefaultConfig(""), newMockClient(lengthScore))
			Expect(err).ToNot(HaveOccurred())

			health := engine.GetHealth()
			Expect(health.Healthy).To(BeTrue())
			Expect(health.Details).ToNot(HaveKey("circuit_breaker_state"))
		})

		It("should report an open circuit as unhealthy", func() {
			client := newMockClient(func(string) (int64, error) {
				return 0, errors.New("down")
			})
			cfg := scorer.NewDefaultConfig("").
				WithWorkers(1).
				WithMaxConcurrent(1).
				WithRetryConfig(&scorer.RetryConfig{MaxAttempts: 1}).
				WithCircuitBreakerConfig(&scorer.CircuitBreakerConfig{
					MaxRequests: 1,
					Timeout:     time.Minute,
					ReadyToTrip: func(counts gobreaker.Counts) bool {
						return counts.ConsecutiveFailures >= 2
					},
				})
			engine, err := scorer.NewWithClient(cfg, client)
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Run(ctx, []string{"a", "b", "c", "d"})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Total).To(BeZero())
			Expect(client.total.Load()).To(Equal(int32(2)))

			health := engine.GetHealth()
			Expect(health.Healthy).To(BeFalse())
			Expect(health.Status).To(Equal("circuit open"))
			Expect(health.Details["circuit_breaker_state"]).To(Equal(gobreaker.StateOpen.String()))
		})
	})
})
