// Package scorer scores large ordered collections of text lines against a
// remote scoring endpoint and sums the results.
//
// Work is organised in two independent layers of parallelism. The input is
// split into contiguous chunks, one per worker, and a Pool dispatches the
// chunks to workers (goroutines in this process, or worker processes).
// Inside a chunk, a ChunkProcessor fans out one operation per line, bounded
// by an admission gate, and every operation goes through a LineScorer.
//
// Features:
//   - Empty-line shortcut and in-memory memoization of endpoint scores
//   - Retry with exponential backoff (2s, 4s) and a fallback score of 0
//   - Bounded in-flight requests per chunk with one shared HTTP session
//   - Local and process worker backends behind one Dispatcher interface
//   - Optional circuit breaker around the endpoint
//   - Prometheus metrics integration
//
// Basic usage:
//
//	cfg := scorer.NewDefaultConfig("https://scoring.example.com/")
//	engine, err := scorer.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := engine.Run(ctx, lines)
package scorer
