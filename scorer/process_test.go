package scorer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JohnPlummer/line-scorer/scorer"
)

var _ = Describe("Process backend", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("ServeWorker", func() {
		It("should answer a chunk with its partial result", func() {
			client := newMockClient(lengthScore)
			processor := scorer.NewChunkProcessor(client, scorer.NewLineScorer(nil, nil, nil), 2, nil)
			// "abc", "", "de"
			in := strings.NewReader(`{"index": 1, "offset": 3, "lines": ["YWJj", "", "ZGU="]}`)
			var out bytes.Buffer

			err := scorer.ServeWorker(ctx, in, &out, processor)

			Expect(err).ToNot(HaveOccurred())
			var result map[string]int64
			Expect(json.Unmarshal(out.Bytes(), &result)).To(Succeed())
			Expect(result).To(Equal(map[string]int64{"partial": 5 + scorer.EmptyLineScore}))
		})

		It("should reject input that is not a chunk", func() {
			processor := scorer.NewChunkProcessor(newMockClient(lengthScore), scorer.NewLineScorer(nil, nil, nil), 2, nil)

			err := scorer.ServeWorker(ctx, strings.NewReader("nope"), &bytes.Buffer{}, processor)

			Expect(err).To(MatchError(ContainSubstring("failed to decode chunk")))
		})
	})

	Describe("ProcessDispatcher", func() {
		It("should run chunks in worker processes", func() {
			lines := []string{"one", "two", "", "three", "four", "five", "six"}
			chunks, err := scorer.Partition(lines, len(lines), 3)
			Expect(err).ToNot(HaveOccurred())

			d := scorer.NewProcessDispatcher([]string{os.Args[0]}, workerEnv+"=serve")
			total, err := scorer.NewPool(d, 3, nil).Run(ctx, chunks)

			Expect(err).ToNot(HaveOccurred())
			Expect(total).To(Equal(int64(3 + 3 + scorer.EmptyLineScore + 5 + 4 + 4 + 3)))
		})

		It("should deliver lines that are not valid UTF-8 byte for byte", func() {
			lines := []string{"\xff\xfe", "ok", "caf\xe9"}
			chunks, err := scorer.Partition(lines, len(lines), 1)
			Expect(err).ToNot(HaveOccurred())

			client := newMockClient(lengthScore)
			processor := scorer.NewChunkProcessor(client, scorer.NewLineScorer(nil, nil, nil), 2, nil)
			local, err := scorer.NewLocalDispatcher(processor).Dispatch(ctx, chunks[0])
			Expect(err).ToNot(HaveOccurred())

			d := scorer.NewProcessDispatcher([]string{os.Args[0]}, workerEnv+"=serve")
			remote, err := d.Dispatch(ctx, chunks[0])

			Expect(err).ToNot(HaveOccurred())
			Expect(local).To(Equal(int64(2 + 2 + 4)))
			Expect(remote).To(Equal(local))
		})

		It("should report a crashed worker as a worker error", func() {
			chunks, err := scorer.Partition([]string{"a", "b"}, 2, 2)
			Expect(err).ToNot(HaveOccurred())

			d := scorer.NewProcessDispatcher([]string{os.Args[0]}, workerEnv+"=crash")
			_, err = scorer.NewPool(d, 2, nil).Run(ctx, chunks)

			var workerErr *scorer.WorkerError
			Expect(errors.As(err, &workerErr)).To(BeTrue())
			var stageErr *scorer.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(scorer.StageDispatch))
		})

		It("should fail without a worker command", func() {
			_, err := scorer.NewProcessDispatcher(nil).Dispatch(ctx, scorer.Chunk{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Engine with the process backend", func() {
		It("should sum the partials of every worker", func() {
			Expect(os.Setenv(workerEnv, "serve")).To(Succeed())
			DeferCleanup(os.Unsetenv, workerEnv)

			cfg := scorer.NewDefaultConfig("").WithWorkers(2).WithProcessBackend(os.Args[0])
			engine, err := scorer.NewWithClient(cfg, newMockClient(lengthScore))
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Run(ctx, []string{"ab", "cde", "", "f"})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Total).To(Equal(int64(2 + 3 + scorer.EmptyLineScore + 1)))
		})
	})
})
