package scorer_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JohnPlummer/line-scorer/scorer"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%d", i)
	}
	return lines
}

var _ = Describe("Partition", func() {
	It("should split evenly with the remainder in the last chunk", func() {
		chunks, err := scorer.Partition(numberedLines(10), 10, 3)

		Expect(err).ToNot(HaveOccurred())
		Expect(chunks).To(HaveLen(3))
		Expect(chunks[0].Lines).To(Equal([]string{"0", "1", "2"}))
		Expect(chunks[1].Lines).To(Equal([]string{"3", "4", "5"}))
		Expect(chunks[2].Lines).To(Equal([]string{"6", "7", "8", "9"}))
		Expect(chunks[2].Offset).To(Equal(6))
	})

	It("should leave leading chunks empty when workers exceed lines", func() {
		chunks, err := scorer.Partition(numberedLines(2), 2, 5)

		Expect(err).ToNot(HaveOccurred())
		Expect(chunks).To(HaveLen(5))
		for _, c := range chunks[:4] {
			Expect(c.Lines).To(BeEmpty())
		}
		Expect(chunks[4].Lines).To(Equal([]string{"0", "1"}))
	})

	It("should produce empty chunks for empty input", func() {
		chunks, err := scorer.Partition(nil, 0, 4)

		Expect(err).ToNot(HaveOccurred())
		Expect(chunks).To(HaveLen(4))
		for _, c := range chunks {
			Expect(c.Lines).To(BeEmpty())
		}
	})

	It("should reject a declared count that differs from the input", func() {
		_, err := scorer.Partition(numberedLines(5), 7, 2)

		Expect(errors.Is(err, scorer.ErrPartitionMismatch)).To(BeTrue())
	})

	It("should reject a non-positive worker count", func() {
		_, err := scorer.Partition(numberedLines(5), 5, 0)

		Expect(errors.Is(err, scorer.ErrInvalidWorkerCount)).To(BeTrue())
	})

	It("should not let appends to one chunk overwrite the next", func() {
		chunks, err := scorer.Partition(numberedLines(4), 4, 2)
		Expect(err).ToNot(HaveOccurred())

		_ = append(chunks[0].Lines, "intruder")

		Expect(chunks[1].Lines[0]).To(Equal("2"))
	})

	It("should cover every line exactly once in order", func() {
		for n := 0; n <= 25; n++ {
			for w := 1; w <= 12; w++ {
				lines := numberedLines(n)
				chunks, err := scorer.Partition(lines, n, w)
				Expect(err).ToNot(HaveOccurred())
				Expect(chunks).To(HaveLen(w))

				var joined []string
				for i, c := range chunks {
					Expect(c.Index).To(Equal(i))
					Expect(c.Offset).To(Equal(len(joined)), "n=%d w=%d chunk=%d", n, w, i)
					if i < w-1 {
						Expect(c.Lines).To(HaveLen(n / w))
					}
					joined = append(joined, c.Lines...)
				}
				if n == 0 {
					Expect(joined).To(BeEmpty())
				} else {
					Expect(joined).To(Equal(lines), "n=%d w=%d", n, w)
				}
			}
		}
	})
})
