package scorer_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JohnPlummer/line-scorer/scorer"
)

var _ = Describe("ScoreCache", func() {
	var cache *scorer.ScoreCache

	BeforeEach(func() {
		cache = scorer.NewScoreCache()
	})

	It("should miss on an unknown line", func() {
		_, ok := cache.Get("missing")
		Expect(ok).To(BeFalse())
		Expect(cache.Len()).To(Equal(0))
	})

	It("should return what was stored", func() {
		cache.Put("hello", 5)

		score, ok := cache.Get("hello")
		Expect(ok).To(BeTrue())
		Expect(score).To(Equal(int64(5)))
	})

	It("should distinguish a cached zero from a miss", func() {
		cache.Put("zero", 0)

		score, ok := cache.Get("zero")
		Expect(ok).To(BeTrue())
		Expect(score).To(BeZero())
	})

	It("should treat lines that differ only in whitespace as distinct", func() {
		cache.Put("a", 1)
		cache.Put("a ", 2)

		Expect(cache.Len()).To(Equal(2))
	})

	It("should keep a single entry when a line is stored twice", func() {
		cache.Put("dup", 3)
		cache.Put("dup", 3)

		Expect(cache.Len()).To(Equal(1))
	})

	It("should be safe for concurrent use", func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				line := fmt.Sprintf("line-%d", i%10)
				cache.Put(line, int64(i%10))
				score, ok := cache.Get(line)
				Expect(ok).To(BeTrue())
				Expect(score).To(Equal(int64(i % 10)))
			}(i)
		}
		wg.Wait()

		Expect(cache.Len()).To(Equal(10))
	})
})
