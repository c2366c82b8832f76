package scorer

import "fmt"

// Partition splits lines into workers contiguous chunks. Each chunk holds
// total/workers lines except the last, which also takes the remainder.
//
// total must equal len(lines); a mismatch is reported as
// ErrPartitionMismatch before any chunk is built. More workers than lines is
// allowed and leaves the leading chunks empty.
func Partition(lines []string, total, workers int) ([]Chunk, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, workers)
	}
	if total != len(lines) {
		return nil, fmt.Errorf("%w: declared %d, read %d", ErrPartitionMismatch, total, len(lines))
	}

	size := total / workers
	chunks := make([]Chunk, workers)
	for i := range chunks {
		start := i * size
		end := start + size
		if i == workers-1 {
			end = total
		}
		chunks[i] = Chunk{
			Index:  i,
			Offset: start,
			Lines:  lines[start:end:end],
		}
	}
	return chunks, nil
}
