// Package batch partitions hotel identifier lists into provider-sized chunks
// and fetches their details through a rate-limited worker pool, tolerating
// per-identifier failures.
package batch

// DefaultChunkSize is the provider's payload cap for batched detail requests.
const DefaultChunkSize = 300

// Chunk partitions ids into ordered chunks of at most size elements. The
// chunks partition the input preserving order; the last chunk may be smaller.
// Empty input yields no chunks, and an exactly divisible input yields no empty
// trailing chunk. Chunk panics if size is not positive.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		panic("batch: chunk size must be positive")
	}
	if len(ids) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
