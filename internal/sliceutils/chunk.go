package sliceutils

// Chunk splits slice into consecutive pieces of at most size elements.
func Chunk[T any](slice []T, size int) [][]T {
	if size <= 0 || len(slice) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(slice)+size-1)/size)
	for start := 0; start < len(slice); start += size {
		end := min(start+size, len(slice))
		chunks = append(chunks, slice[start:end])
	}

	return chunks
}

// Last returns at most the final n elements of slice.
func Last[T any](slice []T, n int) []T {
	if n <= 0 {
		return slice[:0]
	}
	if len(slice) <= n {
		return slice
	}

	return slice[len(slice)-n:]
}
