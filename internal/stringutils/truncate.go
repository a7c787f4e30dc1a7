package stringutils

// Prefix returns at most n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}

	return s
}

// Ellipsis shortens s to keep runes followed by "..." when it is longer than limit runes.
func Ellipsis(s string, limit, keep int) string {
	if RuneLen(s) <= limit {
		return s
	}

	return Prefix(s, keep) + "..."
}

func RuneLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
