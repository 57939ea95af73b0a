package assistant

// MaxReplyLen is the longest reply, in characters, a chat host accepts.
const MaxReplyLen = 1900

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
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
