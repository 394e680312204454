package cache

import "fmt"

// RateLimitKey scopes rate-limit counters by caller address.
func RateLimitKey(addr string) string {
	return fmt.Sprintf("ratelimit:%s", addr)
}

// StatusKey holds the serialized status record for a request. Only terminal
// records are cached; they are immutable once written.
func StatusKey(requestID string) string {
	return fmt.Sprintf("status:%s", requestID)
}
