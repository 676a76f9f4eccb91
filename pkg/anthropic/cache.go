package anthropic

// CachedSystem builds a system prompt block marked for prompt caching. The
// research prompt is identical across calls, so repeat requests read it from
// the cache.
func CachedSystem(text, ttl string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
