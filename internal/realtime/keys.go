package realtime

import (
	"strings"

	"github.com/campushive/hivelab/pkg/domain"
)

// NormalizeKey returns the colon form of a counter key ("a_b" becomes "a:b").
// Keys that already contain a colon are returned unchanged.
func NormalizeKey(key string) string {
	if strings.Contains(key, ":") {
		return key
	}
	return strings.Replace(key, "_", ":", 1)
}

// AliasKey returns the underscore form of a counter key ("a:b" becomes "a_b").
func AliasKey(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

// Keys returns the distinct spellings a counter is stored under.
func Keys(key string) []string {
	canonical := NormalizeKey(key)
	alias := AliasKey(canonical)
	if alias == canonical {
		return []string{canonical}
	}
	return []string{canonical, alias}
}

// LookupCounter reads a counter under either spelling.
func LookupCounter(s domain.SharedState, key string) (float64, bool) {
	for _, k := range append([]string{key}, Keys(key)...) {
		if v, ok := s.Counters[k]; ok {
			return v, true
		}
	}
	return 0, false
}
