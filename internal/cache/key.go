package cache

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
)

// keyPrefix namespaces verity entries in shared stores such as redis.
const keyPrefix = "verity:result:"

// Key derives the cache key for one verification request: the case-folded,
// whitespace-trimmed claim, the sorted adapter selection, and the
// aggregation strategy. The strategy is part of the key so a result
// aggregated one way is never served to a caller who asked for another.
func Key(claim string, adapters []string, strategy string) string {
	sorted := append([]string(nil), adapters...)
	sort.Strings(sorted)

	h := xxhash.New64()
	io.WriteString(h, strings.ToLower(strings.TrimSpace(claim)))
	io.WriteString(h, "\x00")
	io.WriteString(h, strings.Join(sorted, ","))
	io.WriteString(h, "\x00")
	io.WriteString(h, strategy)
	return keyPrefix + strconv.FormatUint(h.Sum64(), 16)
}
