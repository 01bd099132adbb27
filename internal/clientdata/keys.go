package clientdata

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Key builds a stable cache key from type, identifier and request params.
// Params are serialized sorted by key before hashing, so callers that build
// the same params in different insertion orders always land on the same row.
func Key(table, identifier string, params map[string]interface{}) string {
	if len(params) == 0 {
		return table + ":" + identifier
	}
	return table + ":" + identifier + ":" + paramsHash(params)
}

// paramsHash returns a short fnv-1a hash of the sorted-by-key JSON form of params.
func paramsHash(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		// Marshal each value separately; map iteration order never leaks in.
		v, err := json.Marshal(params[k])
		if err != nil {
			// Unserializable values degrade to their Go representation,
			// which is still deterministic for the types callers pass.
			v = []byte(fmt.Sprintf("%v", params[k]))
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(v)
		sb.WriteByte(';')
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(sb.String()))
	return fmt.Sprintf("%016x", h.Sum64())
}
