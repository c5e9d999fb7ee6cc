package ipsum

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Cache keys for the corpus lookups.
const (
	CategoryRowsKey = "types_select_type_id_name"
	CategoryMapKey  = "types_obj"
	wordsKeyPrefix  = "words_select_text_type_id_in_"
)

// BlockKey: request_<identity>_ratelimit
func BlockKey(identity string) string {
	return fmt.Sprintf("request_%s_ratelimit", identity)
}

// CounterKey: request_<identity>_<epoch second>
func CounterKey(identity string, epochSecond int64) string {
	return fmt.Sprintf("request_%s_%d", identity, epochSecond)
}

// CanonicalIDs returns ids sorted ascending with duplicates removed.
// The input slice is not modified.
func CanonicalIDs(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// WordsKey: words_select_text_type_id_in_<ids joined by "_">, ids canonicalized
// so that {2,1} and {1,2} share an entry.
func WordsKey(ids []int) string {
	canon := CanonicalIDs(ids)
	parts := make([]string, len(canon))
	for i, id := range canon {
		parts[i] = strconv.Itoa(id)
	}
	return wordsKeyPrefix + strings.Join(parts, "_")
}
