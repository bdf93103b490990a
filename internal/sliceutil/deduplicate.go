// Package sliceutil provides generic slice helpers.
package sliceutil

// Deduplicate removes items with a repeated key while preserving order.
// Only the first occurrence of each key is kept.
//
// Example:
//
//	entities := []nlu.Entity{{Type: "Date.CheckIn", Value: "friday"}, {Type: "Date.CheckIn", Value: "friday"}}
//	unique := sliceutil.Deduplicate(entities, func(e nlu.Entity) string { return e.Type + "|" + e.Value })
//	// Result: [{Type: "Date.CheckIn", Value: "friday"}]
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}
