// Package history keeps per-date history arrays as an ordered map: entries
// sorted ascending by date key, at most one entry per key.
package history

import "sort"

// Normalize returns a copy of entries sorted by key with duplicates
// collapsed to the last occurrence. Documents written by older clients may
// be unsorted or contain repeated dates.
func Normalize[T any](entries []T, key func(T) string) []T {
	out := make([]T, 0, len(entries))
	pos := make(map[string]int, len(entries))
	for _, e := range entries {
		k := key(e)
		if i, ok := pos[k]; ok {
			out[i] = e
			continue
		}
		pos[k] = len(out)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// Upsert inserts entry or replaces the entry with the same key. entries must
// already be normalized; the returned slice never aliases it.
func Upsert[T any](entries []T, entry T, key func(T) string) []T {
	k := key(entry)
	i := sort.Search(len(entries), func(i int) bool { return key(entries[i]) >= k })

	out := make([]T, 0, len(entries)+1)
	out = append(out, entries[:i]...)
	out = append(out, entry)
	if i < len(entries) && key(entries[i]) == k {
		i++
	}
	return append(out, entries[i:]...)
}

// Find returns the entry stored under k.
func Find[T any](entries []T, k string, key func(T) string) (T, bool) {
	i := sort.Search(len(entries), func(i int) bool { return key(entries[i]) >= k })
	if i < len(entries) && key(entries[i]) == k {
		return entries[i], true
	}
	var zero T
	return zero, false
}
