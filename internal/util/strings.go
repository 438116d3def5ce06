package util

// UniqueStrings returns a deduplicated copy of the slice preserving insertion order.
// Empty strings are dropped. Returns nil for empty or nil input.
func UniqueStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(s))
	result := make([]string, 0, len(s))
	for _, v := range s {
		if v == "" {
			continue
		}
		if _, exists := seen[v]; !exists {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Difference returns the unique elements of a that are not in b, in the order
// they appear in a.
func Difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, v := range b {
		exclude[v] = struct{}{}
	}
	var result []string
	for _, v := range UniqueStrings(a) {
		if _, found := exclude[v]; !found {
			result = append(result, v)
		}
	}
	return result
}
