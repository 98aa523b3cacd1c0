package ec2

// The describe-style operations all accept the same filter shape: a map
// from filter name to accepted value patterns. Each resource type declares
// a closed table of the filter names it supports; the three tag filter
// forms are recognized for every taggable resource. An unknown filter
// name is an error rather than an empty result, so callers notice typos.

// Filters maps a filter name to its value patterns. A resource matches a
// filter when any pattern matches any of the resource's values for that
// name; it matches the whole set when it matches every filter in it.
type Filters map[string][]string

type taggable interface {
	tagSet() TagSet
}

// filterTable is the closed set of supported filter names for one
// resource type. Each entry extracts the values a filter name inspects.
type filterTable[T taggable] map[string]func(T) []string

// applyFilters returns the items matching all filters. method names the
// calling operation for the FilterNotImplemented error message.
func applyFilters[T taggable](method string, filters Filters, table filterTable[T], items []T) ([]T, error) {
	if len(filters) == 0 {
		return items, nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := matchesFilters(method, filters, table, item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func matchesFilters[T taggable](method string, filters Filters, table filterTable[T], item T) (bool, error) {
	for name, values := range filters {
		if matched, recognized := matchTagFilter(item.tagSet(), name, values); recognized {
			if !matched {
				return false, nil
			}
			continue
		}
		extract, ok := table[name]
		if !ok {
			return false, filterNotImplemented(name, method)
		}
		if !matchAnyPattern(values, extract(item)) {
			return false, nil
		}
	}
	return true, nil
}

// matchAnyPattern reports whether any pattern matches any candidate
// value. Patterns support the * and ? wildcards.
func matchAnyPattern(patterns, values []string) bool {
	for _, p := range patterns {
		for _, v := range values {
			if globMatch(p, v) {
				return true
			}
		}
	}
	return false
}

// globMatch matches s against pattern where '*' matches any run of
// characters (including none) and '?' matches exactly one. Unlike
// path.Match, '*' crosses '/' so patterns work on CIDR strings.
func globMatch(pattern, s string) bool {
	// Iterative two-pointer match with single-star backtracking.
	var pi, si int
	starP, starS := -1, 0
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			starP = pi
			starS = si
			pi++
		case starP >= 0:
			starS++
			si = starS
			pi = starP + 1
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// boolStr renders a bool the way filter values expect.
func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
