package ec2

import (
	"sort"
	"strings"
)

// Tag is a single key/value pair as reported by DescribeTags.
type Tag struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	ResourceID string `json:"resource_id,omitempty"`
}

// TagSet holds the tags of one resource. Every taggable entity embeds a
// TagSet by value and exposes it through the taggable interface, so the
// backend-level tag operations and the filter engine share one
// representation.
type TagSet map[string]string

// Get returns the value for key, or "" when absent.
func (t TagSet) Get(key string) string {
	return t[key]
}

// Set stores or replaces a tag.
func (t TagSet) Set(key, value string) {
	t[key] = value
}

// Delete removes a tag if present. When value is non-empty the tag is
// only removed if the stored value matches, mirroring the DeleteTags
// contract.
func (t TagSet) Delete(key, value string) {
	if value != "" && t[key] != value {
		return
	}
	delete(t, key)
}

// Clone returns an independent copy.
func (t TagSet) Clone() TagSet {
	out := make(TagSet, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// List returns the tags sorted by key.
func (t TagSet) List() []Tag {
	out := make([]Tag, 0, len(t))
	for k, v := range t {
		out = append(out, Tag{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Merge copies all entries of other into t.
func (t TagSet) Merge(other map[string]string) {
	for k, v := range other {
		t[k] = v
	}
}

// matchTagFilter evaluates the three tag filter forms against a tag set:
// "tag:<key>" matches values of a specific key, "tag-key" matches any key
// and "tag-value" matches any value. It reports (matched, recognized);
// recognized is false when the filter name is not a tag filter at all.
func matchTagFilter(tags TagSet, name string, values []string) (bool, bool) {
	switch {
	case strings.HasPrefix(name, "tag:"):
		key := strings.TrimPrefix(name, "tag:")
		v, ok := tags[key]
		if !ok {
			return false, true
		}
		return matchAnyPattern(values, []string{v}), true
	case name == "tag-key":
		keys := make([]string, 0, len(tags))
		for k := range tags {
			keys = append(keys, k)
		}
		return matchAnyPattern(values, keys), true
	case name == "tag-value":
		vals := make([]string, 0, len(tags))
		for _, v := range tags {
			vals = append(vals, v)
		}
		return matchAnyPattern(values, vals), true
	}
	return false, false
}
