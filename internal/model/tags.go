package model

import (
	"slices"
	"strings"
)

// NormalizeTags trims, drops empties, removes duplicates and sorts.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// UnionTags returns the normalized union of existing and discovered tags.
// Existing tags are never dropped.
func UnionTags(existing, discovered []string) []string {
	all := make([]string, 0, len(existing)+len(discovered))
	all = append(all, existing...)
	all = append(all, discovered...)
	return NormalizeTags(all)
}
