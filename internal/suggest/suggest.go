// Package suggest ranks existing table names as "did you mean" candidates
// for a requested name that was not found.
package suggest

import (
	"sort"
	"strings"
)

// prefixLen is the number of leading characters compared for the prefix tiers.
const prefixLen = 3

// Tables returns up to max existing names ranked as suggestions for the
// requested name. Matching is tiered: an exact match on the first three
// characters of the requested name, then a near-prefix match (same first
// character, at most one mismatch within the first three, which tolerates a
// transposed typo), then a substring match. Prefix tiers always rank above
// substring matches; within a tier shorter names win, then lexicographic
// order. This is intentionally cheap and deterministic, not edit-distance.
func Tables(requested string, existing []string, max int) []string {
	if max <= 0 || requested == "" {
		return nil
	}

	req := strings.ToLower(requested)
	prefix := req
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}

	type candidate struct {
		name string
		tier int
	}
	var matches []candidate
	for _, name := range existing {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, prefix):
			matches = append(matches, candidate{name, 0})
		case nearPrefix(lower, prefix):
			matches = append(matches, candidate{name, 1})
		case strings.Contains(lower, prefix):
			matches = append(matches, candidate{name, 2})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].tier != matches[j].tier {
			return matches[i].tier < matches[j].tier
		}
		if len(matches[i].name) != len(matches[j].name) {
			return len(matches[i].name) < len(matches[j].name)
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > max {
		matches = matches[:max]
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return names
}

// nearPrefix reports whether name starts with something one typo away from
// prefix: first characters equal, at most one mismatched position overall.
func nearPrefix(name, prefix string) bool {
	if len(name) < len(prefix) || len(prefix) == 0 {
		return false
	}
	if name[0] != prefix[0] {
		return false
	}
	mismatches := 0
	for i := 1; i < len(prefix); i++ {
		if name[i] != prefix[i] {
			mismatches++
		}
	}
	return mismatches <= 1
}
