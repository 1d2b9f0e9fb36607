package teller

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Similarity thresholds for contact resolution. A phonetic code overlap
// lowers the bar because speech recognition mangles names more often than it
// invents them.
const (
	phoneticThreshold = 0.70
	fuzzyThreshold    = 0.85
)

// resolveContact maps a spoken recipient name onto one of the account's saved
// contacts. Exact matches win immediately; otherwise candidates sharing a
// Double Metaphone code are ranked by Jaro-Winkler similarity, with a pure
// similarity pass as the last resort.
func resolveContact(spoken string, contacts map[string]int64) (string, int64, bool) {
	spoken = strings.ToLower(strings.TrimSpace(spoken))
	if spoken == "" || len(contacts) == 0 {
		return "", 0, false
	}
	if id, ok := contacts[spoken]; ok {
		return spoken, id, true
	}

	// Deterministic iteration order so ties resolve stably.
	names := make([]string, 0, len(contacts))
	for name := range contacts {
		names = append(names, name)
	}
	sort.Strings(names)

	spokenPrimary, spokenSecondary := matchr.DoubleMetaphone(spoken)

	var bestName string
	var bestScore float64
	var bestPhonetic bool
	for _, name := range names {
		p, s := matchr.DoubleMetaphone(name)
		phonetic := codesOverlap(spokenPrimary, spokenSecondary, p, s)
		score := matchr.JaroWinkler(spoken, name, false)

		switch {
		case phonetic && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestName, bestScore, bestPhonetic = name, score, true
			}
		case !bestPhonetic && score >= fuzzyThreshold && score > bestScore:
			bestName, bestScore = name, score
		}
	}

	if bestName == "" {
		return "", 0, false
	}
	return bestName, contacts[bestName], true
}

func codesOverlap(a1, a2, b1, b2 string) bool {
	for _, a := range []string{a1, a2} {
		if a == "" {
			continue
		}
		if a == b1 || (b2 != "" && a == b2) {
			return true
		}
	}
	return false
}
