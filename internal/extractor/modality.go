package extractor

import (
	"regexp"
	"strings"
)

// Modality captures the linguistic framing of a sentence as it bears on
// attribute extraction. Negated and TemporalChange are mutually informative,
// not mutually exclusive ("no longer" is both a denial of the present value
// and a change marker).
type Modality struct {
	Negated        bool
	TemporalChange bool
	Hypothetical   bool
}

var (
	temporalMarkers = []string{
		"no longer", "used to be", "used to have", "anymore", "any more",
		"formerly", "once been", "once was", "once had", "had become",
	}
	negationMarkers = []string{
		"not", "never", "didn't", "wasn't", "weren't", "isn't", "aren't",
		"hasn't", "hadn't", "doesn't", "don't", "couldn't",
	}
	hypotheticalRe = regexp.MustCompile(`(?i)(?:^|\W)(?:what if|as if|suppose|imagine|wish(?:ed)?)(?:\W|$)|(?:^|\W)if\b.*\b(?:were|would|had been|could)\b`)
)

// AnalyzeModality classifies a sentence. Hypothetical/subjunctive framing
// suppresses extraction entirely; callers must check it first.
func AnalyzeModality(sentence string) Modality {
	lower := strings.ToLower(sentence)
	m := Modality{}

	if hypotheticalRe.MatchString(sentence) {
		m.Hypothetical = true
		return m
	}

	for _, marker := range temporalMarkers {
		if strings.Contains(lower, marker) {
			m.TemporalChange = true
			break
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r == '\'' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for i, w := range words {
		for _, neg := range negationMarkers {
			if w != neg {
				continue
			}
			// "no longer" is a change marker, not a denial of ever having
			// held the value
			if w == "not" && i > 0 && words[i-1] == "no" {
				continue
			}
			if m.TemporalChange && (w == "not" || w == "never") && containsNear(words, i, "longer") {
				continue
			}
			m.Negated = true
		}
	}
	return m
}

func containsNear(words []string, i int, target string) bool {
	for j := i - 2; j <= i+2; j++ {
		if j >= 0 && j < len(words) && words[j] == target {
			return true
		}
	}
	return false
}

// thirdPersonPossessives are the pronouns whose antecedent needs coreference
// when more than one entity is in play.
var thirdPersonPossessives = map[string]bool{
	"his": true, "her": true, "their": true, "hers": true, "theirs": true, "its": true,
}

// HasThirdPersonPossessive reports whether the sentence contains a possessive
// pronoun that could attach the attribute to more than one antecedent.
func HasThirdPersonPossessive(sentence string) bool {
	for _, w := range strings.Fields(strings.ToLower(sentence)) {
		w = strings.Trim(w, ".,;:!?\"'")
		if thirdPersonPossessives[w] {
			return true
		}
	}
	return false
}
