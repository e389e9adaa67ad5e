package pipeline

import (
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
)

// buildRegion prepares one chapter for extraction: sentence segmentation plus
// the entity mentions found in it, all in global offsets.
func buildRegion(manuscriptID uuid.UUID, ch domain.Chapter, entities []domain.Entity) domain.Region {
	return domain.Region{
		ManuscriptID: manuscriptID,
		ChapterID:    ch.ID,
		Offset:       ch.Offset,
		Text:         ch.Text,
		Device:       ch.Device,
		Sentences:    domain.SplitSentences(ch.Text, ch.Offset),
		Mentions:     scanMentions(ch.Text, ch.Offset, entities),
	}
}

// scanMentions locates name and alias occurrences by literal match. Full
// coreference (pronoun chains, nicknames not listed as aliases) is the
// upstream collaborator's job; this is the built-in fallback.
func scanMentions(text string, offset int, entities []domain.Entity) []domain.Mention {
	lower := strings.ToLower(text)
	var out []domain.Mention
	for i := range entities {
		e := &entities[i]
		surfaces := append([]string{e.Name}, e.Aliases...)
		for _, s := range surfaces {
			needle := strings.ToLower(s)
			if needle == "" {
				continue
			}
			from := 0
			for {
				idx := strings.Index(lower[from:], needle)
				if idx < 0 {
					break
				}
				start := from + idx
				end := start + len(needle)
				if wordBounded(lower, start, end) {
					out = append(out, domain.Mention{
						EntityID: e.ID,
						Name:     e.Name,
						Start:    offset + start,
						End:      offset + end,
					})
				}
				from = end
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func wordBounded(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}
