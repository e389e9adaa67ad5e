package extractor

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type testEntity struct {
	id   uuid.UUID
	name string
}

// makeRegion builds a region with sentence segmentation and literal-match
// mentions for the given entities.
func makeRegion(text string, offset int, entities ...testEntity) *domain.Region {
	r := &domain.Region{
		ManuscriptID: uuid.New(),
		ChapterID:    uuid.New(),
		Offset:       offset,
		Text:         text,
		Sentences:    domain.SplitSentences(text, offset),
	}
	lower := strings.ToLower(text)
	for _, e := range entities {
		needle := strings.ToLower(e.name)
		from := 0
		for {
			i := strings.Index(lower[from:], needle)
			if i < 0 {
				break
			}
			start := from + i
			r.Mentions = append(r.Mentions, domain.Mention{
				EntityID: e.id,
				Name:     e.name,
				Start:    offset + start,
				End:      offset + start + len(needle),
			})
			from = start + len(needle)
		}
	}
	sort.Slice(r.Mentions, func(i, j int) bool { return r.Mentions[i].Start < r.Mentions[j].Start })
	return r
}
