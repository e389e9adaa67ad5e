package extractor

import (
	"context"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

// Extractor is the single capability all strategies implement: propose
// attribute candidates for a text region. Implementations hold no shared
// mutable state across regions, so regions can be processed in parallel.
type Extractor interface {
	Method() domain.Method
	Propose(ctx context.Context, region *domain.Region) ([]domain.ExtractedAttribute, error)
}

// Runner executes a registered list of extractors over a region. An extractor
// failure (error or panic) yields an empty candidate set for that method only
// and a diagnostic; the pipeline never aborts.
type Runner struct {
	extractors []Extractor
	logger     *zap.Logger
}

func NewRunner(logger *zap.Logger, extractors ...Extractor) *Runner {
	return &Runner{extractors: extractors, logger: logger}
}

// Register appends an extractor. New strategies plug in here without touching
// fusion.
func (r *Runner) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

func (r *Runner) Methods() []domain.Method {
	out := make([]domain.Method, 0, len(r.extractors))
	for _, e := range r.extractors {
		out = append(out, e.Method())
	}
	return out
}

// Run collects candidates from every extractor, dropping any candidate that
// violates the span/confidence invariants.
func (r *Runner) Run(ctx context.Context, region *domain.Region) []domain.ExtractedAttribute {
	sourceEnd := region.Offset + len(region.Text)
	var all []domain.ExtractedAttribute
	for _, e := range r.extractors {
		cands := r.propose(ctx, e, region)
		for _, c := range cands {
			if err := c.Validate(sourceEnd); err != nil {
				r.logger.Warn("dropping invalid candidate",
					zap.String("method", string(e.Method())),
					zap.String("type", string(c.Type)),
					zap.Error(err))
				continue
			}
			all = append(all, c)
		}
	}
	return all
}

func (r *Runner) propose(ctx context.Context, e Extractor, region *domain.Region) (cands []domain.ExtractedAttribute) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("extractor panicked",
				zap.String("method", string(e.Method())),
				zap.Any("panic", rec))
			cands = nil
		}
	}()

	cands, err := e.Propose(ctx, region)
	if err != nil {
		r.logger.Warn("extractor failed",
			zap.String("method", string(e.Method())),
			zap.String("chapter_id", region.ChapterID.String()),
			zap.Error(err))
		return nil
	}
	return cands
}

// nearestMention returns the mention closest to the given global position,
// the default ownership rule when no parse is available.
func nearestMention(pos int, mentions []domain.Mention) (domain.Mention, bool) {
	best := -1
	bestDist := 0
	for i, m := range mentions {
		d := pos - m.End
		if d < 0 {
			d = m.Start - pos
		}
		if d < 0 {
			d = 0
		}
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return domain.Mention{}, false
	}
	return mentions[best], true
}
