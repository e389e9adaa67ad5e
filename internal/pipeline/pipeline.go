package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/consistency"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/extractor"
	"github.com/lorecheck/lorecheck/internal/fusion"
	"go.uber.org/zap"
)

const DefaultWorkers = 4

// Result is what one analysis pass produced for a manuscript.
type Result struct {
	Consensus      []domain.ConsensusAttribute `json:"consensus"`
	Contradictions []domain.Contradiction      `json:"contradictions"`
}

// manuscriptState is the retained analysis state that makes incremental
// re-analysis possible: extraction output per chapter, plus the checker
// carrying every stream's narrative state.
type manuscriptState struct {
	candidates map[uuid.UUID][]domain.ExtractedAttribute
	checker    *consistency.Checker
}

// Pipeline runs the full pass: per-chapter extraction in parallel, a fusion
// barrier per chapter, then in-order consistency checking per stream.
// Stores and the notifier are optional; a nil store just skips persistence.
type Pipeline struct {
	runner *extractor.Runner
	engine *fusion.Engine
	logger *zap.Logger

	consensusStore     domain.ConsensusStore
	contradictionStore domain.ContradictionStore
	notifier           domain.AlertNotifier

	// Workers bounds how many chapters are extracted concurrently.
	Workers int

	mu     sync.Mutex
	states map[uuid.UUID]*manuscriptState
}

func NewPipeline(runner *extractor.Runner, engine *fusion.Engine, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		runner:  runner,
		engine:  engine,
		logger:  logger,
		Workers: DefaultWorkers,
		states:  map[uuid.UUID]*manuscriptState{},
	}
}

// WithStores attaches the persistence layer.
func (p *Pipeline) WithStores(consensus domain.ConsensusStore, contradictions domain.ContradictionStore) *Pipeline {
	p.consensusStore = consensus
	p.contradictionStore = contradictions
	return p
}

// WithNotifier attaches the alerting sink.
func (p *Pipeline) WithNotifier(n domain.AlertNotifier) *Pipeline {
	p.notifier = n
	return p
}

// Analyze runs a full pass over the manuscript. It replaces any prior state
// and persisted artifacts for this manuscript.
func (p *Pipeline) Analyze(ctx context.Context, m *domain.Manuscript, entities []domain.Entity) (*Result, error) {
	chapters := orderedChapters(m)
	candidates, err := p.extract(ctx, m.ID, chapters, entities)
	if err != nil {
		return nil, err
	}

	st := &manuscriptState{
		candidates: candidates,
		checker:    consistency.NewChecker(p.engine.Config().Severity, p.logger),
	}
	p.mu.Lock()
	p.states[m.ID] = st
	p.mu.Unlock()

	consensus := p.fuseAll(m, chapters, candidates, nil)
	contradictions := observeAll(st.checker, consensus)

	if err := p.replacePersisted(ctx, m.ID, consensus, contradictions); err != nil {
		return nil, err
	}
	p.notify(ctx, contradictions)

	p.logger.Info("analysis complete",
		zap.String("manuscript_id", m.ID.String()),
		zap.Int("chapters", len(chapters)),
		zap.Int("consensus", len(consensus)),
		zap.Int("contradictions", len(contradictions)))

	return &Result{Consensus: consensus, Contradictions: contradictions}, nil
}

// Reanalyze re-extracts only the changed chapters and recomputes just the
// attribute streams those chapters touch. Without prior state it falls back
// to a full pass.
func (p *Pipeline) Reanalyze(ctx context.Context, m *domain.Manuscript, entities []domain.Entity, changed []uuid.UUID) (*Result, error) {
	p.mu.Lock()
	st, ok := p.states[m.ID]
	p.mu.Unlock()
	if !ok || len(changed) == 0 {
		return p.Analyze(ctx, m, entities)
	}

	changedSet := map[uuid.UUID]bool{}
	for _, id := range changed {
		changedSet[id] = true
	}
	var changedChapters []domain.Chapter
	for _, ch := range orderedChapters(m) {
		if changedSet[ch.ID] {
			changedChapters = append(changedChapters, ch)
		}
	}

	fresh, err := p.extract(ctx, m.ID, changedChapters, entities)
	if err != nil {
		return nil, err
	}

	// a stream is affected if the old or the new extraction of a changed
	// chapter touches it
	affected := map[consistency.StreamKey]bool{}
	p.mu.Lock()
	for id := range changedSet {
		for _, c := range st.candidates[id] {
			affected[streamOf(c)] = true
		}
	}
	for id, cands := range fresh {
		st.candidates[id] = cands
		for _, c := range cands {
			affected[streamOf(c)] = true
		}
	}
	candidates := make(map[uuid.UUID][]domain.ExtractedAttribute, len(st.candidates))
	for id, cands := range st.candidates {
		candidates[id] = cands
	}
	p.mu.Unlock()

	for k := range affected {
		st.checker.ResetStream(k)
		if err := p.deleteStream(ctx, k); err != nil {
			return nil, err
		}
	}

	chapters := orderedChapters(m)
	consensus := p.fuseAll(m, chapters, candidates, affected)
	contradictions := observeAll(st.checker, consensus)

	if err := p.persist(ctx, consensus, contradictions); err != nil {
		return nil, err
	}
	p.notify(ctx, contradictions)

	p.logger.Info("incremental re-analysis complete",
		zap.String("manuscript_id", m.ID.String()),
		zap.Int("changed_chapters", len(changedChapters)),
		zap.Int("affected_streams", len(affected)),
		zap.Int("contradictions", len(contradictions)))

	return &Result{Consensus: consensus, Contradictions: contradictions}, nil
}

// Forget drops retained analysis state for a manuscript.
func (p *Pipeline) Forget(manuscriptID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, manuscriptID)
}

// extract runs every extractor over each chapter, chapters in parallel.
func (p *Pipeline) extract(ctx context.Context, manuscriptID uuid.UUID, chapters []domain.Chapter, entities []domain.Entity) (map[uuid.UUID][]domain.ExtractedAttribute, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make(map[uuid.UUID][]domain.ExtractedAttribute, len(chapters))

	for _, ch := range chapters {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ch domain.Chapter) {
			defer wg.Done()
			defer func() { <-sem }()
			region := buildRegion(manuscriptID, ch, entities)
			cands := p.runner.Run(ctx, &region)
			mu.Lock()
			out[ch.ID] = cands
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction aborted: %w", err)
	}
	return out, nil
}

type groupKey struct {
	entityID uuid.UUID
	attrType domain.AttributeType
	key      string
}

func streamOf(c domain.ExtractedAttribute) consistency.StreamKey {
	return consistency.StreamKey{
		EntityID: c.EntityID,
		Type:     c.Type,
		Key:      domain.StreamKey(c.Type, c.RawValue, c.Extra),
	}
}

// fuseAll resolves candidates chapter by chapter. The resolution window is the
// chapter: all methods' candidates for a stream within one chapter compete in
// a single fusion. A non-nil filter restricts fusion to the listed streams.
func (p *Pipeline) fuseAll(m *domain.Manuscript, chapters []domain.Chapter, candidates map[uuid.UUID][]domain.ExtractedAttribute, filter map[consistency.StreamKey]bool) []domain.ConsensusAttribute {
	var out []domain.ConsensusAttribute
	for _, ch := range chapters {
		groups := map[groupKey][]domain.ExtractedAttribute{}
		var order []groupKey
		for _, c := range candidates[ch.ID] {
			sk := streamOf(c)
			if filter != nil && !filter[sk] {
				continue
			}
			gk := groupKey{entityID: c.EntityID, attrType: c.Type, key: sk.Key}
			if _, ok := groups[gk]; !ok {
				order = append(order, gk)
			}
			groups[gk] = append(groups[gk], c)
		}
		for _, gk := range order {
			for _, rec := range p.engine.Fuse(groups[gk]) {
				rec.ManuscriptID = m.ID
				rec.ChapterID = ch.ID
				rec.Device = ch.Device
				out = append(out, rec)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// observeAll feeds consensus values to the checker in narrative order.
// Streams are independent, so each runs on its own goroutine; within a stream
// the order is preserved.
func observeAll(checker *consistency.Checker, consensus []domain.ConsensusAttribute) []domain.Contradiction {
	byStream := map[consistency.StreamKey][]domain.ConsensusAttribute{}
	for _, cons := range consensus {
		k := consistency.StreamKey{EntityID: cons.EntityID, Type: cons.Type, Key: cons.Key}
		byStream[k] = append(byStream[k], cons)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var out []domain.Contradiction
	for _, seq := range byStream {
		wg.Add(1)
		go func(seq []domain.ConsensusAttribute) {
			defer wg.Done()
			var found []domain.Contradiction
			for _, cons := range seq {
				found = append(found, checker.Observe(cons)...)
			}
			if len(found) > 0 {
				mu.Lock()
				out = append(out, found...)
				mu.Unlock()
			}
		}(seq)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EvidenceB.Position != out[j].EvidenceB.Position {
			return out[i].EvidenceB.Position < out[j].EvidenceB.Position
		}
		return out[i].Severity > out[j].Severity
	})
	return out
}

func (p *Pipeline) replacePersisted(ctx context.Context, manuscriptID uuid.UUID, consensus []domain.ConsensusAttribute, contradictions []domain.Contradiction) error {
	if p.consensusStore != nil {
		if _, err := p.consensusStore.DeleteByManuscript(ctx, manuscriptID); err != nil {
			return fmt.Errorf("clear consensus: %w", err)
		}
	}
	if p.contradictionStore != nil {
		if _, err := p.contradictionStore.DeleteByManuscript(ctx, manuscriptID); err != nil {
			return fmt.Errorf("clear contradictions: %w", err)
		}
	}
	return p.persist(ctx, consensus, contradictions)
}

func (p *Pipeline) persist(ctx context.Context, consensus []domain.ConsensusAttribute, contradictions []domain.Contradiction) error {
	if p.consensusStore != nil {
		for i := range consensus {
			if err := p.consensusStore.Upsert(ctx, &consensus[i]); err != nil {
				return fmt.Errorf("persist consensus: %w", err)
			}
		}
	}
	if p.contradictionStore != nil {
		for i := range contradictions {
			if err := p.contradictionStore.Create(ctx, &contradictions[i]); err != nil {
				return fmt.Errorf("persist contradiction: %w", err)
			}
		}
	}
	return nil
}

func (p *Pipeline) deleteStream(ctx context.Context, k consistency.StreamKey) error {
	if p.consensusStore != nil {
		if _, err := p.consensusStore.DeleteByStream(ctx, k.EntityID, k.Type, k.Key); err != nil {
			return fmt.Errorf("clear stream consensus: %w", err)
		}
	}
	if p.contradictionStore != nil {
		if _, err := p.contradictionStore.DeleteByStream(ctx, k.EntityID, k.Type, k.Key); err != nil {
			return fmt.Errorf("clear stream contradictions: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, contradictions []domain.Contradiction) {
	if p.notifier == nil {
		return
	}
	for _, c := range contradictions {
		p.notifier.Notify(ctx, c)
	}
}

func orderedChapters(m *domain.Manuscript) []domain.Chapter {
	chapters := make([]domain.Chapter, len(m.Chapters))
	copy(chapters, m.Chapters)
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Index < chapters[j].Index })
	return chapters
}
