package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/consistency"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/embedding"
	"github.com/lorecheck/lorecheck/internal/extractor"
	"github.com/lorecheck/lorecheck/internal/fusion"
	"github.com/lorecheck/lorecheck/internal/llm"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func patternPipeline() *Pipeline {
	logger := testLogger()
	runner := extractor.NewRunner(logger, extractor.NewPatternExtractor(logger))
	return NewPipeline(runner, fusion.NewEngine(fusion.DefaultConfig(), logger), logger)
}

func manuscript(chapters ...domain.Chapter) *domain.Manuscript {
	return &domain.Manuscript{ID: uuid.New(), Title: "test", Chapters: chapters}
}

func chapter(index, offset int, text string) domain.Chapter {
	return domain.Chapter{ID: uuid.New(), Index: index, Offset: offset, Text: text}
}

func TestAnalyze_DetectsCrossChapterContradiction(t *testing.T) {
	logger := testLogger()
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}

	gen := llm.NewMockClient()
	gen.InvokeResponse = `[{"entity":"Maria","type":"eye_color","value":"green","confidence":0.9}]`

	resolver := extractor.NewPossessiveResolver(logger)
	runner := extractor.NewRunner(logger,
		extractor.NewPatternExtractor(logger),
		extractor.NewDependencyExtractor(nil, resolver, logger),
		extractor.NewEmbeddingExtractor(embedding.NewMockClient(), nil, logger),
		extractor.NewGenerativeExtractor(gen, llm.AttributePrompt, 2*time.Second, 2, 100, logger),
	)
	p := NewPipeline(runner, fusion.NewEngine(fusion.DefaultConfig(), logger), logger)

	m := manuscript(
		chapter(1, 0, "Maria had green eyes. She had eyes like emeralds."),
		chapter(5, 30000, "Maria had blue eyes that glinted."),
	)
	res, err := p.Analyze(context.Background(), m, []domain.Entity{maria})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Contradictions) != 1 {
		t.Fatalf("expected 1 contradiction, got %d: %+v", len(res.Contradictions), res.Contradictions)
	}
	cd := res.Contradictions[0]
	if cd.EvidenceA.Value != "green" || cd.EvidenceB.Value != "blue" {
		t.Fatalf("unexpected evidence: %+v", cd)
	}
	if cd.Level != domain.SeverityHigh {
		t.Fatalf("confident conflict 30k characters apart should be high, got %s (%.4f)", cd.Level, cd.Severity)
	}
	if math.Abs(cd.Severity-0.502) > 1e-2 {
		t.Fatalf("unexpected severity %.4f", cd.Severity)
	}

	var sawGreen, sawBlue bool
	for _, c := range res.Consensus {
		if c.Type != domain.AttrEyeColor || c.EntityID != maria.ID {
			continue
		}
		switch c.Value {
		case "green":
			sawGreen = true
			// corroborated by three methods, lifted above the best single one
			if c.Confidence <= 0.9 {
				t.Fatalf("expected corroborated confidence above 0.9, got %.4f", c.Confidence)
			}
		case "blue":
			sawBlue = true
		}
	}
	if !sawGreen || !sawBlue {
		t.Fatalf("both chapter verdicts must be present: %+v", res.Consensus)
	}
}

func TestAnalyze_NoLongerRetiresValueWithoutContradiction(t *testing.T) {
	p := patternPipeline()
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}
	m := manuscript(
		chapter(1, 0, "Maria had green eyes."),
		chapter(2, 30000, "Maria's eyes were no longer green."),
		chapter(3, 60000, "Maria had gray eyes."),
	)
	res, err := p.Analyze(context.Background(), m, []domain.Entity{maria})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Contradictions) != 0 {
		t.Fatalf("a retired value followed by a new one is a change, got %+v", res.Contradictions)
	}
	var sawGray bool
	for _, c := range res.Consensus {
		if c.Negated {
			continue
		}
		if c.Type == domain.AttrEyeColor && c.Value == "no" {
			t.Fatalf("marker word leaked into consensus: %+v", c)
		}
		if c.Type == domain.AttrEyeColor && c.Value == "gray" {
			sawGray = true
		}
	}
	if !sawGray {
		t.Fatalf("the new value must establish after the retirement: %+v", res.Consensus)
	}
}

func TestAnalyze_ExplicitMoveIsChangeNotContradiction(t *testing.T) {
	p := patternPipeline()
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}
	m := manuscript(
		chapter(1, 0, "Maria lived in Chicago."),
		chapter(2, 30000, "Maria moved to Paris."),
	)
	res, err := p.Analyze(context.Background(), m, []domain.Entity{maria})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Contradictions) != 0 {
		t.Fatalf("a narrated move is not a contradiction, got %+v", res.Contradictions)
	}
	var latest string
	for _, c := range res.Consensus {
		if c.Type == domain.AttrLocation {
			latest = c.Value
		}
	}
	if latest != "paris" {
		t.Fatalf("expected the move to paris in consensus, got %q", latest)
	}
}

func TestAnalyze_FlashbackChapterBridges(t *testing.T) {
	p := patternPipeline()
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}
	flashback := chapter(3, 30000, "Maria had brown eyes.")
	flashback.Device = true
	m := manuscript(
		chapter(1, 0, "Maria had green eyes."),
		flashback,
	)
	res, err := p.Analyze(context.Background(), m, []domain.Entity{maria})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Contradictions) != 0 {
		t.Fatalf("flashback evidence must not raise an alert, got %+v", res.Contradictions)
	}
}

func TestReanalyze_OnlyAffectedStreamsRecomputed(t *testing.T) {
	p := patternPipeline()
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}
	ch1 := chapter(1, 0, "Maria had green eyes. Maria lived in Chicago.")
	ch2 := chapter(2, 30000, "Maria had green eyes.")
	m := manuscript(ch1, ch2)
	entities := []domain.Entity{maria}

	first, err := p.Analyze(context.Background(), m, entities)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Contradictions) != 0 {
		t.Fatalf("consistent draft must be clean, got %+v", first.Contradictions)
	}

	// the revision turns chapter 2's eye color around
	m.Chapters[1].Text = "Maria had blue eyes."
	res, err := p.Reanalyze(context.Background(), m, entities, []uuid.UUID{ch2.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Contradictions) != 1 {
		t.Fatalf("expected 1 contradiction after revision, got %+v", res.Contradictions)
	}
	cd := res.Contradictions[0]
	if cd.EvidenceA.Value != "green" || cd.EvidenceB.Value != "blue" {
		t.Fatalf("unexpected evidence: %+v", cd)
	}
	// the untouched location stream is not part of the recomputation
	for _, c := range res.Consensus {
		if c.Type == domain.AttrLocation {
			t.Fatalf("unaffected stream must not be recomputed, got %+v", c)
		}
	}
}

func TestReanalyze_WithoutStateFallsBackToFullPass(t *testing.T) {
	p := patternPipeline()
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}
	ch := chapter(1, 0, "Maria had green eyes.")
	m := manuscript(ch)

	res, err := p.Reanalyze(context.Background(), m, []domain.Entity{maria}, []uuid.UUID{ch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Consensus) != 1 {
		t.Fatalf("fallback full pass must produce consensus, got %+v", res.Consensus)
	}
}

func TestObserveAll_StreamsObservedInNarrativeOrder(t *testing.T) {
	checker := consistency.NewChecker(fusion.DefaultConfig().Severity, testLogger())
	entity := uuid.New()
	cons := []domain.ConsensusAttribute{
		{EntityID: entity, Type: domain.AttrEyeColor, Value: "green", Confidence: 0.9, Position: 10},
		{EntityID: entity, Type: domain.AttrEyeColor, Value: "blue", Confidence: 0.8, Position: 30000},
	}
	out := observeAll(checker, cons)
	if len(out) != 1 {
		t.Fatalf("expected 1 contradiction, got %d", len(out))
	}
	if out[0].EvidenceA.Value != "green" {
		t.Fatalf("the earlier sighting must be evidence A, got %+v", out[0])
	}
}

func TestScanMentions_WordBoundaries(t *testing.T) {
	maria := domain.Entity{ID: uuid.New(), Name: "Maria"}
	out := scanMentions("Mariana spoke to Maria.", 0, []domain.Entity{maria})
	if len(out) != 1 {
		t.Fatalf("Mariana must not count as Maria, got %+v", out)
	}
	if out[0].Start != 17 || out[0].End != 22 {
		t.Fatalf("unexpected mention span: %+v", out[0])
	}
}

func TestScanMentions_Aliases(t *testing.T) {
	maria := domain.Entity{ID: uuid.New(), Name: "Maria", Aliases: []string{"the doctor"}}
	out := scanMentions("The doctor frowned.", 100, []domain.Entity{maria})
	if len(out) != 1 {
		t.Fatalf("expected the alias to match case-insensitively, got %+v", out)
	}
	if out[0].EntityID != maria.ID || out[0].Start != 100 {
		t.Fatalf("unexpected mention: %+v", out[0])
	}
}
