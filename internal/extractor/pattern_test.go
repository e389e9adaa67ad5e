package extractor

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
)

func TestPatternExtractor_EyeColor(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria had green eyes.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Type != domain.AttrEyeColor || c.Value != "green" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if c.EntityID != maria.id {
		t.Fatal("candidate not attributed to Maria")
	}
	if c.Confidence != 0.85 || c.Method != domain.MethodPattern {
		t.Fatalf("unexpected confidence/method: %+v", c)
	}
	if c.Span.Start != 10 || c.Span.End != 15 {
		t.Fatalf("span does not reference the value text: %+v", c.Span)
	}
	if c.Negated || c.TemporalChange || c.AmbiguousOwner {
		t.Fatalf("unexpected modality flags: %+v", c)
	}
}

func TestPatternExtractor_SkipsHypothetical(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("What if Maria had blue eyes?", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("hypothetical framing must not yield candidates, got %+v", cands)
	}
}

func TestPatternExtractor_NegatedCandidate(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria did not have blue eyes.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if !cands[0].Negated || cands[0].Value != "blue" {
		t.Fatalf("expected negated blue, got %+v", cands[0])
	}
}

func TestPatternExtractor_NoLongerIsNegatedChange(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria's eyes were no longer green.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Value != "green" {
		t.Fatalf("the marker must not be captured as the value, got %q", c.Value)
	}
	if !c.Negated || !c.TemporalChange {
		t.Fatalf("'no longer' is a denial plus a change marker, got %+v", c)
	}
	if c.Span.Start != 28 || c.Span.End != 33 {
		t.Fatalf("span does not reference the value text: %+v", c.Span)
	}
}

func TestPatternExtractor_NoLongerHadIsNegatedChange(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria no longer had green eyes.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	if cands[0].Value != "green" || !cands[0].Negated || !cands[0].TemporalChange {
		t.Fatalf("expected negated temporal green, got %+v", cands[0])
	}
}

func TestPatternExtractor_StillIsPlainReinforcement(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria's eyes were still green.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	if cands[0].Value != "green" || cands[0].Negated || cands[0].TemporalChange {
		t.Fatalf("expected a plain positive green, got %+v", cands[0])
	}
}

func TestPatternExtractor_MoveIsTemporal(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria moved to Paris.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	c := cands[0]
	if c.Type != domain.AttrLocation || c.Value != "paris" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if !c.TemporalChange {
		t.Fatal("moved-to must carry the change marker")
	}
}

func TestPatternExtractor_BodyStateKeyedByPart(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria's left leg was injured.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Type != domain.AttrBodyState || c.Value != "injured" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if part, _ := c.Extra["body_part"].(string); part != "left leg" {
		t.Fatalf("expected body_part 'left leg', got %q", part)
	}
	if key := domain.StreamKey(c.Type, c.RawValue, c.Extra); key != "left leg" {
		t.Fatalf("expected stream key 'left leg', got %q", key)
	}
}

func TestPatternExtractor_AmbiguousPossessive(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	elena := testEntity{id: uuid.New(), name: "Elena"}
	region := makeRegion("Maria looked at Elena; her eyes were blue.", 0, maria, elena)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	c := cands[0]
	if !c.AmbiguousOwner {
		t.Fatal("two antecedents plus a possessive pronoun must be flagged ambiguous")
	}
	want := 0.85 * ambiguousOwnerPenalty
	if math.Abs(float64(c.Confidence)-float64(want)) > 1e-6 {
		t.Fatalf("expected penalized confidence %.3f, got %.3f", want, c.Confidence)
	}
}

func TestPatternExtractor_Age(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria was twenty-three years old.", 0, maria)

	e := NewPatternExtractor(testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Type != domain.AttrAge || cands[0].Value != "23" {
		t.Fatalf("expected normalized age 23, got %+v", cands[0])
	}
}
