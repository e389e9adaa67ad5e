package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Method identifies the extraction strategy that produced a candidate.
type Method string

const (
	MethodPattern    Method = "pattern"
	MethodDependency Method = "dependency"
	MethodEmbedding  Method = "embedding"
	MethodGenerative Method = "generative"
)

// Precedence orders methods for tie-breaking during fusion. Higher wins.
func (m Method) Precedence() int {
	switch m {
	case MethodDependency:
		return 4
	case MethodPattern:
		return 3
	case MethodEmbedding:
		return 2
	case MethodGenerative:
		return 1
	default:
		return 0
	}
}

func ValidMethod(m string) bool {
	switch Method(m) {
	case MethodPattern, MethodDependency, MethodEmbedding, MethodGenerative:
		return true
	}
	return false
}

// AttributeType tags what kind of trait a candidate describes. The set is open:
// new types register a comparator (see comparator.go) without touching fusion
// or the consistency checker.
type AttributeType string

const (
	AttrEyeColor   AttributeType = "eye_color"
	AttrHairColor  AttributeType = "hair_color"
	AttrAge        AttributeType = "age"
	AttrChildCount AttributeType = "child_count"
	AttrLocation   AttributeType = "location"
	AttrBodyState  AttributeType = "body_state"
)

// Span is a half-open [Start, End) character range in global manuscript offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Validate(sourceLen int) error {
	if s.Start < 0 || s.End <= s.Start || s.End > sourceLen {
		return fmt.Errorf("span [%d,%d) out of range for source of length %d", s.Start, s.End, sourceLen)
	}
	return nil
}

// ExtractedAttribute is one extractor's raw candidate observation. Immutable
// once emitted.
type ExtractedAttribute struct {
	EntityID       uuid.UUID      `json:"entity_id"`
	EntityName     string         `json:"entity_name"`
	Type           AttributeType  `json:"type"`
	RawValue       string         `json:"raw_value"`
	Value          string         `json:"value"` // normalized via the type's comparator
	Confidence     float32        `json:"confidence"`
	Method         Method         `json:"method"`
	Span           Span           `json:"span"`
	Negated        bool           `json:"negated"`
	TemporalChange bool           `json:"temporal_change"`
	AmbiguousOwner bool           `json:"ambiguous_owner"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Validate enforces the candidate invariants: confidence in [0,1] and a span
// that references a real offset in the source.
func (a *ExtractedAttribute) Validate(sourceLen int) error {
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0,1]", a.Confidence)
	}
	if !ValidMethod(string(a.Method)) {
		return fmt.Errorf("unknown method %q", a.Method)
	}
	return a.Span.Validate(sourceLen)
}

// Position is the narrative-order location of the observation.
func (a *ExtractedAttribute) Position() int { return a.Span.Start }

// MethodScore records one method's contribution to a consensus value, kept for
// transparency and debugging.
type MethodScore struct {
	Method     Method  `json:"method"`
	RawValue   string  `json:"raw_value"`
	Confidence float32 `json:"confidence"`
	Weight     float64 `json:"weight"`
	Score      float64 `json:"score"`
}

// ConsensusAttribute is the fused, cross-method value for one entity attribute
// at a point in the narrative.
type ConsensusAttribute struct {
	ManuscriptID   uuid.UUID     `json:"manuscript_id"`
	EntityID       uuid.UUID     `json:"entity_id"`
	Type           AttributeType `json:"type"`
	Key            string        `json:"key,omitempty"` // comparator sub-key, e.g. body part
	Value          string        `json:"value"`
	Negated        bool          `json:"negated"`
	TemporalChange bool          `json:"temporal_change"`
	Device         bool          `json:"device"` // inside a flashback/dream region
	Confidence     float32       `json:"confidence"`
	Supporting     []MethodScore `json:"supporting"`
	Position       int           `json:"position"`
	ChapterID      uuid.UUID     `json:"chapter_id"`
}

// Evidence is one side of a contradiction.
type Evidence struct {
	Value      string  `json:"value"`
	Position   int     `json:"position"`
	Confidence float32 `json:"confidence"`
}

type SeverityLevel string

const (
	SeverityLow    SeverityLevel = "low"
	SeverityMedium SeverityLevel = "medium"
	SeverityHigh   SeverityLevel = "high"
)

// Contradiction is a flagged pair of incompatible values for the same entity
// attribute without narrative justification. Contradictions are derived
// artifacts: regenerated on re-analysis, never mutated in place.
type Contradiction struct {
	ID           uuid.UUID     `json:"id"`
	ManuscriptID uuid.UUID     `json:"manuscript_id"`
	EntityID     uuid.UUID     `json:"entity_id"`
	Type         AttributeType `json:"type"`
	Key          string        `json:"key,omitempty"`
	EvidenceA    Evidence      `json:"evidence_a"`
	EvidenceB    Evidence      `json:"evidence_b"`
	Severity     float64       `json:"severity"`
	Level        SeverityLevel `json:"level"`
	Dismissed    bool          `json:"dismissed"`
	DetectedAt   time.Time     `json:"detected_at"`
}
