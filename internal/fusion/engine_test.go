package fusion

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

var testEntityID = uuid.New()

func cand(m domain.Method, value string, conf float32, pos int) domain.ExtractedAttribute {
	return domain.ExtractedAttribute{
		EntityID:   testEntityID,
		Type:       domain.AttrEyeColor,
		RawValue:   value,
		Value:      domain.NormalizeValue(domain.AttrEyeColor, value),
		Confidence: conf,
		Method:     m,
		Span:       domain.Span{Start: pos, End: pos + len(value)},
	}
}

func negated(c domain.ExtractedAttribute) domain.ExtractedAttribute {
	c.Negated = true
	return c
}

func TestFuse_CorroborationLiftsConfidence(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	cands := []domain.ExtractedAttribute{
		cand(domain.MethodPattern, "green", 0.85, 10),
		cand(domain.MethodEmbedding, "green", 0.60, 40),
		cand(domain.MethodGenerative, "green", 0.90, 70),
	}
	out := e.Fuse(cands)
	if len(out) != 1 {
		t.Fatalf("expected 1 consensus, got %d: %+v", len(out), out)
	}
	c := out[0]
	if c.Value != "green" {
		t.Fatalf("unexpected value %q", c.Value)
	}
	// 0.90 + (1-0.90) * (0.30*0.85 + 0.20*0.60)
	if math.Abs(float64(c.Confidence)-0.9375) > 1e-4 {
		t.Fatalf("expected corroborated confidence 0.9375, got %.4f", c.Confidence)
	}
	for _, s := range c.Supporting {
		if c.Confidence <= s.Confidence {
			t.Fatalf("corroboration must lift above every single method, got %.4f vs %s %.4f", c.Confidence, s.Method, s.Confidence)
		}
	}
	if len(c.Supporting) != 3 {
		t.Fatalf("expected 3 supporting scores, got %d", len(c.Supporting))
	}
	if c.Position != 10 {
		t.Fatalf("consensus position must be the earliest sighting, got %d", c.Position)
	}
}

func TestFuse_ConfidenceMonotonicInEvidence(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	alone := e.Fuse([]domain.ExtractedAttribute{cand(domain.MethodPattern, "green", 0.85, 0)})
	if len(alone) != 1 {
		t.Fatalf("expected consensus from authoritative pattern alone, got %+v", alone)
	}
	both := e.Fuse([]domain.ExtractedAttribute{
		cand(domain.MethodPattern, "green", 0.85, 0),
		cand(domain.MethodEmbedding, "green", 0.60, 50),
	})
	if len(both) != 1 {
		t.Fatalf("expected 1 consensus, got %+v", both)
	}
	if both[0].Confidence <= alone[0].Confidence {
		t.Fatalf("adding agreeing evidence must not lower confidence: %.4f vs %.4f", both[0].Confidence, alone[0].Confidence)
	}
	if both[0].Confidence >= 1 {
		t.Fatal("confidence must stay below 1")
	}
}

func TestFuse_BelowThresholdNoConsensus(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	out := e.Fuse([]domain.ExtractedAttribute{cand(domain.MethodGenerative, "green", 0.50, 0)})
	if len(out) != 0 {
		t.Fatalf("a weak lone generative sighting must not reach consensus, got %+v", out)
	}
}

func TestFuse_NarrowMarginIsUndetermined(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	out := e.Fuse([]domain.ExtractedAttribute{
		cand(domain.MethodPattern, "green", 0.85, 0),    // score 0.255
		cand(domain.MethodDependency, "blue", 0.80, 50), // score 0.280
	})
	if len(out) != 0 {
		t.Fatalf("scores within the margin must stay undetermined, got %+v", out)
	}
}

func TestFuse_ExactTieBreaksByPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultWeights = map[domain.Method]float64{
		domain.MethodDependency: 0.25,
		domain.MethodPattern:    0.25,
		domain.MethodEmbedding:  0.25,
		domain.MethodGenerative: 0.25,
	}
	e := NewEngine(cfg, testLogger())
	out := e.Fuse([]domain.ExtractedAttribute{
		cand(domain.MethodDependency, "blue", 0.80, 50),
		cand(domain.MethodPattern, "green", 0.80, 0),
	})
	if len(out) != 1 {
		t.Fatalf("an exact tie resolves by precedence, got %+v", out)
	}
	if out[0].Value != "blue" {
		t.Fatalf("dependency outranks pattern on ties, got %q", out[0].Value)
	}
}

func TestFuse_SingleMethodMinimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultWeights = map[domain.Method]float64{domain.MethodEmbedding: 1.0}
	e := NewEngine(cfg, testLogger())

	blocked := e.Fuse([]domain.ExtractedAttribute{cand(domain.MethodEmbedding, "green", 0.60, 0)})
	if len(blocked) != 0 {
		t.Fatalf("lone non-authoritative method below the minimum must not pass, got %+v", blocked)
	}
	passed := e.Fuse([]domain.ExtractedAttribute{cand(domain.MethodEmbedding, "green", 0.75, 0)})
	if len(passed) != 1 {
		t.Fatalf("confident lone sighting should pass, got %+v", passed)
	}
}

func TestFuse_NegatedValuesKeptAsNegativeEvidence(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	out := e.Fuse([]domain.ExtractedAttribute{
		cand(domain.MethodPattern, "green", 0.85, 0),
		negated(cand(domain.MethodPattern, "blue", 0.80, 50)),
	})
	if len(out) != 2 {
		t.Fatalf("expected positive consensus plus negative evidence, got %+v", out)
	}
	var sawPositive, sawNegative bool
	for _, c := range out {
		switch {
		case !c.Negated && c.Value == "green":
			sawPositive = true
		case c.Negated && c.Value == "blue":
			sawNegative = true
		}
	}
	if !sawPositive || !sawNegative {
		t.Fatalf("denials must not merge with assertions: %+v", out)
	}
}

func TestFuse_EquivalentSurfaceFormsMerge(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	out := e.Fuse([]domain.ExtractedAttribute{
		cand(domain.MethodPattern, "grey", 0.80, 0),
		cand(domain.MethodEmbedding, "gray", 0.70, 50),
	})
	if len(out) != 1 {
		t.Fatalf("grey and gray are one value class, got %+v", out)
	}
	if out[0].Value != "gray" || len(out[0].Supporting) != 2 {
		t.Fatalf("expected merged gray consensus, got %+v", out[0])
	}
}

func TestFuse_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	cands := []domain.ExtractedAttribute{
		cand(domain.MethodPattern, "green", 0.85, 10),
		cand(domain.MethodEmbedding, "green", 0.60, 40),
		negated(cand(domain.MethodPattern, "blue", 0.80, 90)),
	}
	first := e.Fuse(cands)
	second := e.Fuse(cands)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical input must yield identical output:\n%+v\n%+v", first, second)
	}
}

func TestFuse_Empty(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	if out := e.Fuse(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %+v", out)
	}
}

func TestConfig_ValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultWeights[domain.MethodPattern] = 0.9
	if err := cfg.Validate(); err == nil {
		t.Fatal("weights not summing to 1 must fail validation")
	}

	cfg = DefaultConfig()
	cfg.Threshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("out-of-range threshold must fail validation")
	}
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("empty path must return defaults, got %+v", cfg)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.yaml")
	if err := os.WriteFile(path, []byte("threshold: 0.30\nmargin: 0.10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Threshold != 0.30 || cfg.Margin != 0.10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SingleMethodMin != DefaultConfig().SingleMethodMin {
		t.Fatal("unset fields must keep their defaults")
	}
}
