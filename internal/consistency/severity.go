package consistency

import (
	"math"

	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/fusion"
)

// scoreSeverity rates a contradiction: it scales with the confidence of both
// evidences and decays with the narrative distance between them, so near,
// high-confidence contradictions outrank distant, low-confidence ones.
func scoreSeverity(curve fusion.SeverityCurve, a, b domain.Evidence) (float64, domain.SeverityLevel) {
	dist := math.Abs(float64(b.Position - a.Position))
	scale := curve.DistanceScale
	if scale <= 0 {
		scale = 1
	}
	proximity := 0.5 + 0.5*math.Exp(-dist/scale)
	sev := float64(a.Confidence) * float64(b.Confidence) * proximity

	switch {
	case sev >= curve.HighCutoff:
		return sev, domain.SeverityHigh
	case sev >= curve.MediumCutoff:
		return sev, domain.SeverityMedium
	default:
		return sev, domain.SeverityLow
	}
}
