package fusion

import (
	"sort"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

// Engine reconciles the complete candidate set for one (entity, attribute
// type, sub-key) within a resolution window into at most one positive
// consensus value, plus any negated values retained as negative evidence.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) Config() Config { return e.cfg }

// valueGroup aggregates all candidates sharing a normalized value class.
type valueGroup struct {
	value    string
	negated  bool
	score    float64
	byMethod map[domain.Method]domain.ExtractedAttribute // best candidate per method
	temporal bool
	position int
}

// Fuse computes consensus for one candidate set. All candidates must share
// entity, type, and sub-key; callers group them first. The input is never
// mutated and identical input yields identical output.
func (e *Engine) Fuse(cands []domain.ExtractedAttribute) []domain.ConsensusAttribute {
	if len(cands) == 0 {
		return nil
	}
	attrType := cands[0].Type

	positive := e.groupByValue(cands, false)
	negative := e.groupByValue(cands, true)

	var out []domain.ConsensusAttribute

	if winner, ok := e.pickWinner(attrType, positive); ok {
		out = append(out, e.consensus(cands[0], winner))
	}

	// negated groups are never positive consensus but survive as negative
	// evidence for contradiction checks
	sort.Slice(negative, func(i, j int) bool { return negative[i].value < negative[j].value })
	for _, g := range negative {
		if g.score >= e.cfg.Threshold {
			out = append(out, e.consensus(cands[0], g))
		}
	}
	return out
}

func (e *Engine) groupByValue(cands []domain.ExtractedAttribute, negated bool) []*valueGroup {
	groups := map[string]*valueGroup{}
	var order []string
	for _, c := range cands {
		if c.Negated != negated {
			continue
		}
		g, ok := groups[c.Value]
		if !ok {
			g = &valueGroup{
				value:    c.Value,
				negated:  negated,
				byMethod: map[domain.Method]domain.ExtractedAttribute{},
				position: c.Position(),
			}
			groups[c.Value] = g
			order = append(order, c.Value)
		}
		// multiple sightings by the same method count once, at their best
		if prev, ok := g.byMethod[c.Method]; !ok || c.Confidence > prev.Confidence {
			g.byMethod[c.Method] = c
		}
		if c.TemporalChange {
			g.temporal = true
		}
		if c.Position() < g.position {
			g.position = c.Position()
		}
	}

	attrType := domain.AttributeType("")
	if len(cands) > 0 {
		attrType = cands[0].Type
	}
	out := make([]*valueGroup, 0, len(groups))
	for _, v := range order {
		g := groups[v]
		for m, c := range g.byMethod {
			g.score += e.cfg.Weight(attrType, m) * float64(c.Confidence)
		}
		out = append(out, g)
	}
	return out
}

// pickWinner applies the acceptance threshold, the margin over the runner-up,
// and the tie-break order: extractor precedence, then earliest text position.
func (e *Engine) pickWinner(attrType domain.AttributeType, groups []*valueGroup) (*valueGroup, bool) {
	if len(groups) == 0 {
		return nil, false
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if pa, pb := a.bestPrecedence(), b.bestPrecedence(); pa != pb {
			return pa > pb
		}
		if a.position != b.position {
			return a.position < b.position
		}
		return a.value < b.value
	})

	winner := groups[0]
	if winner.score < e.cfg.Threshold {
		return nil, false
	}
	if len(groups) > 1 && winner.score-groups[1].score < e.cfg.Margin && winner.score != groups[1].score {
		// too close to call: undetermined, no consensus and no alert
		return nil, false
	}

	// a single method never establishes consensus from a low-confidence
	// candidate unless it is configured as authoritative
	if len(winner.byMethod) == 1 {
		for m, c := range winner.byMethod {
			if !e.cfg.IsAuthoritative(m) && float64(c.Confidence) < e.cfg.SingleMethodMin {
				return nil, false
			}
		}
	}
	return winner, true
}

func (g *valueGroup) bestPrecedence() int {
	best := 0
	for m := range g.byMethod {
		if p := m.Precedence(); p > best {
			best = p
		}
	}
	return best
}

// consensus builds the record, retaining every contributing method's score for
// transparency.
func (e *Engine) consensus(sample domain.ExtractedAttribute, g *valueGroup) domain.ConsensusAttribute {
	supporting := make([]domain.MethodScore, 0, len(g.byMethod))
	var maxConf float32
	var supportScore float64
	for m, c := range g.byMethod {
		w := e.cfg.Weight(sample.Type, m)
		supporting = append(supporting, domain.MethodScore{
			Method:     m,
			RawValue:   c.RawValue,
			Confidence: c.Confidence,
			Weight:     w,
			Score:      w * float64(c.Confidence),
		})
		if c.Confidence > maxConf {
			maxConf = c.Confidence
		}
	}
	sort.Slice(supporting, func(i, j int) bool {
		return supporting[i].Method.Precedence() > supporting[j].Method.Precedence()
	})
	skippedMax := false
	for _, s := range supporting {
		if !skippedMax && s.Confidence == maxConf {
			skippedMax = true
			continue
		}
		supportScore += s.Score
	}

	// corroboration lifts confidence above the strongest single method but
	// never reaches past 1
	conf := float64(maxConf) + (1-float64(maxConf))*supportScore
	if conf > 1 {
		conf = 1
	}

	return domain.ConsensusAttribute{
		EntityID:       sample.EntityID,
		Type:           sample.Type,
		Key:            domain.StreamKey(sample.Type, sample.RawValue, sample.Extra),
		Value:          g.value,
		Negated:        g.negated,
		TemporalChange: g.temporal,
		Confidence:     float32(conf),
		Supporting:     supporting,
		Position:       g.position,
	}
}
