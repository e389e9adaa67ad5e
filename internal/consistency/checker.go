package consistency

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/fusion"
	"go.uber.org/zap"
)

const (
	DefaultReinforcementLogOdds = 0.3
	DefaultMaxConfidence        = 0.99
	DefaultMinConfidence        = 0.01
)

func logit(p float64) float64 {
	p = clampConfidence(p)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// reinforce lifts a confidence by a log-odds delta, clamped away from 0 and 1.
func reinforce(confidence float32, logOddsDelta float64) float32 {
	return float32(clampConfidence(sigmoid(logit(float64(confidence)) + logOddsDelta)))
}

func clampConfidence(p float64) float64 {
	if p < DefaultMinConfidence {
		return DefaultMinConfidence
	}
	if p > DefaultMaxConfidence {
		return DefaultMaxConfidence
	}
	return p
}

// State of one (entity, attribute type, sub-key) stream.
type State string

const (
	StateUnset        State = "unset"
	StateEstablished  State = "established"
	StateChanged      State = "changed"
	StateContradicted State = "contradicted"
)

// StreamKey identifies one independent attribute stream.
type StreamKey struct {
	EntityID uuid.UUID
	Type     domain.AttributeType
	Key      string
}

type streamState struct {
	mu         sync.Mutex // guards every field below
	state      State
	value      string
	position   int
	confidence float32
	negatives  map[string]domain.Evidence // value -> earliest negated assertion
	reported   map[string]bool            // evidence pairs already flagged
}

func newStreamState() *streamState {
	return &streamState{
		state:     StateUnset,
		negatives: map[string]domain.Evidence{},
		reported:  map[string]bool{},
	}
}

// Checker consumes consensus values in narrative order and distinguishes
// stable reinforcement, legitimate in-story change, and true contradiction.
// Each stream is sequential; independent streams may be observed concurrently.
type Checker struct {
	curve  fusion.SeverityCurve
	logger *zap.Logger

	ReinforcementLogOdds float64

	mu     sync.Mutex // guards the stream map; each stream carries its own lock
	states map[StreamKey]*streamState
}

func NewChecker(curve fusion.SeverityCurve, logger *zap.Logger) *Checker {
	return &Checker{
		curve:                curve,
		logger:               logger,
		ReinforcementLogOdds: DefaultReinforcementLogOdds,
		states:               map[StreamKey]*streamState{},
	}
}

// StateOf reports the current state of a stream.
func (c *Checker) StateOf(k StreamKey) State {
	c.mu.Lock()
	st, ok := c.states[k]
	c.mu.Unlock()
	if !ok {
		return StateUnset
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Established returns the currently established value of a stream, if any.
func (c *Checker) Established(k StreamKey) (string, float32, bool) {
	c.mu.Lock()
	st, ok := c.states[k]
	c.mu.Unlock()
	if !ok {
		return "", 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.value == "" {
		return "", 0, false
	}
	return st.value, st.confidence, true
}

// ResetStream invalidates one stream's state, for targeted re-analysis.
func (c *Checker) ResetStream(k StreamKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, k)
}

// Reset invalidates everything, the full-recomputation fallback.
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = map[StreamKey]*streamState{}
}

// Observe consumes the next consensus value of a stream and returns any
// contradictions it reveals. Malformed or ambiguous evidence never produces
// an error: the stream simply stays undetermined.
func (c *Checker) Observe(cons domain.ConsensusAttribute) []domain.Contradiction {
	if cons.Value == "" {
		return nil
	}
	k := StreamKey{EntityID: cons.EntityID, Type: cons.Type, Key: cons.Key}

	c.mu.Lock()
	st, ok := c.states[k]
	if !ok {
		st = newStreamState()
		c.states[k] = st
	}
	c.mu.Unlock()

	// the stream lock serializes observations with concurrent accessor reads
	st.mu.Lock()
	defer st.mu.Unlock()

	// a flashback or dream region, or an explicit change marker, bridges an
	// apparent conflict
	bridged := cons.TemporalChange || cons.Device

	if cons.Negated {
		return c.observeNegated(k, st, cons, bridged)
	}
	return c.observePositive(k, st, cons, bridged)
}

func (c *Checker) observeNegated(k StreamKey, st *streamState, cons domain.ConsensusAttribute, bridged bool) []domain.Contradiction {
	evid := domain.Evidence{Value: "not " + cons.Value, Position: cons.Position, Confidence: cons.Confidence}

	if st.value != "" && domain.SameValue(cons.Type, st.value, cons.Value) {
		if bridged {
			// "her eyes were no longer green": the value legitimately ends here
			c.logger.Info("attribute retired by change marker",
				zap.String("entity_id", k.EntityID.String()),
				zap.String("type", string(k.Type)),
				zap.String("value", st.value),
				zap.Int("position", cons.Position))
			st.state = StateChanged
			st.value = ""
			return nil
		}
		prior := domain.Evidence{Value: st.value, Position: st.position, Confidence: st.confidence}
		st.state = StateContradicted
		return c.flag(k, st, cons, prior, evid)
	}

	// remember the denial; a later positive assertion of this value without a
	// bridge is a contradiction
	if _, seen := st.negatives[cons.Value]; !seen {
		st.negatives[cons.Value] = evid
	}
	return nil
}

func (c *Checker) observePositive(k StreamKey, st *streamState, cons domain.ConsensusAttribute, bridged bool) []domain.Contradiction {
	var out []domain.Contradiction
	evid := domain.Evidence{Value: cons.Value, Position: cons.Position, Confidence: cons.Confidence}

	if neg, ok := st.negatives[cons.Value]; ok && !bridged {
		out = append(out, c.flag(k, st, cons, neg, evid)...)
		st.state = StateContradicted
	}

	switch {
	case st.value == "":
		if st.state == StateUnset {
			st.state = StateEstablished
		}
		st.value = cons.Value
		st.position = cons.Position
		st.confidence = cons.Confidence

	case domain.SameValue(cons.Type, st.value, cons.Value):
		st.confidence = reinforce(st.confidence, c.ReinforcementLogOdds)

	case bridged:
		c.logger.Info("attribute changed legitimately",
			zap.String("entity_id", k.EntityID.String()),
			zap.String("type", string(k.Type)),
			zap.String("from", st.value),
			zap.String("to", cons.Value),
			zap.Int("position", cons.Position))
		st.state = StateChanged
		st.value = cons.Value
		st.position = cons.Position
		st.confidence = cons.Confidence

	default:
		prior := domain.Evidence{Value: st.value, Position: st.position, Confidence: st.confidence}
		out = append(out, c.flag(k, st, cons, prior, evid)...)
		st.state = StateContradicted
		// keep tracking whichever side is better supported
		if cons.Confidence > st.confidence {
			st.value = cons.Value
			st.position = cons.Position
			st.confidence = cons.Confidence
		}
	}
	return out
}

// flag emits a contradiction once per evidence pair per stream.
func (c *Checker) flag(k StreamKey, st *streamState, cons domain.ConsensusAttribute, a, b domain.Evidence) []domain.Contradiction {
	pair := a.Value + "|" + b.Value
	if b.Value < a.Value {
		pair = b.Value + "|" + a.Value
	}
	if st.reported[pair] {
		return nil
	}
	st.reported[pair] = true

	sev, level := scoreSeverity(c.curve, a, b)
	c.logger.Warn("contradiction detected",
		zap.String("entity_id", k.EntityID.String()),
		zap.String("type", string(k.Type)),
		zap.String("key", k.Key),
		zap.String("value_a", a.Value),
		zap.String("value_b", b.Value),
		zap.Float64("severity", sev))

	return []domain.Contradiction{{
		ID:           uuid.New(),
		ManuscriptID: cons.ManuscriptID,
		EntityID:     k.EntityID,
		Type:         k.Type,
		Key:          k.Key,
		EvidenceA:    a,
		EvidenceB:    b,
		Severity:     sev,
		Level:        level,
		DetectedAt:   time.Now(),
	}}
}
