package pipeline

import (
	"context"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

// LogNotifier is the default alert sink: every contradiction is surfaced as a
// structured warning with both evidences visible.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, c domain.Contradiction) {
	n.logger.Warn("contradiction alert",
		zap.String("contradiction_id", c.ID.String()),
		zap.String("manuscript_id", c.ManuscriptID.String()),
		zap.String("entity_id", c.EntityID.String()),
		zap.String("type", string(c.Type)),
		zap.String("key", c.Key),
		zap.String("evidence_a", c.EvidenceA.Value),
		zap.Int("position_a", c.EvidenceA.Position),
		zap.String("evidence_b", c.EvidenceB.Value),
		zap.Int("position_b", c.EvidenceB.Position),
		zap.Float64("severity", c.Severity),
		zap.String("level", string(c.Level)))
}
