package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 30 * time.Second
)

// ErrCircuitOpen is returned while the breaker is refusing calls after
// repeated collaborator failures.
var ErrCircuitOpen = errors.New("llm circuit open")

// Breaker wraps a generative client with circuit-breaker semantics: after
// FailureThreshold consecutive failures it fails fast for Cooldown, so a down
// collaborator cannot stall every attribute resolution.
type Breaker struct {
	client domain.GenerativeClient
	logger *zap.Logger

	FailureThreshold int
	Cooldown         time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

func NewBreaker(client domain.GenerativeClient, logger *zap.Logger) *Breaker {
	return &Breaker{
		client:           client,
		logger:           logger,
		FailureThreshold: DefaultFailureThreshold,
		Cooldown:         DefaultCooldown,
	}
}

func (b *Breaker) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	b.mu.Lock()
	if !b.openUntil.IsZero() && time.Now().Before(b.openUntil) {
		b.mu.Unlock()
		return "", ErrCircuitOpen
	}
	b.mu.Unlock()

	out, err := b.client.Invoke(ctx, prompt, timeout)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.FailureThreshold {
			b.openUntil = time.Now().Add(b.Cooldown)
			b.failures = 0
			b.logger.Warn("llm circuit opened",
				zap.Duration("cooldown", b.Cooldown),
				zap.Error(err))
		}
		return "", err
	}
	b.failures = 0
	b.openUntil = time.Time{}
	return out, nil
}
