package extractor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const generativeTriggerWords = "eyes hair years old child children lived moved injured broke scar"

// GenerativeExtractor delegates ambiguous spans to the generative-language
// collaborator. It is optional and the dominant latency source: calls run
// under a concurrency cap, a rate limiter, and a per-call timeout, and any
// failure degrades to "no candidate".
type GenerativeExtractor struct {
	client  domain.GenerativeClient
	limiter *rate.Limiter
	sem     chan struct{}
	timeout time.Duration
	prompt  func(sentence string, entities []string) string
	logger  *zap.Logger
}

func NewGenerativeExtractor(client domain.GenerativeClient, promptFn func(string, []string) string, timeout time.Duration, maxConcurrency int, rps float64, logger *zap.Logger) *GenerativeExtractor {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &GenerativeExtractor{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), maxConcurrency),
		sem:     make(chan struct{}, maxConcurrency),
		timeout: timeout,
		prompt:  promptFn,
		logger:  logger,
	}
}

func (e *GenerativeExtractor) Method() domain.Method { return domain.MethodGenerative }

// generativeCandidate mirrors the JSON shape the collaborator is prompted to
// return.
type generativeCandidate struct {
	Entity         string  `json:"entity"`
	Type           string  `json:"type"`
	Value          string  `json:"value"`
	Confidence     float32 `json:"confidence"`
	Negated        bool    `json:"negated"`
	TemporalChange bool    `json:"temporal_change"`
}

func (e *GenerativeExtractor) Propose(ctx context.Context, region *domain.Region) ([]domain.ExtractedAttribute, error) {
	if e.client == nil {
		return nil, nil
	}

	triggers := strings.Fields(generativeTriggerWords)
	var out []domain.ExtractedAttribute
	for _, sent := range region.Sentences {
		mod := AnalyzeModality(sent.Text)
		if mod.Hypothetical {
			continue
		}
		mentions := region.MentionsIn(sent)
		if len(mentions) == 0 {
			continue
		}
		if !containsAny(strings.ToLower(sent.Text), triggers) {
			continue
		}

		cands, err := e.invoke(ctx, sent, mentions)
		if err != nil {
			// timeout or collaborator unavailability: no candidate, keep going
			e.logger.Debug("generative extraction degraded",
				zap.Int("position", sent.Start),
				zap.Error(err))
			continue
		}
		out = append(out, cands...)
	}
	return out, nil
}

func (e *GenerativeExtractor) invoke(ctx context.Context, sent domain.Sentence, mentions []domain.Mention) ([]domain.ExtractedAttribute, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(mentions))
	seen := map[string]bool{}
	for _, m := range mentions {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}

	raw, err := e.client.Invoke(ctx, e.prompt(sent.Text, names), e.timeout)
	if err != nil {
		return nil, err
	}

	// Strip markdown fences if present
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var parsed []generativeCandidate
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}

	var out []domain.ExtractedAttribute
	for _, c := range parsed {
		owner, ok := mentionByName(c.Entity, mentions)
		if !ok || c.Value == "" {
			continue
		}
		conf := c.Confidence
		if conf <= 0 || conf > 1 {
			continue
		}
		attr := domain.AttributeType(c.Type)
		out = append(out, domain.ExtractedAttribute{
			EntityID:       owner.EntityID,
			EntityName:     owner.Name,
			Type:           attr,
			RawValue:       c.Value,
			Value:          domain.NormalizeValue(attr, c.Value),
			Confidence:     conf,
			Method:         domain.MethodGenerative,
			Span:           domain.Span{Start: sent.Start, End: sent.End},
			Negated:        c.Negated,
			TemporalChange: c.TemporalChange,
		})
	}
	return out, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func mentionByName(name string, mentions []domain.Mention) (domain.Mention, bool) {
	for _, m := range mentions {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return domain.Mention{}, false
}
