package extractor

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultSimilarityThreshold = 0.62
	similarityConfidenceScale  = 0.75
	metaphorConfidence         = 0.55
	embeddingCacheTTL          = time.Hour
)

// metaphorEntry is a curated conventional metaphor: a phrase that by
// convention implies a canonical value, proposed at reduced confidence.
// Idiosyncratic or creative metaphors are deliberately not inferred.
type metaphorEntry struct {
	attr  domain.AttributeType
	value string
}

var conventionalMetaphors = map[string]metaphorEntry{
	"sea":       {domain.AttrEyeColor, "blue"},
	"ocean":     {domain.AttrEyeColor, "blue"},
	"sky":       {domain.AttrEyeColor, "blue"},
	"emeralds":  {domain.AttrEyeColor, "green"},
	"chocolate": {domain.AttrEyeColor, "brown"},
	"coal":      {domain.AttrEyeColor, "black"},
	"steel":     {domain.AttrEyeColor, "gray"},
	"snow":      {domain.AttrHairColor, "white"},
	"gold":      {domain.AttrHairColor, "blond"},
	"straw":     {domain.AttrHairColor, "blond"},
	"flame":     {domain.AttrHairColor, "red"},
	"fire":      {domain.AttrHairColor, "red"},
	"raven":     {domain.AttrHairColor, "black"},
}

// canonicalValues is the built-in lexicon used when no pgvector-backed
// lexicon store is attached.
var canonicalValues = map[domain.AttributeType][]string{
	domain.AttrEyeColor:  {"green", "blue", "brown", "hazel", "gray", "black", "amber", "violet"},
	domain.AttrHairColor: {"black", "brown", "blond", "red", "gray", "white", "auburn"},
}

var (
	traitPhraseRe = regexp.MustCompile(`(?i)\b([a-z]+)\s+(eyes|hair)\b`)
	similePhrases = regexp.MustCompile(`(?i)\b(eyes|hair)\s+(?:like|the color of|of)\s+(?:the\s+)?([a-z]+)\b`)
)

// EmbeddingExtractor compares candidate phrases against a lexicon of canonical
// attribute values by vector similarity. Phrase embeddings are cached.
type EmbeddingExtractor struct {
	client    domain.EmbeddingClient
	lexicon   domain.LexiconStore // optional pgvector-backed lookup
	cache     *gocache.Cache
	threshold float32
	logger    *zap.Logger
}

func NewEmbeddingExtractor(client domain.EmbeddingClient, lexicon domain.LexiconStore, logger *zap.Logger) *EmbeddingExtractor {
	return &EmbeddingExtractor{
		client:    client,
		lexicon:   lexicon,
		cache:     gocache.New(embeddingCacheTTL, 2*embeddingCacheTTL),
		threshold: defaultSimilarityThreshold,
		logger:    logger,
	}
}

func (e *EmbeddingExtractor) Method() domain.Method { return domain.MethodEmbedding }

func (e *EmbeddingExtractor) Propose(ctx context.Context, region *domain.Region) ([]domain.ExtractedAttribute, error) {
	if e.client == nil {
		return nil, nil
	}

	var out []domain.ExtractedAttribute
	for _, sent := range region.Sentences {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		mod := AnalyzeModality(sent.Text)
		if mod.Hypothetical {
			continue
		}
		mentions := region.MentionsIn(sent)
		if len(mentions) == 0 {
			mentions = region.Mentions
		}

		// adjective + trait noun, matched against the lexicon by similarity
		for _, idx := range traitPhraseRe.FindAllStringSubmatchIndex(sent.Text, -1) {
			word := strings.ToLower(sent.Text[idx[2]:idx[3]])
			noun := strings.ToLower(sent.Text[idx[4]:idx[5]])
			attr, ok := traitNouns[noun]
			if !ok {
				continue
			}
			value, sim, err := e.nearestValue(ctx, attr, word)
			if err != nil {
				return out, fmt.Errorf("lexicon lookup for %q: %w", word, err)
			}
			if sim < e.threshold {
				continue
			}
			if cand, ok := e.build(attr, word, value, sim*similarityConfidenceScale, sent, idx[2], idx[3], mod, mentions); ok {
				out = append(out, cand)
			}
		}

		// conventional similes at reduced confidence
		for _, idx := range similePhrases.FindAllStringSubmatchIndex(sent.Text, -1) {
			noun := strings.ToLower(sent.Text[idx[2]:idx[3]])
			figure := strings.ToLower(sent.Text[idx[4]:idx[5]])
			entry, ok := conventionalMetaphors[figure]
			if !ok || traitNouns[noun] != entry.attr {
				continue
			}
			if cand, ok := e.build(entry.attr, figure, entry.value, metaphorConfidence, sent, idx[4], idx[5], mod, mentions); ok {
				out = append(out, cand)
			}
		}
	}
	return out, nil
}

func (e *EmbeddingExtractor) build(attr domain.AttributeType, raw, value string, conf float32, sent domain.Sentence, vs, ve int, mod Modality, mentions []domain.Mention) (domain.ExtractedAttribute, bool) {
	owner, ok := nearestMention(sent.Start+vs, mentions)
	if !ok {
		return domain.ExtractedAttribute{}, false
	}
	ambiguous := false
	if len(distinctEntities(mentions)) > 1 && HasThirdPersonPossessive(sent.Text) {
		ambiguous = true
		conf *= ambiguousOwnerPenalty
	}
	return domain.ExtractedAttribute{
		EntityID:       owner.EntityID,
		EntityName:     owner.Name,
		Type:           attr,
		RawValue:       raw,
		Value:          domain.NormalizeValue(attr, value),
		Confidence:     conf,
		Method:         domain.MethodEmbedding,
		Span:           domain.Span{Start: sent.Start + vs, End: sent.Start + ve},
		Negated:        mod.Negated,
		TemporalChange: mod.TemporalChange,
		AmbiguousOwner: ambiguous,
	}, true
}

// nearestValue finds the canonical lexicon value most similar to the word.
func (e *EmbeddingExtractor) nearestValue(ctx context.Context, attr domain.AttributeType, word string) (string, float32, error) {
	emb, err := e.embed(ctx, word)
	if err != nil {
		return "", 0, err
	}

	if e.lexicon != nil {
		matches, err := e.lexicon.Nearest(ctx, attr, emb, 1)
		if err != nil {
			return "", 0, err
		}
		if len(matches) == 0 {
			return "", 0, nil
		}
		return matches[0].Value, matches[0].Similarity, nil
	}

	best, bestSim := "", float32(-1)
	for _, v := range canonicalValues[attr] {
		vemb, err := e.embed(ctx, v)
		if err != nil {
			return "", 0, err
		}
		if sim := cosine(emb, vemb); sim > bestSim {
			best, bestSim = v, sim
		}
	}
	return best, bestSim, nil
}

func (e *EmbeddingExtractor) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}
	emb, err := e.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, emb, gocache.DefaultExpiration)
	return emb, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
