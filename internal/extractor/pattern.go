package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

const ambiguousOwnerPenalty = 0.7

// template is one known syntactic pattern with a per-pattern base confidence.
type template struct {
	re          *regexp.Regexp
	attr        domain.AttributeType
	confidence  float32
	valueGroup  int
	markerGroup int  // negation/change marker capture ("no longer"), 0 if none
	partGroup   int  // body-part capture for laterality-keyed types, 0 if none
	temporal    bool // the pattern itself implies in-story change ("moved to")
}

// PatternExtractor matches known surface templates against each sentence.
type PatternExtractor struct {
	templates []template
	logger    *zap.Logger
}

func NewPatternExtractor(logger *zap.Logger) *PatternExtractor {
	return &PatternExtractor{
		logger: logger,
		templates: []template{
			// copula and have-templates tolerate a marker between verb and
			// value ("eyes were no longer green"); re2 has no lookahead, so
			// the marker is captured and the value group stays clean
			{re: regexp.MustCompile(`(?i)\b(?:(no\s+longer|never)\s+)?(?:had|has|have|with)\s+(?:long\s+|short\s+|curly\s+|straight\s+)?(\w+)\s+hair\b`), attr: domain.AttrHairColor, confidence: 0.80, valueGroup: 2, markerGroup: 1},
			{re: regexp.MustCompile(`(?i)\bhair\s+(?:was|were|is|are)\s+(?:(no\s+longer|not|never)\s+|still\s+)?(\w+)\b`), attr: domain.AttrHairColor, confidence: 0.80, valueGroup: 2, markerGroup: 1},
			{re: regexp.MustCompile(`(?i)\b(?:(no\s+longer|never)\s+)?(?:had|has|have)\s+(\w+)\s+eyes\b`), attr: domain.AttrEyeColor, confidence: 0.85, valueGroup: 2, markerGroup: 1},
			{re: regexp.MustCompile(`(?i)\beyes\s+(?:was|were|is|are)\s+(?:(no\s+longer|not|never)\s+|still\s+)?(\w+)\b`), attr: domain.AttrEyeColor, confidence: 0.85, valueGroup: 2, markerGroup: 1},
			{re: regexp.MustCompile(`(?i)\b(\w+)[- ]eyed\b`), attr: domain.AttrEyeColor, confidence: 0.70, valueGroup: 1},
			{re: regexp.MustCompile(`(?i)\blived?\s+in\s+([A-Z][A-Za-z .]*?)(?:\s+(?:with|for|since|when|where|and)\b|[.,;!?]|$)`), attr: domain.AttrLocation, confidence: 0.80, valueGroup: 1},
			{re: regexp.MustCompile(`(?i)\bmoved\s+to\s+([A-Z][A-Za-z .]*?)(?:\s+(?:with|for|when|and)\b|[.,;!?]|$)`), attr: domain.AttrLocation, confidence: 0.80, valueGroup: 1, temporal: true},
			{re: regexp.MustCompile(`(?i)\b(?:was|is|turned|just turned)\s+([a-z0-9-]+)\s+years?\s+old\b`), attr: domain.AttrAge, confidence: 0.85, valueGroup: 1},
			{re: regexp.MustCompile(`(?i)\b(?:had|has|have|raised)\s+([a-z0-9-]+)\s+(?:child|children|kids?|sons?|daughters?)\b`), attr: domain.AttrChildCount, confidence: 0.85, valueGroup: 1},
			{re: regexp.MustCompile(`(?i)\b(left|right)\s+(arm|leg|hand|eye|shoulder|knee|ankle|wrist)\s+(?:was\s+|were\s+|had\s+been\s+)?(injured|broken|scarred|wounded|bandaged|burned)\b`), attr: domain.AttrBodyState, confidence: 0.80, valueGroup: 3, partGroup: 1},
			{re: regexp.MustCompile(`(?i)\b(injured|broke|scarred|wounded|bandaged|burned)\s+(?:his|her|their)\s+(left|right)\s+(arm|leg|hand|shoulder|knee|ankle|wrist)\b`), attr: domain.AttrBodyState, confidence: 0.80, valueGroup: 1, partGroup: 2},
		},
	}
}

func (e *PatternExtractor) Method() domain.Method { return domain.MethodPattern }

func (e *PatternExtractor) Propose(ctx context.Context, region *domain.Region) ([]domain.ExtractedAttribute, error) {
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
		for _, tpl := range e.templates {
			for _, idx := range tpl.re.FindAllStringSubmatchIndex(sent.Text, -1) {
				cand, ok := e.candidate(tpl, sent, idx, mod, mentions, region)
				if ok {
					out = append(out, cand)
				}
			}
		}
	}
	return out, nil
}

func (e *PatternExtractor) candidate(tpl template, sent domain.Sentence, idx []int, mod Modality, mentions []domain.Mention, region *domain.Region) (domain.ExtractedAttribute, bool) {
	vs, ve := idx[2*tpl.valueGroup], idx[2*tpl.valueGroup+1]
	if vs < 0 || ve <= vs {
		return domain.ExtractedAttribute{}, false
	}
	raw := strings.TrimSpace(sent.Text[vs:ve])
	if markerWords[strings.ToLower(raw)] {
		// a marker word is never an attribute value
		return domain.ExtractedAttribute{}, false
	}

	negated := mod.Negated
	if tpl.markerGroup > 0 && idx[2*tpl.markerGroup] >= 0 {
		negated = true
	}

	// default ownership is nearest entity by text distance
	scope := mentions
	if len(scope) == 0 {
		scope = region.Mentions
	}
	owner, ok := nearestMention(sent.Start+idx[0], scope)
	if !ok {
		return domain.ExtractedAttribute{}, false
	}

	conf := tpl.confidence
	ambiguous := false
	// a third-person possessive with several candidate antecedents is never
	// silently guessed
	if len(distinctEntities(mentions)) > 1 && HasThirdPersonPossessive(sent.Text) {
		ambiguous = true
		conf *= ambiguousOwnerPenalty
	}

	extra := map[string]any{"pattern": tpl.re.String()}
	if tpl.partGroup > 0 {
		ps, pe := idx[2*tpl.partGroup], idx[2*tpl.partGroup+1]
		if ps >= 0 && pe > ps {
			part := strings.ToLower(strings.TrimSpace(sent.Text[ps:pe]))
			// capture the part noun that follows the laterality token
			if rest := partAfter(sent.Text, pe); rest != "" {
				part = part + " " + rest
			}
			extra["body_part"] = part
		}
	}

	return domain.ExtractedAttribute{
		EntityID:       owner.EntityID,
		EntityName:     owner.Name,
		Type:           tpl.attr,
		RawValue:       raw,
		Value:          domain.NormalizeValue(tpl.attr, raw),
		Confidence:     conf,
		Method:         domain.MethodPattern,
		Span:           domain.Span{Start: sent.Start + vs, End: sent.Start + ve},
		Negated:        negated,
		TemporalChange: mod.TemporalChange || tpl.temporal,
		AmbiguousOwner: ambiguous,
		Extra:          extra,
	}, true
}

// markerWords guards the open \w+ value groups against swallowing a
// negation or change marker.
var markerWords = map[string]bool{
	"no": true, "not": true, "never": true, "longer": true, "still": true,
}

var partNounRe = regexp.MustCompile(`(?i)^\s*(arm|leg|hand|eye|shoulder|knee|ankle|wrist)\b`)

func partAfter(text string, from int) string {
	if m := partNounRe.FindStringSubmatch(text[from:]); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}
