package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

const (
	depBaseConfidence      = 0.85
	proximityOwnerPenalty  = 0.85
	unresolvedOwnerPenalty = 0.60
)

// traitNouns maps attribute-bearing tokens to the attribute type their
// modifiers describe.
var traitNouns = map[string]domain.AttributeType{
	"eyes": domain.AttrEyeColor,
	"eye":  domain.AttrEyeColor,
	"hair": domain.AttrHairColor,
}

var lateralityTokens = map[string]bool{"left": true, "right": true}

var bodyPartNouns = map[string]bool{
	"arm": true, "leg": true, "hand": true, "shoulder": true,
	"knee": true, "ankle": true, "wrist": true,
}

var bodyStateWords = map[string]bool{
	"injured": true, "broken": true, "scarred": true, "wounded": true,
	"bandaged": true, "burned": true,
}

// knownColors filters amod modifiers down to color values; "tired eyes" is not
// an eye color.
var knownColors = map[string]bool{
	"green": true, "blue": true, "brown": true, "hazel": true, "gray": true,
	"grey": true, "black": true, "amber": true, "violet": true, "dark": true,
	"red": true, "blond": true, "blonde": true, "auburn": true, "white": true,
	"silver": true, "golden": true, "chestnut": true, "raven": true, "emerald": true,
}

// DependencyExtractor walks the grammatical-relation graph of each sentence to
// find modifier/possessive/appositive links between a trait or body-part token
// and its owner. Requires the parse collaborator; without one it proposes
// nothing.
type DependencyExtractor struct {
	parser   domain.ParseProvider
	resolver *PossessiveResolver
	logger   *zap.Logger
}

func NewDependencyExtractor(parser domain.ParseProvider, resolver *PossessiveResolver, logger *zap.Logger) *DependencyExtractor {
	return &DependencyExtractor{parser: parser, resolver: resolver, logger: logger}
}

func (e *DependencyExtractor) Method() domain.Method { return domain.MethodDependency }

func (e *DependencyExtractor) Propose(ctx context.Context, region *domain.Region) ([]domain.ExtractedAttribute, error) {
	if e.parser == nil {
		return nil, nil
	}

	var out []domain.ExtractedAttribute
	var firstErr error
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

		graph, err := e.parser.Parse(ctx, sent)
		if err != nil {
			// parse failure degrades this sentence only
			if firstErr == nil {
				firstErr = fmt.Errorf("parse sentence at %d: %w", sent.Start, err)
			}
			continue
		}
		if graph == nil {
			continue
		}

		mentions := region.MentionsIn(sent)
		out = append(out, e.traitCandidates(graph, sent, mod, mentions)...)
		out = append(out, e.bodyStateCandidates(graph, sent, mod, mentions)...)
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// traitCandidates finds color modifiers attached to eye/hair tokens.
func (e *DependencyExtractor) traitCandidates(g *domain.DepGraph, sent domain.Sentence, mod Modality, mentions []domain.Mention) []domain.ExtractedAttribute {
	var out []domain.ExtractedAttribute
	for _, node := range g.Nodes {
		attr, isTrait := traitNouns[strings.ToLower(node.Token)]
		if !isTrait {
			continue
		}
		for _, edge := range g.Dependents(node.ID) {
			if edge.Rel != domain.RelModifier {
				continue
			}
			modNode, ok := g.Node(edge.Dep)
			if !ok || !knownColors[strings.ToLower(modNode.Token)] {
				continue
			}
			if cand, ok := e.build(g, node, modNode, attr, sent, mod, mentions, nil); ok {
				out = append(out, cand)
			}
		}
	}
	return out
}

// bodyStateCandidates finds state modifiers on laterality-marked body parts.
func (e *DependencyExtractor) bodyStateCandidates(g *domain.DepGraph, sent domain.Sentence, mod Modality, mentions []domain.Mention) []domain.ExtractedAttribute {
	var out []domain.ExtractedAttribute
	for _, node := range g.Nodes {
		if !bodyPartNouns[strings.ToLower(node.Token)] {
			continue
		}
		var side, state string
		var stateNode domain.DepNode
		for _, edge := range g.Dependents(node.ID) {
			if edge.Rel != domain.RelModifier && edge.Rel != domain.RelCompound {
				continue
			}
			dep, ok := g.Node(edge.Dep)
			if !ok {
				continue
			}
			tok := strings.ToLower(dep.Token)
			switch {
			case lateralityTokens[tok]:
				side = tok
			case bodyStateWords[tok]:
				state, stateNode = tok, dep
			}
		}
		if side == "" || state == "" {
			continue
		}
		extra := map[string]any{"body_part": side + " " + strings.ToLower(node.Token)}
		if cand, ok := e.build(g, node, stateNode, domain.AttrBodyState, sent, mod, mentions, extra); ok {
			out = append(out, cand)
		}
	}
	return out
}

func (e *DependencyExtractor) build(g *domain.DepGraph, trait, value domain.DepNode, attr domain.AttributeType, sent domain.Sentence, mod Modality, mentions []domain.Mention, extra map[string]any) (domain.ExtractedAttribute, bool) {
	ownership := e.resolver.Resolve(g, trait, sent, mentions)

	conf := float32(depBaseConfidence)
	ambiguous := false
	owner := ownership.EntityID
	switch ownership.Resolution {
	case ResolutionProximity:
		conf *= proximityOwnerPenalty
	case ResolutionUnresolved:
		// never silently guess: flag and defer to the coreference collaborator,
		// falling back to proximity only to keep the evidence on record
		m, ok := nearestMention(sent.Start+trait.Start, mentions)
		if !ok {
			return domain.ExtractedAttribute{}, false
		}
		owner = m.EntityID
		ambiguous = true
		conf *= unresolvedOwnerPenalty
	}

	raw := value.Token
	if extra == nil {
		extra = map[string]any{}
	}
	extra["resolution"] = string(ownership.Resolution)

	return domain.ExtractedAttribute{
		EntityID:       owner,
		Type:           attr,
		RawValue:       raw,
		Value:          domain.NormalizeValue(attr, raw),
		Confidence:     conf,
		Method:         domain.MethodDependency,
		Span:           domain.Span{Start: sent.Start + value.Start, End: sent.Start + value.Start + len(value.Token)},
		Negated:        mod.Negated,
		TemporalChange: mod.TemporalChange,
		AmbiguousOwner: ambiguous,
		Extra:          extra,
	}, true
}
