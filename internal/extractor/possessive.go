package extractor

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"go.uber.org/zap"
)

// Resolution records how ownership of an attribute mention was decided.
// An explicit tri-state: a silent best guess is never made.
type Resolution string

const (
	ResolutionSyntactic  Resolution = "syntactic"
	ResolutionProximity  Resolution = "proximity"
	ResolutionUnresolved Resolution = "unresolved"
)

// Ownership is the resolver's verdict for one attribute token.
type Ownership struct {
	EntityID   uuid.UUID
	Resolution Resolution
}

// PossessiveResolver decides which co-occurring entity owns an attribute or
// body-part mention, preferring syntactic cues over proximity.
type PossessiveResolver struct {
	perceptionVerbs map[string]bool
	directionPreps  map[string]bool
	logger          *zap.Logger
}

func NewPossessiveResolver(logger *zap.Logger) *PossessiveResolver {
	return &PossessiveResolver{
		perceptionVerbs: map[string]bool{
			"looked": true, "look": true, "stared": true, "stare": true,
			"gazed": true, "gaze": true, "glanced": true, "glance": true,
			"peered": true, "peer": true, "watched": true, "watch": true,
		},
		directionPreps: map[string]bool{
			"at": true, "into": true, "toward": true, "towards": true, "upon": true,
		},
		logger: logger,
	}
}

var reflexives = map[string]bool{
	"himself": true, "herself": true, "themselves": true, "itself": true, "themself": true,
}

// Resolve determines the owner of the attribute token using, in order:
// appositive/modifier attachment, genitive marker, instrumental "with" mapped
// to the subject, directional preposition plus a perception verb mapped to
// the object, reflexive marker mapped to the subject, and finally proximity.
// Third-person possessives with multiple possible antecedents come back
// unresolved for the coreference collaborator to arbitrate.
func (r *PossessiveResolver) Resolve(g *domain.DepGraph, token domain.DepNode, sent domain.Sentence, mentions []domain.Mention) Ownership {
	if g != nil {
		// (1) direct appositive/modifier attachment to an entity
		if owner, ok := r.attachmentOwner(g, token, mentions); ok {
			return Ownership{EntityID: owner, Resolution: ResolutionSyntactic}
		}

		// (2) genitive marker linking the attribute to an entity
		if owner, ok, ambiguous := r.genitiveOwner(g, token, mentions); ok {
			return Ownership{EntityID: owner, Resolution: ResolutionSyntactic}
		} else if ambiguous {
			return Ownership{Resolution: ResolutionUnresolved}
		}

		// (3) instrumental "with" maps to the grammatical subject
		if r.underPrep(g, token, map[string]bool{"with": true}, nil) {
			if node, ok := g.Subject(); ok {
				if owner, ok := r.matchEntity(node, mentions); ok {
					return Ownership{EntityID: owner, Resolution: ResolutionSyntactic}
				}
			}
		}

		// (4) directional preposition + perception verb maps to the object
		if r.underPrep(g, token, r.directionPreps, r.perceptionVerbs) {
			if node, ok := g.Object(); ok {
				if owner, ok := r.matchEntity(node, mentions); ok {
					return Ownership{EntityID: owner, Resolution: ResolutionSyntactic}
				}
			}
		}

		// (5) reflexive marker maps to the subject
		if r.hasReflexive(g) {
			if node, ok := g.Subject(); ok {
				if owner, ok := r.matchEntity(node, mentions); ok {
					return Ownership{EntityID: owner, Resolution: ResolutionSyntactic}
				}
			}
		}
	}

	// (6) fallback: nearest entity by text distance
	if m, ok := nearestMention(sent.Start+token.Start, mentions); ok {
		return Ownership{EntityID: m.EntityID, Resolution: ResolutionProximity}
	}
	return Ownership{Resolution: ResolutionUnresolved}
}

// attachmentOwner looks for amod/appos/compound edges joining the attribute
// token and an entity token.
func (r *PossessiveResolver) attachmentOwner(g *domain.DepGraph, token domain.DepNode, mentions []domain.Mention) (uuid.UUID, bool) {
	check := func(id int) (uuid.UUID, bool) {
		n, ok := g.Node(id)
		if !ok {
			return uuid.Nil, false
		}
		return entityByName(n.Token, mentions)
	}
	for _, e := range g.Dependents(token.ID) {
		if e.Rel == domain.RelAppositive || e.Rel == domain.RelModifier || e.Rel == domain.RelCompound {
			if id, ok := check(e.Dep); ok {
				return id, true
			}
		}
	}
	if head, ok := g.HeadOf(token.ID); ok &&
		(head.Rel == domain.RelAppositive || head.Rel == domain.RelModifier || head.Rel == domain.RelCompound) {
		if id, ok := check(head.Head); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// genitiveOwner follows a poss edge under the attribute token. A third-person
// possessive pronoun resolves only when a single antecedent is in scope;
// otherwise it is explicitly ambiguous.
func (r *PossessiveResolver) genitiveOwner(g *domain.DepGraph, token domain.DepNode, mentions []domain.Mention) (owner uuid.UUID, ok, ambiguous bool) {
	for _, e := range g.Dependents(token.ID) {
		if e.Rel != domain.RelPossessive {
			continue
		}
		n, found := g.Node(e.Dep)
		if !found {
			continue
		}
		if id, match := entityByName(n.Token, mentions); match {
			return id, true, false
		}
		if thirdPersonPossessives[strings.ToLower(n.Token)] {
			if ids := distinctEntities(mentions); len(ids) == 1 {
				return ids[0], true, false
			}
			return uuid.Nil, false, true
		}
	}
	return uuid.Nil, false, false
}

// underPrep reports whether the token hangs under one of the given
// prepositions, optionally requiring the preposition's head verb to belong to
// the verb class.
func (r *PossessiveResolver) underPrep(g *domain.DepGraph, token domain.DepNode, preps, verbs map[string]bool) bool {
	cur := token.ID
	for hops := 0; hops < 3; hops++ {
		head, ok := g.HeadOf(cur)
		if !ok {
			return false
		}
		n, ok := g.Node(head.Head)
		if !ok {
			return false
		}
		if preps[strings.ToLower(n.Token)] {
			if verbs == nil {
				return true
			}
			verbEdge, ok := g.HeadOf(n.ID)
			if !ok {
				return false
			}
			verb, ok := g.Node(verbEdge.Head)
			return ok && verbs[strings.ToLower(verb.Token)]
		}
		cur = head.Head
	}
	return false
}

func (r *PossessiveResolver) hasReflexive(g *domain.DepGraph) bool {
	for _, n := range g.Nodes {
		if reflexives[strings.ToLower(n.Token)] {
			return true
		}
	}
	return false
}

func (r *PossessiveResolver) matchEntity(node domain.DepNode, mentions []domain.Mention) (uuid.UUID, bool) {
	if id, match := entityByName(node.Token, mentions); match {
		return id, true
	}
	// subject/object is a pronoun: resolve only if a single entity is in scope
	if ids := distinctEntities(mentions); len(ids) == 1 {
		return ids[0], true
	}
	return uuid.Nil, false
}

func entityByName(token string, mentions []domain.Mention) (uuid.UUID, bool) {
	for _, m := range mentions {
		if strings.EqualFold(m.Name, token) {
			return m.EntityID, true
		}
	}
	return uuid.Nil, false
}

func distinctEntities(mentions []domain.Mention) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, m := range mentions {
		if !seen[m.EntityID] {
			seen[m.EntityID] = true
			out = append(out, m.EntityID)
		}
	}
	return out
}
