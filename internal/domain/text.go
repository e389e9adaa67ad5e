package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Manuscript is a chaptered text with stable global character offsets, supplied
// by the segmentation collaborator.
type Manuscript struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`
}

// Length returns the global offset just past the last chapter.
func (m *Manuscript) Length() int {
	if len(m.Chapters) == 0 {
		return 0
	}
	last := m.Chapters[len(m.Chapters)-1]
	return last.Offset + len(last.Text)
}

// Chapter is one independently analyzable text unit. Device marks regions the
// upstream context recognizes as a narrative device (flashback, dream), which
// bridges apparent contradictions.
type Chapter struct {
	ID     uuid.UUID `json:"id"`
	Index  int       `json:"index"`
	Offset int       `json:"offset"` // global offset of Text[0]
	Text   string    `json:"text"`
	Device bool      `json:"device,omitempty"`
}

// Region is what extractors see: a chapter's text plus its entity mentions and
// sentence segmentation in global offsets.
type Region struct {
	ManuscriptID uuid.UUID
	ChapterID    uuid.UUID
	Offset       int
	Text         string
	Device       bool
	Sentences    []Sentence
	Mentions     []Mention
}

// Sentence is a segment of a region with global offsets.
type Sentence struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// MentionsIn returns the mentions whose span lies inside the sentence.
func (r *Region) MentionsIn(s Sentence) []Mention {
	var out []Mention
	for _, m := range r.Mentions {
		if m.Start >= s.Start && m.End <= s.End {
			out = append(out, m)
		}
	}
	return out
}

// SplitSentences segments a chapter's text on terminators, keeping global
// offsets stable. Abbreviation handling is deliberately simple; segmentation
// proper belongs to the upstream collaborator and this is only a fallback.
func SplitSentences(text string, offset int) []Sentence {
	var out []Sentence
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		seg := text[start : i+1]
		if strings.TrimSpace(seg) != "" {
			out = append(out, trimmedSentence(seg, offset+start))
		}
		start = i + 1
	}
	if strings.TrimSpace(text[start:]) != "" {
		out = append(out, trimmedSentence(text[start:], offset+start))
	}
	return out
}

func trimmedSentence(seg string, start int) Sentence {
	lead := len(seg) - len(strings.TrimLeft(seg, " \n\t"))
	trimmed := strings.TrimSpace(seg)
	return Sentence{Start: start + lead, End: start + lead + len(trimmed), Text: trimmed}
}

// Grammatical relations used by the dependency extractor and the possessive
// resolver. The set mirrors what the parse collaborator emits.
const (
	RelSubject    = "nsubj"
	RelObject     = "obj"
	RelPossessive = "poss"
	RelModifier   = "amod"
	RelAppositive = "appos"
	RelPrep       = "prep"
	RelPrepObject = "pobj"
	RelCompound   = "compound"
)

// DepNode is one token of a parsed sentence. Start is the token's offset
// within the sentence.
type DepNode struct {
	ID    int    `json:"id"`
	Token string `json:"token"`
	Start int    `json:"start"`
}

// DepEdge links a dependent token to its head with a grammatical relation.
type DepEdge struct {
	Head int    `json:"head"`
	Dep  int    `json:"dep"`
	Rel  string `json:"rel"`
}

// DepGraph is the grammatical-relation graph of one sentence, produced by the
// optional parse collaborator.
type DepGraph struct {
	Nodes []DepNode `json:"nodes"`
	Edges []DepEdge `json:"edges"`
}

func (g *DepGraph) Node(id int) (DepNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return DepNode{}, false
}

// Find returns the first node whose token matches, case-insensitively.
func (g *DepGraph) Find(token string) (DepNode, bool) {
	for _, n := range g.Nodes {
		if strings.EqualFold(n.Token, token) {
			return n, true
		}
	}
	return DepNode{}, false
}

// HeadOf returns the head edge of a dependent, if any.
func (g *DepGraph) HeadOf(dep int) (DepEdge, bool) {
	for _, e := range g.Edges {
		if e.Dep == dep {
			return e, true
		}
	}
	return DepEdge{}, false
}

// Dependents returns all edges whose head is the given node.
func (g *DepGraph) Dependents(head int) []DepEdge {
	var out []DepEdge
	for _, e := range g.Edges {
		if e.Head == head {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns all edges of the given relation arriving at the node.
func (g *DepGraph) EdgesTo(dep int, rel string) []DepEdge {
	var out []DepEdge
	for _, e := range g.Edges {
		if e.Dep == dep && e.Rel == rel {
			out = append(out, e)
		}
	}
	return out
}

// Subject returns the sentence's grammatical subject node, if parsed.
func (g *DepGraph) Subject() (DepNode, bool) {
	for _, e := range g.Edges {
		if e.Rel == RelSubject {
			return g.Node(e.Dep)
		}
	}
	return DepNode{}, false
}

// Object returns the sentence's direct object node, if parsed.
func (g *DepGraph) Object() (DepNode, bool) {
	for _, e := range g.Edges {
		if e.Rel == RelObject {
			return g.Node(e.Dep)
		}
	}
	return DepNode{}, false
}
