package domain

import (
	"strconv"
	"strings"
	"sync"
)

// Comparator decides whether two normalized values of one attribute type denote
// the same thing. Incompatibility between differing surface strings that
// normalize to the same value must never be reported.
type Comparator interface {
	// Normalize maps a raw surface value to its canonical form.
	Normalize(raw string) string
	// Same reports whether two normalized values are compatible.
	Same(a, b string) bool
}

// Keyer partitions an attribute type into independent sub-streams, e.g. body
// states keyed per body part so "left leg" and "right arm" never conflict.
type Keyer interface {
	Key(raw string, extra map[string]any) string
}

// AttributeDef binds a type tag to its comparison rule.
type AttributeDef struct {
	Type       AttributeType
	Comparator Comparator
}

var (
	attrMu   sync.RWMutex
	attrDefs = map[AttributeType]AttributeDef{}
)

// RegisterAttribute adds or replaces an attribute type. New types plug in here;
// fusion and the consistency checker consult the registry and need no changes.
func RegisterAttribute(def AttributeDef) {
	attrMu.Lock()
	defer attrMu.Unlock()
	attrDefs[def.Type] = def
}

func LookupAttribute(t AttributeType) (AttributeDef, bool) {
	attrMu.RLock()
	defer attrMu.RUnlock()
	def, ok := attrDefs[t]
	return def, ok
}

// NormalizeValue normalizes raw through the type's comparator. Unregistered
// types fall back to basic folding so the pipeline degrades instead of failing.
func NormalizeValue(t AttributeType, raw string) string {
	if def, ok := LookupAttribute(t); ok {
		return def.Comparator.Normalize(raw)
	}
	return fold(raw)
}

// SameValue compares two normalized values under the type's rule.
func SameValue(t AttributeType, a, b string) bool {
	if def, ok := LookupAttribute(t); ok {
		return def.Comparator.Same(a, b)
	}
	return a == b
}

// StreamKey returns the comparator sub-key for a raw value, or "" for types
// that are not partitioned.
func StreamKey(t AttributeType, raw string, extra map[string]any) string {
	def, ok := LookupAttribute(t)
	if !ok {
		return ""
	}
	if k, ok := def.Comparator.(Keyer); ok {
		return k.Key(raw, extra)
	}
	return ""
}

func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// lexicalComparator folds case and whitespace and maps spelling variants onto
// one canonical form.
type lexicalComparator struct {
	variants map[string]string
}

func (c *lexicalComparator) Normalize(raw string) string {
	v := fold(raw)
	if canon, ok := c.variants[v]; ok {
		return canon
	}
	return v
}

func (c *lexicalComparator) Same(a, b string) bool { return a == b }

// numericComparator normalizes number words and digits to integers before
// comparison, so "one child" vs "2 children" yields 1 vs 2.
type numericComparator struct{}

var numberWords = map[string]int{
	"zero": 0, "no": 0, "one": 1, "a": 1, "an": 1, "two": 2, "three": 3,
	"four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ParseNumber resolves a number word or digit string to an integer.
func ParseNumber(raw string) (int, bool) {
	v := fold(raw)
	if n, err := strconv.Atoi(v); err == nil {
		return n, true
	}
	if n, ok := numberWords[v]; ok {
		return n, true
	}
	// compound words like "twenty-three" / "twenty three"
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '-' || r == ' ' })
	if len(parts) == 2 {
		tens, okT := numberWords[parts[0]]
		ones, okO := numberWords[parts[1]]
		if okT && okO && tens >= 20 && ones < 10 {
			return tens + ones, true
		}
	}
	return 0, false
}

func (numericComparator) Normalize(raw string) string {
	if n, ok := ParseNumber(raw); ok {
		return strconv.Itoa(n)
	}
	return fold(raw)
}

func (numericComparator) Same(a, b string) bool { return a == b }

// lateralityComparator keys body states per body part so observations about
// different limbs live in independent streams.
type lateralityComparator struct{}

var lateralityTokens = map[string]bool{"left": true, "right": true}

func (lateralityComparator) Normalize(raw string) string { return fold(raw) }

func (lateralityComparator) Same(a, b string) bool { return a == b }

func (lateralityComparator) Key(raw string, extra map[string]any) string {
	if extra != nil {
		if part, ok := extra["body_part"].(string); ok && part != "" {
			return fold(part)
		}
	}
	// fall back to any laterality token plus the following word in the raw value
	fields := strings.Fields(fold(raw))
	for i, f := range fields {
		if lateralityTokens[f] && i+1 < len(fields) {
			return f + " " + fields[i+1]
		}
	}
	return ""
}

// locationComparator folds well-known aliases before comparing.
type locationComparator struct {
	aliases map[string]string
}

func (c *locationComparator) Normalize(raw string) string {
	v := fold(strings.TrimPrefix(fold(raw), "the "))
	if canon, ok := c.aliases[v]; ok {
		return canon
	}
	return v
}

func (c *locationComparator) Same(a, b string) bool { return a == b }

func init() {
	colorVariants := map[string]string{
		"grey": "gray", "blonde": "blond", "auburn": "red",
		"raven": "black", "jet black": "black", "golden": "blond",
		"emerald": "green", "hazel": "hazel", "azure": "blue",
		"sapphire": "blue", "chestnut": "brown",
	}
	RegisterAttribute(AttributeDef{Type: AttrEyeColor, Comparator: &lexicalComparator{variants: colorVariants}})
	RegisterAttribute(AttributeDef{Type: AttrHairColor, Comparator: &lexicalComparator{variants: colorVariants}})
	RegisterAttribute(AttributeDef{Type: AttrAge, Comparator: numericComparator{}})
	RegisterAttribute(AttributeDef{Type: AttrChildCount, Comparator: numericComparator{}})
	RegisterAttribute(AttributeDef{Type: AttrBodyState, Comparator: lateralityComparator{}})
	RegisterAttribute(AttributeDef{Type: AttrLocation, Comparator: &locationComparator{aliases: map[string]string{
		"nyc":            "new york",
		"new york city":  "new york",
		"big apple":      "new york",
		"city of lights": "paris",
		"l.a.":           "los angeles",
		"la":             "los angeles",
	}}})
}
