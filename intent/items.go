package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Confidence grades a parse result.
type Confidence string

const (
	// ConfidenceHigh means all slots filled and the item is in the catalog.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium means all slots filled with an off-catalog item, or a
	// partial parse that found a name or quantity.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow means only a unit was recognized.
	ConfidenceLow Confidence = "low"
	// ConfidenceNone means nothing usable was extracted.
	ConfidenceNone Confidence = "none"
)

// ParsedItem is the stateless result of extracting item slots from an
// utterance. Nil/empty fields mean the slot was not found.
type ParsedItem struct {
	Name       string
	Quantity   *float64
	Unit       string
	Accumulate bool
	Update     bool
	Confidence Confidence
}

// HasAny reports whether any slot was extracted.
func (p ParsedItem) HasAny() bool {
	return p.Name != "" || p.Quantity != nil || p.Unit != ""
}

// Complete reports whether all three slots were extracted.
func (p ParsedItem) Complete() bool {
	return p.Name != "" && p.Quantity != nil && p.Unit != ""
}

var (
	spaceRe = regexp.MustCompile(`\s+`)
	digitRe = regexp.MustCompile(`\d`)

	// Patterns tried in order; first quantity hit wins. Unit alternation is
	// built longest-first so "kilograms" beats "kg" inside it.
	itemPatterns = buildItemPatterns()
)

func buildItemPatterns() []*regexp.Regexp {
	units := make([]string, 0, len(UnitCanonical))
	for u := range UnitCanonical {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return len(units[i]) > len(units[j]) })
	alt := strings.Join(units, "|")
	raw := []string{
		// "5 kg rice" | "5kg rice" | "5 kilograms of rice"
		`(?P<qty>\d+(?:\.\d+)?)\s*(?P<unit>` + alt + `)\s+(?:of\s+)?(?P<n>[a-z]+)`,
		// "rice 5 kg"
		`(?P<n>[a-z]+)\s+(?P<qty>\d+(?:\.\d+)?)\s*(?P<unit>` + alt + `)`,
		// "5 kg" alone; the name comes from the slot buffer
		`(?P<qty>\d+(?:\.\d+)?)\s*(?P<unit>` + alt + `)`,
		// "rice 5"; the unit will be asked for
		`(?P<n>[a-z]+)\s+(?P<qty>\d+(?:\.\d+)?)\b`,
	}
	out := make([]*regexp.Regexp, len(raw))
	for i, r := range raw {
		out[i] = regexp.MustCompile(r)
	}
	return out
}

// ParseItem extracts item slots from an utterance. It always returns a
// result and never fails; ambiguity surfaces as lower confidence.
//
// Three tiers: regex pattern matching, then token scanning for whatever is
// still missing. The model fallback is the caller's responsibility and only
// warranted when the result is empty.
func ParseItem(raw string) ParsedItem {
	if strings.TrimSpace(raw) == "" {
		return ParsedItem{Confidence: ConfidenceNone}
	}

	text := normalize(raw)
	tokens := strings.Fields(text)

	p := ParsedItem{
		Accumulate: accumulateWords.intersects(tokens),
		Update:     updateWords.intersects(tokens),
	}

	tier1(text, &p)
	if !p.Complete() {
		tier2(tokens, &p)
	}

	switch {
	case p.Complete():
		if KnownItems.Has(p.Name) {
			p.Confidence = ConfidenceHigh
		} else {
			p.Confidence = ConfidenceMedium
		}
	case p.HasAny():
		// A lone off-catalog name is most likely transcription noise.
		if p.Name != "" && p.Quantity == nil && p.Unit == "" && !KnownItems.Has(p.Name) {
			p.Name = ""
			p.Confidence = ConfidenceNone
		} else if p.Name != "" || p.Quantity != nil {
			p.Confidence = ConfidenceMedium
		} else {
			p.Confidence = ConfidenceLow
		}
	default:
		p.Confidence = ConfidenceNone
	}

	// Sanity clamp on quantity.
	if p.Quantity != nil && (*p.Quantity <= 0 || *p.Quantity > MaxItemQuantity) {
		p.Quantity = nil
		if p.Confidence == ConfidenceHigh {
			p.Confidence = ConfidenceMedium
		}
	}

	return p
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = spaceRe.ReplaceAllString(text, " ")
	words := strings.Fields(text)
	for i, w := range words {
		if d, ok := numberWords[w]; ok {
			words[i] = d
		}
	}
	return strings.Join(words, " ")
}

func tier1(text string, p *ParsedItem) {
	for _, re := range itemPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for i, name := range re.SubexpNames() {
			if i >= len(m) || m[i] == "" {
				continue
			}
			switch name {
			case "qty":
				if p.Quantity == nil {
					if v, err := strconv.ParseFloat(m[i], 64); err == nil {
						p.Quantity = &v
					}
				}
			case "unit":
				if p.Unit == "" {
					if canon, ok := UnitCanonical[m[i]]; ok {
						p.Unit = canon
					} else {
						p.Unit = m[i]
					}
				}
			case "n":
				if p.Name == "" && validName(m[i]) {
					p.Name = m[i]
				}
			}
		}
		if p.Quantity != nil {
			return
		}
	}
}

func tier2(tokens []string, p *ParsedItem) {
	for _, tok := range tokens {
		if p.Quantity == nil {
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				p.Quantity = &v
				continue
			}
		}
		if p.Unit == "" {
			if canon, ok := UnitCanonical[tok]; ok {
				p.Unit = canon
				continue
			}
		}
		if p.Name == "" && validName(tok) {
			p.Name = tok
		}
	}
}

func validName(word string) bool {
	if len(word) < 3 {
		return false
	}
	if stopWords.Has(word) {
		return false
	}
	if _, ok := UnitCanonical[word]; ok {
		return false
	}
	if _, err := strconv.ParseFloat(word, 64); err == nil {
		return false
	}
	for _, r := range word {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
