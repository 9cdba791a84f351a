package services

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"market-screener/models"
)

// Rule maps a literal pattern found in seller text to a category.
type Rule struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

// Vocabulary is the ordered rule set used to tag listings.
type Vocabulary struct {
	Conditions  []Rule `json:"conditions"`
	SellerTypes []Rule `json:"seller_types"`
}

// defaultConditions are the condition labels eBay.de prints in the result subtitle.
var defaultConditions = []string{
	"Neu", "Brandneu", "Neuwertig", "Sehr gut", "Gut", "Akzeptabel",
	"Neu mit Etikett", "Neu ohne Etikett", "Neu mit Fehlern",
	"Neu: Sonstige (siehe Artikelbeschreibung)", "Zertifiziert - Refurbished",
	"Neu mit Karton", "Neu ohne Karton", "Hervorragend - Refurbished",
	"Sehr gut - Refurbished", "Gut - Refurbished", "Vom Verkäufer generalüberholt",
	"Gebraucht", "Als Ersatzteil / defekt", "Repariert",
	"Gebraucht / Artikel wurde bereits benutzt", "Runderneuert", "Beschädigt",
	"Digitale Ware", "Bewertet", "Nicht bewertet",
}

// DefaultVocabulary returns the built-in eBay.de vocabulary.
func DefaultVocabulary() Vocabulary {
	conditions := make([]Rule, 0, len(defaultConditions))
	for _, c := range defaultConditions {
		conditions = append(conditions, Rule{Pattern: c, Category: c})
	}
	return Vocabulary{
		Conditions: conditions,
		SellerTypes: []Rule{
			{Pattern: "Privat", Category: string(models.SellerIndividual)},
			{Pattern: "Gewerblich", Category: string(models.SellerCommercial)},
		},
	}
}

// LoadVocabulary reads a JSON vocabulary file. An empty path yields the default.
func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: read %q: %w", path, err)
	}

	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: parse %q: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: %q: %w", path, err)
	}
	return v, nil
}

// Validate checks that every rule is usable and seller categories are known.
func (v Vocabulary) Validate() error {
	if len(v.Conditions) == 0 {
		return fmt.Errorf("no condition rules")
	}
	for i, r := range v.Conditions {
		if strings.TrimSpace(r.Pattern) == "" || r.Category == "" {
			return fmt.Errorf("condition rule %d is incomplete", i)
		}
	}
	for i, r := range v.SellerTypes {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("seller type rule %d has no pattern", i)
		}
		switch models.SellerType(r.Category) {
		case models.SellerIndividual, models.SellerCommercial:
		default:
			return fmt.Errorf("seller type rule %d: unknown category %q", i, r.Category)
		}
	}
	return nil
}

// matcher finds the leftmost rule occurrence in a text. At equal positions the
// longest pattern wins; equally long patterns keep their declared order.
type matcher struct {
	re         *regexp.Regexp
	categories map[string]string
}

func newMatcher(rules []Rule) *matcher {
	if len(rules) == 0 {
		return &matcher{}
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Pattern) > len(ordered[j].Pattern)
	})

	alts := make([]string, 0, len(ordered))
	categories := make(map[string]string, len(ordered))
	for _, r := range ordered {
		if _, dup := categories[r.Pattern]; dup {
			continue
		}
		categories[r.Pattern] = r.Category
		alts = append(alts, regexp.QuoteMeta(r.Pattern))
	}

	// Boundaries are letters/digits only so that "Gut" never matches inside "Gutschein".
	expr := `(?:^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)(?:[^\p{L}\p{N}]|$)`
	return &matcher{re: regexp.MustCompile(expr), categories: categories}
}

func (m *matcher) match(text string) (string, bool) {
	if m.re == nil {
		return "", false
	}
	sub := m.re.FindStringSubmatch(text)
	if len(sub) < 2 {
		return "", false
	}
	cat, ok := m.categories[sub[1]]
	return cat, ok
}
