package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"market-screener/models"
	"market-screener/utils"
)

var (
	// numberRegexp captures numeric tokens including "." and "," separators.
	numberRegexp = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	// rangeRegexp detects price ranges such as "29,95 bis EUR 32,95".
	rangeRegexp = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:bis|to)(?:[^\p{L}]|$)`)
)

// Normalizer turns raw Listings into NormalizedListings.
type Normalizer struct {
	logger     *utils.Logger
	conditions *matcher
	sellers    *matcher
}

// NewNormalizer creates a Normalizer using the given vocabulary.
func NewNormalizer(vocab Vocabulary, logger *utils.Logger) *Normalizer {
	return &Normalizer{
		logger:     logger,
		conditions: newMatcher(vocab.Conditions),
		sellers:    newMatcher(vocab.SellerTypes),
	}
}

// Normalize derives typed attributes from a raw listing. Unparseable fields are nil.
func (n *Normalizer) Normalize(l models.Listing) models.NormalizedListing {
	out := models.NormalizedListing{
		Title: normaliseText(l.Title),
		Price: ParsePrice(l.RawPriceText),
	}

	seller := normaliseText(l.RawSellerText)
	if cond, ok := n.conditions.match(seller); ok {
		out.Condition = &cond
	}
	if st, ok := n.sellers.match(seller); ok {
		t := models.SellerType(st)
		out.SellerType = &t
	}
	return out
}

// NormalizeAll normalizes a RawListingSet, keeping discovery order and duplicates.
func (n *Normalizer) NormalizeAll(raw *models.RawListingSet) *models.ListingSet {
	set := &models.ListingSet{Listings: make([]models.NormalizedListing, 0)}
	if raw == nil {
		return set
	}
	set.ImageURL = raw.ImageURL
	set.Pages = raw.Pages

	unpriced := 0
	for _, l := range raw.Listings {
		nl := n.Normalize(l)
		if nl.Price == nil {
			unpriced++
		}
		set.Listings = append(set.Listings, nl)
	}

	n.logger.Info("[normalizer] Normalized %d listings (%d without a price)",
		len(set.Listings), unpriced)
	return set
}

// ParsePrice extracts a price from marketplace text.
// Examples:
//
//	"EUR 29,95"             → 29.95
//	"EUR 1.234,56"          → 1234.56
//	"29,95 bis EUR 32,95"   → 31.45 (mean of the range)
//	"Preis auf Anfrage"     → nil
func ParsePrice(raw string) *float64 {
	tokens := numberRegexp.FindAllString(raw, -1)
	if len(tokens) == 0 {
		return nil
	}

	if !rangeRegexp.MatchString(raw) {
		v, ok := parseNumber(tokens[0])
		if !ok {
			return nil
		}
		return &v
	}

	var sum float64
	count := 0
	for _, tok := range tokens {
		if v, ok := parseNumber(tok); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}

// parseNumber reads a token in German or English notation. A comma is the
// decimal mark unless a dot follows it; dots alone are thousands separators
// when every dot group has three digits, otherwise the last dot is the decimal point.
func parseNumber(tok string) (float64, bool) {
	var s string
	switch {
	case strings.Contains(tok, ",") && strings.LastIndex(tok, ".") > strings.LastIndex(tok, ","):
		// "1,234.56"
		s = strings.ReplaceAll(tok, ",", "")
	case strings.Contains(tok, ","):
		s = strings.ReplaceAll(tok, ".", "")
		if i := strings.LastIndex(s, ","); i >= 0 {
			s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
		}
	case strings.Contains(tok, "."):
		groups := strings.Split(tok, ".")
		thousands := true
		for _, g := range groups[1:] {
			if len(g) != 3 {
				thousands = false
				break
			}
		}
		if thousands {
			s = strings.Join(groups, "")
		} else {
			last := len(groups) - 1
			s = strings.Join(groups[:last], "") + "." + groups[last]
		}
	default:
		s = tok
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
