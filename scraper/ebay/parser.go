package ebay

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"market-screener/models"
)

// Selectors locates the parts of the eBay search flow. Defaults match ebay.de;
// override them when the markup changes.
type Selectors struct {
	ConsentButton string
	SearchInput   string
	BuyNowFilter  string
	ResultImage   string
	Item          string
	Title         string
	Price         string
	Seller        string
	NextPage      string
}

// DefaultSelectors returns the selectors for the current ebay.de markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ConsentButton: "#gdpr-banner-accept",
		SearchInput:   "#gh-ac",
		BuyNowFilter:  `a[href*="LH_BIN=1"]`,
		ResultImage:   "ul.srp-results li.s-item .s-item__image img",
		Item:          "li.s-item",
		Title:         ".s-item__title",
		Price:         ".s-item__price",
		Seller:        ".s-item__subtitle",
		NextPage:      "a.pagination__next",
	}
}

// placeholderTitle is the template card eBay renders before the real results.
const placeholderTitle = "Shop on eBay"

// ParseResultsPage extracts listing records from one results page. A field
// that cannot be read becomes models.NotProvided; the listing is kept.
func ParseResultsPage(html string, sel Selectors) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	listings := make([]models.Listing, 0)
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		title := cleanText(item.Find(sel.Title).First())
		if strings.EqualFold(title, placeholderTitle) {
			return
		}
		if title == "" {
			title = models.NotProvided
		}

		price := cleanText(item.Find(sel.Price).First())
		if price == "" {
			price = models.NotProvided
		}
		seller := cleanText(item.Find(sel.Seller).First())
		if seller == "" {
			seller = models.NotProvided
		}

		listings = append(listings, models.Listing{
			Title:         title,
			RawPriceText:  price,
			RawSellerText: seller,
		})
	})

	return listings, nil
}

// cleanText returns the node text with eBay's screen-reader prefixes removed.
func cleanText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	s = s.Clone()
	s.Find(".clipped, .LIGHT_HIGHLIGHT").Remove()
	return strings.Join(strings.Fields(s.Text()), " ")
}
