package models

// NotProvided is stored in place of a listing sub-field that was absent on the page.
const NotProvided = "Not provided"

// Listing holds unprocessed scraped data directly from the results page.
// It is never modified after capture; normalization produces a new value.
type Listing struct {
	Title         string `json:"title"`
	RawPriceText  string `json:"raw_price_text"`
	RawSellerText string `json:"raw_seller_text"`
}

// SellerType classifies who is offering a listing.
type SellerType string

const (
	SellerIndividual SellerType = "individual"
	SellerCommercial SellerType = "commercial"
)

// NormalizedListing is the typed view of a Listing. Nil fields could not be
// extracted from the raw text.
type NormalizedListing struct {
	Title      string      `json:"title"`
	Price      *float64    `json:"price"`
	Condition  *string     `json:"condition"`
	SellerType *SellerType `json:"seller_type"`
}

// RawListingSet is what the marketplace collector hands to the normalizer.
type RawListingSet struct {
	Listings []Listing
	ImageURL string
	Pages    int
}

// ListingSet is the normalized collection for one query, in page-discovery order.
// Duplicates across pages are kept.
type ListingSet struct {
	Listings []NormalizedListing `json:"listings"`
	ImageURL string              `json:"image_url"`
	Pages    int                 `json:"pages"`
}

// Len reports the number of listings, tolerating a nil set.
func (s *ListingSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Listings)
}
