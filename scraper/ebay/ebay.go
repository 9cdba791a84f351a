package ebay

import (
	"context"
	"errors"
	"fmt"

	"market-screener/models"
	"market-screener/utils"
)

// DefaultPageCap bounds the number of result pages read per query.
const DefaultPageCap = 30

// Session is one browser session on the marketplace. Implementations wait for
// readiness themselves and report failures as errors; NextPage returns
// models.ErrNoNextPage when pagination is exhausted.
type Session interface {
	Open(ctx context.Context) error
	Search(ctx context.Context, query string) error
	SelectBuyNow(ctx context.Context) error
	FirstImage(ctx context.Context) (string, error)
	PageHTML(ctx context.Context) (string, error)
	NextPage(ctx context.Context) error
	Close() error
}

// SessionFactory starts a new browser session.
type SessionFactory func(ctx context.Context) (Session, error)

// Collector walks the marketplace result pages for a query.
type Collector struct {
	newSession SessionFactory
	selectors  Selectors
	pageCap    int
	logger     *utils.Logger
}

// NewCollector creates a Collector. A non-positive pageCap uses DefaultPageCap.
func NewCollector(factory SessionFactory, selectors Selectors, pageCap int, logger *utils.Logger) *Collector {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	return &Collector{
		newSession: factory,
		selectors:  selectors,
		pageCap:    pageCap,
		logger:     logger,
	}
}

// Collect runs one collection for query. The browser session is always
// released before Collect returns. Failures are *models.CollectionError.
func (c *Collector) Collect(ctx context.Context, query string) (*models.RawListingSet, error) {
	c.logger.Info("[ebay] Starting collection for %q (page cap %d)", query, c.pageCap)

	session, err := c.newSession(ctx)
	if err != nil {
		return nil, &models.CollectionError{Step: "start-browser", Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			c.logger.Warn("[ebay] Closing browser session: %v", cerr)
		}
	}()

	if err := session.Open(ctx); err != nil {
		return nil, &models.CollectionError{Step: "open-marketplace", Err: err}
	}
	if err := session.Search(ctx, query); err != nil {
		return nil, &models.CollectionError{Step: "submit-search", Err: err}
	}
	if err := session.SelectBuyNow(ctx); err != nil {
		return nil, &models.CollectionError{Step: "select-buy-now", Err: err}
	}

	set := &models.RawListingSet{Listings: make([]models.Listing, 0)}

	img, err := session.FirstImage(ctx)
	if err != nil {
		// A missing picture does not invalidate the listings.
		c.logger.Warn("[ebay] No product image: %v", err)
	}
	set.ImageURL = img

	for page := 1; page <= c.pageCap; page++ {
		html, err := session.PageHTML(ctx)
		if err != nil {
			return nil, &models.CollectionError{Step: fmt.Sprintf("read-page-%d", page), Err: err}
		}

		listings, err := ParseResultsPage(html, c.selectors)
		if err != nil {
			return nil, &models.CollectionError{Step: fmt.Sprintf("parse-page-%d", page), Err: err}
		}
		set.Listings = append(set.Listings, listings...)
		set.Pages = page

		c.logger.Info("[ebay] Page %d done, %d listings so far", page, len(set.Listings))

		if page == c.pageCap {
			c.logger.Info("[ebay] Page cap %d reached", c.pageCap)
			break
		}

		err = session.NextPage(ctx)
		if errors.Is(err, models.ErrNoNextPage) {
			c.logger.Debug("[ebay] No next page after page %d", page)
			break
		}
		if err != nil {
			return nil, &models.CollectionError{Step: fmt.Sprintf("next-page-%d", page+1), Err: err}
		}
	}

	c.logger.Info("[ebay] Collection complete, %d raw listings from %d pages", len(set.Listings), set.Pages)
	return set, nil
}
