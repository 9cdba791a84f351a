package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"market-screener/models"
	"market-screener/utils"
)

const (
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIBase  = "https://oauth.reddit.com"

	// DefaultPostLimit caps the posts collected per query.
	DefaultPostLimit = 500
	// maxPageSize is the largest "limit" Reddit's listing endpoints accept.
	maxPageSize = 100
)

// Credentials identify the script application registered with Reddit.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// Validate reports every missing credential in one *models.CredentialError.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		missing = append(missing, "user agent")
	}
	if len(missing) > 0 {
		return &models.CredentialError{Missing: missing}
	}
	return nil
}

// Collector searches Reddit's global post index.
type Collector struct {
	http      *http.Client
	apiBase   string
	limit     int
	throttle  *rate.Limiter
	retry     *utils.RetryConfig
	logger    *utils.Logger
	userAgent string
}

// Option customises a Collector.
type Option func(*options)

type options struct {
	tokenURL    string
	apiBase     string
	limit       int
	rateLimitMs int
	maxRetries  int
	baseClient  *http.Client
}

// WithEndpoints points the collector at another token URL and API base.
func WithEndpoints(tokenURL, apiBase string) Option {
	return func(o *options) { o.tokenURL, o.apiBase = tokenURL, apiBase }
}

// WithLimit sets the maximum number of posts returned by Search.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithRateLimit sets the minimum spacing between API requests.
func WithRateLimit(ms int) Option {
	return func(o *options) { o.rateLimitMs = ms }
}

// WithRetries sets how many attempts each page request gets.
func WithRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithHTTPClient sets the client used for token and API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.baseClient = c }
}

// NewCollector validates creds and builds an OAuth2 client-credentials client.
func NewCollector(creds Credentials, logger *utils.Logger, opts ...Option) (*Collector, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	o := options{
		tokenURL:    defaultTokenURL,
		apiBase:     defaultAPIBase,
		limit:       DefaultPostLimit,
		rateLimitMs: 1000,
		maxRetries:  3,
		baseClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit <= 0 {
		o.limit = DefaultPostLimit
	}

	// Reddit rejects requests without a descriptive User-Agent, including the token request.
	base := *o.baseClient
	base.Transport = &userAgentTransport{userAgent: creds.UserAgent, next: transportOrDefault(o.baseClient.Transport)}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     o.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &base)

	return &Collector{
		http:      cc.Client(tokenCtx),
		apiBase:   strings.TrimRight(o.apiBase, "/"),
		limit:     o.limit,
		throttle:  rate.NewLimiter(rate.Every(time.Duration(o.rateLimitMs)*time.Millisecond), 1),
		retry:     &utils.RetryConfig{MaxAttempts: o.maxRetries, BaseDelay: time.Second, Logger: logger},
		logger:    logger,
		userAgent: creds.UserAgent,
	}, nil
}

type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				Subreddit  string  `json:"subreddit"`
				Permalink  string  `json:"permalink"`
				Score      int     `json:"score"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search returns up to the configured limit of posts matching query across
// all subreddits, in the order Reddit ranks them. Errors are
// *models.CollectionError.
func (c *Collector) Search(ctx context.Context, query string) ([]models.SocialPost, error) {
	posts := make([]models.SocialPost, 0)
	seen := make(map[string]struct{})
	after := ""

	for len(posts) < c.limit {
		pageSize := min(maxPageSize, c.limit-len(posts))

		var page *listingResponse
		err := c.retry.Do(ctx, "reddit-search", func() error {
			var err error
			page, err = c.fetchPage(ctx, query, after, pageSize)
			return err
		})
		if err != nil {
			return nil, &models.CollectionError{Step: "reddit-search", Err: err}
		}

		for _, child := range page.Data.Children {
			d := child.Data
			posts = append(posts, models.SocialPost{
				ID:         d.ID,
				Title:      d.Title,
				Body:       d.Selftext,
				Subreddit:  d.Subreddit,
				Permalink:  d.Permalink,
				Score:      d.Score,
				CreatedUTC: time.Unix(int64(d.CreatedUTC), 0).UTC(),
			})
			if len(posts) == c.limit {
				break
			}
		}

		c.logger.Debug("[reddit] %d posts so far for %q", len(posts), query)

		after = page.Data.After
		if _, looped := seen[after]; after == "" || looped || len(page.Data.Children) == 0 {
			break
		}
		seen[after] = struct{}{}
	}

	c.logger.Info("[reddit] Collected %d posts for %q", len(posts), query)
	return posts, nil
}

func (c *Collector) fetchPage(ctx context.Context, query, after string, limit int) (*listingResponse, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "relevance")
	q.Set("type", "link")
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/r/all/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("search: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		// Client errors other than rate limiting will not go away on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}

	var page listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &page, nil
}

type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}

func transportOrDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
