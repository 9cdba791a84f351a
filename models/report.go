package models

import "time"

// ConditionPriceDiff compares mean prices of both seller types for one condition.
type ConditionPriceDiff struct {
	Condition      string  `json:"condition"`
	IndividualMean float64 `json:"individual_mean"`
	CommercialMean float64 `json:"commercial_mean"`
	DiffPercent    float64 `json:"diff_percent"`
}

// KPIReport holds the computed statistics over one run's listings and posts.
type KPIReport struct {
	TotalListings  int `json:"total_listings"`
	PricedListings int `json:"priced_listings"`

	MeanPrice   *float64 `json:"mean_price"`
	MedianPrice *float64 `json:"median_price"`
	MinPrice    *float64 `json:"min_price"`
	MaxPrice    *float64 `json:"max_price"`

	ByCondition  map[string]int `json:"by_condition"`
	BySellerType map[string]int `json:"by_seller_type"`

	PriceComparison     []ConditionPriceDiff `json:"price_comparison"`
	AvgPriceDiffPercent *float64             `json:"avg_price_diff_percent"`

	PostCount        int                    `json:"post_count"`
	OverallSentiment *float64               `json:"overall_sentiment"`
	OverallLabel     *SentimentLabel        `json:"overall_label"`
	SentimentCounts  map[SentimentLabel]int `json:"sentiment_counts"`
}

// AnalysisResult is the complete output of one collection run.
type AnalysisResult struct {
	RunID      string           `json:"run_id"`
	Query      string           `json:"query"`
	Listings   *ListingSet      `json:"listings"`
	Posts      []ScoredPost     `json:"posts"`
	Sentiment  SentimentSummary `json:"sentiment"`
	KPIs       *KPIReport       `json:"kpis"`
	Notices    []string         `json:"notices,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Cached     bool             `json:"cached"`
}

// NoResults reports whether neither the marketplace nor the social search
// produced anything for the query.
func (r *AnalysisResult) NoResults() bool {
	return r.Listings.Len() == 0 && len(r.Posts) == 0
}
