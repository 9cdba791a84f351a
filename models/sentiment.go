package models

import "time"

// SocialPost is a discussion post as returned by the social search API.
type SocialPost struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Subreddit  string    `json:"subreddit,omitempty"`
	Permalink  string    `json:"permalink,omitempty"`
	Score      int       `json:"score"`
	CreatedUTC time.Time `json:"created_utc"`
}

// SentimentLabel is the three-way polarity class.
type SentimentLabel string

const (
	SentimentNegative SentimentLabel = "Negative"
	SentimentNeutral  SentimentLabel = "Neutral"
	SentimentPositive SentimentLabel = "Positive"
)

// ScoredPost is a SocialPost with its compound score in [-1, 1] and label.
type ScoredPost struct {
	SocialPost
	Sentiment float64        `json:"sentiment"`
	Label     SentimentLabel `json:"label"`
}

// SentimentSummary aggregates the scored posts of one run.
// OverallScore and OverallLabel are nil when no posts were scored.
type SentimentSummary struct {
	PostCount    int             `json:"post_count"`
	OverallScore *float64        `json:"overall_score"`
	OverallLabel *SentimentLabel `json:"overall_label"`
}
