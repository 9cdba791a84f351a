package services

import (
	"github.com/jonreiter/govader"

	"market-screener/models"
	"market-screener/utils"
)

const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
)

// PolarityAnalyzer returns a compound polarity score in [-1, 1] for a text.
type PolarityAnalyzer interface {
	Compound(text string) float64
}

// VaderAnalyzer scores text with the VADER lexicon.
type VaderAnalyzer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderAnalyzer loads the VADER lexicon.
func NewVaderAnalyzer() *VaderAnalyzer {
	return &VaderAnalyzer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderAnalyzer) Compound(text string) float64 {
	return v.analyzer.PolarityScores(text).Compound
}

// SentimentScorer labels social posts and aggregates their polarity.
type SentimentScorer struct {
	analyzer PolarityAnalyzer
	logger   *utils.Logger
}

// NewSentimentScorer creates a scorer backed by the given analyzer.
func NewSentimentScorer(analyzer PolarityAnalyzer, logger *utils.Logger) *SentimentScorer {
	return &SentimentScorer{analyzer: analyzer, logger: logger}
}

// Classify maps a score to a label: > 0.05 Positive, < -0.05 Negative, else Neutral.
func Classify(score float64) models.SentimentLabel {
	switch {
	case score > positiveThreshold:
		return models.SentimentPositive
	case score < negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// Score rates every post on its title and body and returns the mean as the summary.
// For no posts the summary has nil score and label.
func (s *SentimentScorer) Score(posts []models.SocialPost) ([]models.ScoredPost, models.SentimentSummary) {
	scored := make([]models.ScoredPost, 0, len(posts))
	summary := models.SentimentSummary{PostCount: len(posts)}

	if len(posts) == 0 {
		s.logger.Warn("[sentiment] No posts to score")
		return scored, summary
	}

	var total float64
	for _, p := range posts {
		score := s.analyzer.Compound(p.Title + " " + p.Body)
		total += score
		scored = append(scored, models.ScoredPost{
			SocialPost: p,
			Sentiment:  score,
			Label:      Classify(score),
		})
	}

	overall := total / float64(len(posts))
	label := Classify(overall)
	summary.OverallScore = &overall
	summary.OverallLabel = &label

	s.logger.Info("[sentiment] Scored %d posts, overall %.3f (%s)", len(posts), overall, label)
	return scored, summary
}
