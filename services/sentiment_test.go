package services

import (
	"testing"

	"market-screener/models"
)

// fixedAnalyzer returns a preset score per text.
type fixedAnalyzer map[string]float64

func (f fixedAnalyzer) Compound(text string) float64 { return f[text] }

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  models.SentimentLabel
	}{
		{0.10, models.SentimentPositive},
		{-0.10, models.SentimentNegative},
		{0.00, models.SentimentNeutral},
		{0.05, models.SentimentNeutral},
		{-0.05, models.SentimentNeutral},
		{1, models.SentimentPositive},
		{-1, models.SentimentNegative},
	}

	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%.2f) = %s; want %s", tt.score, got, tt.want)
		}
	}
}

func TestScoreAggregates(t *testing.T) {
	analyzer := fixedAnalyzer{
		"Great laptop love it": 0.8,
		"Broken screen ":       -0.4,
		"Meh it is ok":         0.2,
	}
	scorer := NewSentimentScorer(analyzer, newTestLogger())

	posts := []models.SocialPost{
		{ID: "1", Title: "Great laptop", Body: "love it"},
		{ID: "2", Title: "Broken screen", Body: ""},
		{ID: "3", Title: "Meh", Body: "it is ok"},
	}

	scored, summary := scorer.Score(posts)
	if len(scored) != 3 {
		t.Fatalf("scored: got %d, want 3", len(scored))
	}
	if scored[0].Label != models.SentimentPositive || scored[1].Label != models.SentimentNegative {
		t.Errorf("labels: got %s, %s", scored[0].Label, scored[1].Label)
	}
	if scored[2].ID != "3" {
		t.Errorf("order not preserved: %+v", scored)
	}
	if summary.PostCount != 3 {
		t.Errorf("PostCount: got %d, want 3", summary.PostCount)
	}
	if summary.OverallScore == nil || !almostEqual(*summary.OverallScore, 0.2) {
		t.Fatalf("OverallScore: got %v, want 0.2", summary.OverallScore)
	}
	if summary.OverallLabel == nil || *summary.OverallLabel != models.SentimentPositive {
		t.Errorf("OverallLabel: got %v, want Positive", summary.OverallLabel)
	}
}

func TestScoreEmpty(t *testing.T) {
	scorer := NewSentimentScorer(fixedAnalyzer{}, newTestLogger())

	scored, summary := scorer.Score(nil)
	if len(scored) != 0 {
		t.Errorf("expected no scored posts, got %d", len(scored))
	}
	if summary.OverallScore != nil || summary.OverallLabel != nil {
		t.Errorf("expected undefined aggregate, got %+v", summary)
	}
}

func TestVaderAnalyzerPolarity(t *testing.T) {
	v := NewVaderAnalyzer()

	if got := v.Compound("This phone is great, I love it!"); got <= positiveThreshold {
		t.Errorf("positive text scored %.3f", got)
	}
	if got := v.Compound("Terrible battery, awful support, I hate it."); got >= negativeThreshold {
		t.Errorf("negative text scored %.3f", got)
	}
	if got := v.Compound("The box is on the table."); Classify(got) != models.SentimentNeutral {
		t.Errorf("neutral text scored %.3f", got)
	}
}
