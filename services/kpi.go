package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"market-screener/models"
	"market-screener/utils"
)

const unknownCategory = "unknown"

type KPIService struct {
	logger *utils.Logger
}

func NewKPIService(logger *utils.Logger) *KPIService {
	return &KPIService{logger: logger}
}

// Generate computes price and sentiment statistics. Statistics without input
// data stay nil rather than becoming zero.
func (s *KPIService) Generate(set *models.ListingSet, sentiment models.SentimentSummary, posts []models.ScoredPost) *models.KPIReport {
	report := &models.KPIReport{
		ByCondition:      make(map[string]int),
		BySellerType:     make(map[string]int),
		PriceComparison:  make([]models.ConditionPriceDiff, 0),
		SentimentCounts:  make(map[models.SentimentLabel]int),
		PostCount:        sentiment.PostCount,
		OverallSentiment: sentiment.OverallScore,
		OverallLabel:     sentiment.OverallLabel,
	}

	for _, p := range posts {
		report.SentimentCounts[p.Label]++
	}

	if set.Len() == 0 {
		return report
	}
	report.TotalListings = set.Len()

	type sums struct {
		individual, commercial float64
		nInd, nCom             int
	}
	byCondition := make(map[string]*sums)
	var prices []float64

	for _, l := range set.Listings {
		cond := unknownCategory
		if l.Condition != nil {
			cond = *l.Condition
		}
		seller := unknownCategory
		if l.SellerType != nil {
			seller = string(*l.SellerType)
		}
		report.ByCondition[cond]++
		report.BySellerType[seller]++

		if l.Price == nil {
			continue
		}
		prices = append(prices, *l.Price)

		if l.Condition == nil || l.SellerType == nil {
			continue
		}
		agg, ok := byCondition[cond]
		if !ok {
			agg = &sums{}
			byCondition[cond] = agg
		}
		switch *l.SellerType {
		case models.SellerIndividual:
			agg.individual += *l.Price
			agg.nInd++
		case models.SellerCommercial:
			agg.commercial += *l.Price
			agg.nCom++
		}
	}

	report.PricedListings = len(prices)
	if len(prices) > 0 {
		sort.Float64s(prices)
		var total float64
		for _, p := range prices {
			total += p
		}
		mean := round2(total / float64(len(prices)))
		median := round2(median(prices))
		lo, hi := prices[0], prices[len(prices)-1]
		report.MeanPrice = &mean
		report.MedianPrice = &median
		report.MinPrice = &lo
		report.MaxPrice = &hi
	}

	var diffTotal float64
	for cond, agg := range byCondition {
		if agg.nInd == 0 || agg.nCom == 0 {
			continue
		}
		indMean := agg.individual / float64(agg.nInd)
		comMean := agg.commercial / float64(agg.nCom)
		if indMean == 0 {
			continue
		}
		diff := (comMean - indMean) / indMean * 100
		diffTotal += diff
		report.PriceComparison = append(report.PriceComparison, models.ConditionPriceDiff{
			Condition:      cond,
			IndividualMean: round2(indMean),
			CommercialMean: round2(comMean),
			DiffPercent:    round2(diff),
		})
	}
	sort.Slice(report.PriceComparison, func(i, j int) bool {
		return report.PriceComparison[i].Condition < report.PriceComparison[j].Condition
	})
	if n := len(report.PriceComparison); n > 0 {
		avg := round2(diffTotal / float64(n))
		report.AvgPriceDiffPercent = &avg
	}

	s.logger.Debug("[kpi] %d listings, %d priced, %d comparable conditions",
		report.TotalListings, report.PricedListings, len(report.PriceComparison))
	return report
}

// PriceVerdict summarises which seller type is cheaper across conditions.
func PriceVerdict(r *models.KPIReport) string {
	if r == nil || r.AvgPriceDiffPercent == nil {
		return "Not enough listings from both seller types to compare prices."
	}
	d := *r.AvgPriceDiffPercent
	if d > 0 {
		return fmt.Sprintf("Prices from individual sellers are on average %.2f%% cheaper than from commercial sellers.", d)
	}
	return fmt.Sprintf("Prices from commercial sellers are on average %.2f%% cheaper than from individual sellers.", -d)
}

// Print writes the terminal report for one analysis.
func (s *KPIService) Print(w io.Writer, res *models.AnalysisResult) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	r := res.KPIs

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  MARKET SCREENER: %s\033[0m\n", truncate(res.Query, 34))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	if res.NoResults() {
		fmt.Fprintf(w, "  No results for this query.\n")
		for _, n := range res.Notices {
			fmt.Fprintf(w, "  - %s\n", n)
		}
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	pages := 0
	if res.Listings != nil {
		pages = res.Listings.Pages
	}
	fmt.Fprintf(w, "  Listings scraped : \033[1m%d\033[0m (%d pages)\n", r.TotalListings, pages)
	fmt.Fprintf(w, "  With a price     : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintf(w, "  Posts analysed   : \033[1m%d\033[0m\n", r.PostCount)
	if res.Listings != nil && res.Listings.ImageURL != "" {
		fmt.Fprintf(w, "  Product image    : %s\n", res.Listings.ImageURL)
	}
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (EUR)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.MeanPrice != nil {
		fmt.Fprintf(w, "  Mean price   : \033[1;32m%.2f\033[0m\n", *r.MeanPrice)
		fmt.Fprintf(w, "  Median price : \033[1;32m%.2f\033[0m\n", *r.MedianPrice)
		fmt.Fprintf(w, "  Range        : %.2f – %.2f\n", *r.MinPrice, *r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Seller Types by Condition\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, d := range r.PriceComparison {
		fmt.Fprintf(w, "  %-28s %8.2f vs %8.2f  (%+.1f%%)\n",
			truncate(d.Condition, 28), d.IndividualMean, d.CommercialMean, d.DiffPercent)
	}
	fmt.Fprintf(w, "  %s\n\n", PriceVerdict(r))

	fmt.Fprintf(w, "\033[1;33m  Listings by Condition\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, kv := range sortedCounts(r.ByCondition) {
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(kv.key, 28), strings.Repeat("█", min(kv.count, 20)), kv.count)
	}
	fmt.Fprintln(w)

	// Sentiment
	fmt.Fprintf(w, "\033[1;33m  Social Sentiment\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.OverallSentiment != nil {
		fmt.Fprintf(w, "  Overall score : \033[1m%.3f\033[0m (%s)\n", *r.OverallSentiment, *r.OverallLabel)
		for _, label := range []models.SentimentLabel{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative} {
			fmt.Fprintf(w, "  %-13s : %d\n", label, r.SentimentCounts[label])
		}
	} else {
		fmt.Fprintf(w, "  No posts available\n")
	}

	for _, n := range res.Notices {
		fmt.Fprintf(w, "\n  \033[33mnote:\033[0m %s", n)
	}
	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
