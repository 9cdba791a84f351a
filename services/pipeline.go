package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"market-screener/models"
	"market-screener/storage"
	"market-screener/utils"
)

// ListingCollector gathers raw marketplace listings for a query.
type ListingCollector interface {
	Collect(ctx context.Context, query string) (*models.RawListingSet, error)
}

// PostCollector gathers social posts for a query.
type PostCollector interface {
	Search(ctx context.Context, query string) ([]models.SocialPost, error)
}

// Run is the state of one analysis request. It lives for a single Analyze call.
type Run struct {
	ID        string
	Query     string
	StartedAt time.Time
	notices   []string
	// transient is set when a source failed in a way a later run may not repeat.
	transient bool
}

func newRun(query string) *Run {
	return &Run{ID: uuid.NewString(), Query: query, StartedAt: time.Now().UTC()}
}

func (r *Run) notice(msg string) {
	r.notices = append(r.notices, msg)
}

// Pipeline wires collection, normalization, scoring and KPIs together.
type Pipeline struct {
	Listings   ListingCollector
	Posts      PostCollector // nil when the social API is not configured
	PostsError error         // why Posts is nil, reported with every run
	Normalizer *Normalizer
	Scorer     *SentimentScorer
	KPIs       *KPIService
	Cache      storage.ResultCache
	Sinks      []storage.ResultWriter
	Logger     *utils.Logger
}

// Analyze runs the full pipeline for query. A marketplace collection failure
// is returned as *models.CollectionError; empty sources and social API
// failures become notices on an otherwise valid result.
func (p *Pipeline) Analyze(ctx context.Context, query string) (*models.AnalysisResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.ErrEmptyQuery
	}

	if p.Cache != nil {
		cached, ok, err := p.Cache.Get(ctx, query)
		if err != nil {
			p.Logger.Warn("[pipeline] Cache lookup failed: %v", err)
		} else if ok {
			p.Logger.Info("[pipeline] Serving cached result for %q", query)
			cp := *cached
			cp.Cached = true
			return &cp, nil
		}
	}

	run := newRun(query)
	p.Logger.Info("[pipeline] Run %s started for %q", run.ID, query)

	raw, err := p.Listings.Collect(ctx, query)
	if err != nil {
		p.Logger.Error("[pipeline] Run %s: marketplace collection failed: %v", run.ID, err)
		return nil, err
	}
	listings := p.Normalizer.NormalizeAll(raw)
	if listings.Len() == 0 {
		run.notice((&models.EmptyResultError{Source: "marketplace"}).Error())
	}

	posts := p.collectPosts(ctx, run)
	scored, summary := p.Scorer.Score(posts)

	res := &models.AnalysisResult{
		RunID:      run.ID,
		Query:      query,
		Listings:   listings,
		Posts:      scored,
		Sentiment:  summary,
		KPIs:       p.KPIs.Generate(listings, summary, scored),
		Notices:    run.notices,
		StartedAt:  run.StartedAt,
		FinishedAt: time.Now().UTC(),
	}

	if p.Cache != nil && !run.transient {
		if err := p.Cache.Put(ctx, query, res); err != nil {
			p.Logger.Warn("[pipeline] Caching run %s failed: %v", run.ID, err)
		}
	}
	for _, sink := range p.Sinks {
		if err := sink.Write(ctx, res); err != nil {
			p.Logger.Error("[pipeline] Archiving run %s failed: %v", run.ID, err)
		}
	}

	p.Logger.Info("[pipeline] Run %s finished: %d listings, %d posts in %v",
		run.ID, listings.Len(), len(scored), res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return res, nil
}

// collectPosts never fails the run: a missing or broken social API leaves
// the sentiment half empty and is reported as a notice.
func (p *Pipeline) collectPosts(ctx context.Context, run *Run) []models.SocialPost {
	if p.Posts == nil {
		msg := "social sentiment unavailable"
		if p.PostsError != nil {
			msg += ": " + p.PostsError.Error()
		}
		run.notice(msg)
		return nil
	}

	posts, err := p.Posts.Search(ctx, run.Query)
	if err != nil {
		p.Logger.Warn("[pipeline] Run %s: social collection failed: %v", run.ID, err)
		run.notice("social sentiment unavailable: " + err.Error())
		run.transient = true
		return nil
	}
	if len(posts) == 0 {
		run.notice((&models.EmptyResultError{Source: "reddit"}).Error())
	}
	return posts
}

// Reset drops all cached results.
func (p *Pipeline) Reset(ctx context.Context) error {
	if p.Cache == nil {
		return nil
	}
	if err := p.Cache.Reset(ctx); err != nil {
		return err
	}
	p.Logger.Info("[pipeline] Result cache cleared")
	return nil
}

// IsCollectionFailure reports whether err means the collection mechanism broke,
// as opposed to a bad request.
func IsCollectionFailure(err error) bool {
	var ce *models.CollectionError
	return errors.As(err, &ce)
}
