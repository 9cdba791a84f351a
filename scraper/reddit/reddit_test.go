package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"market-screener/models"
	"market-screener/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, utils.LevelError) }

var testCreds = Credentials{ClientID: "id", ClientSecret: "secret", UserAgent: "screener-test/1.0"}

// fakeReddit serves a token endpoint and a search endpoint with total posts
// split into pages of the requested size.
func fakeReddit(t *testing.T, total int, searches *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})

	mux.HandleFunc("/r/all/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(searches, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("User-Agent") != testCreds.UserAgent {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		offset := 0
		if a := r.URL.Query().Get("after"); a != "" {
			offset, _ = strconv.Atoi(a[len("t3_"):])
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var resp listingResponse
		for i := offset; i < offset+limit && i < total; i++ {
			var child struct {
				Data struct {
					ID         string  `json:"id"`
					Title      string  `json:"title"`
					Selftext   string  `json:"selftext"`
					Subreddit  string  `json:"subreddit"`
					Permalink  string  `json:"permalink"`
					Score      int     `json:"score"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			}
			child.Data.ID = strconv.Itoa(i)
			child.Data.Title = r.URL.Query().Get("q") + " post " + strconv.Itoa(i)
			child.Data.Selftext = "body"
			resp.Data.Children = append(resp.Data.Children, child)
		}
		if offset+limit < total {
			resp.Data.After = "t3_" + strconv.Itoa(offset+limit)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestCollector(t *testing.T, srv *httptest.Server, opts ...Option) *Collector {
	t.Helper()
	opts = append([]Option{
		WithEndpoints(srv.URL+"/api/v1/access_token", srv.URL),
		WithRateLimit(0),
		WithRetries(1),
	}, opts...)
	c, err := NewCollector(testCreds, newTestLogger(), opts...)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func TestNewCollectorMissingCredentials(t *testing.T) {
	_, err := NewCollector(Credentials{ClientID: "id"}, newTestLogger())

	var ce *models.CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *models.CredentialError, got %v", err)
	}
	if len(ce.Missing) != 2 {
		t.Errorf("Missing: got %v, want client secret and user agent", ce.Missing)
	}
}

func TestSearchPaginatesUpToLimit(t *testing.T) {
	var searches int32
	srv := fakeReddit(t, 1000, &searches)
	c := newTestCollector(t, srv)

	posts, err := c.Search(context.Background(), "macbook")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(posts) != DefaultPostLimit {
		t.Errorf("posts: got %d, want %d", len(posts), DefaultPostLimit)
	}
	if searches != 5 {
		t.Errorf("search requests: got %d, want 5", searches)
	}
	if posts[0].Title != "macbook post 0" || posts[499].ID != "499" {
		t.Errorf("unexpected order: first %+v last %+v", posts[0], posts[499])
	}
}

func TestSearchStopsWithoutCursor(t *testing.T) {
	var searches int32
	srv := fakeReddit(t, 42, &searches)
	c := newTestCollector(t, srv)

	posts, err := c.Search(context.Background(), "ps5")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(posts) != 42 {
		t.Errorf("posts: got %d, want 42", len(posts))
	}
	if searches != 1 {
		t.Errorf("search requests: got %d, want 1", searches)
	}
}

func TestSearchCustomLimit(t *testing.T) {
	var searches int32
	srv := fakeReddit(t, 1000, &searches)
	c := newTestCollector(t, srv, WithLimit(150))

	posts, err := c.Search(context.Background(), "switch")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(posts) != 150 {
		t.Errorf("posts: got %d, want 150", len(posts))
	}
}

func TestSearchReportsCollectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := newTestCollector(t, srv)

	posts, err := c.Search(context.Background(), "x")
	if posts != nil {
		t.Errorf("expected nil posts, got %d", len(posts))
	}
	var ce *models.CollectionError
	if !errors.As(err, &ce) || ce.Step != "reddit-search" {
		t.Errorf("expected reddit-search CollectionError, got %v", err)
	}
}

// tokenOr serves a token for the OAuth endpoint and hands everything else to h.
func tokenOr(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
			return
		}
		h(w, r)
	}
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		status    int
		wantCalls int32
	}{
		{http.StatusForbidden, 1},
		{http.StatusBadRequest, 1},
		{http.StatusTooManyRequests, 3},
		{http.StatusBadGateway, 3},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(tokenOr(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			c := newTestCollector(t, srv, WithRetries(3))
			c.retry.BaseDelay = time.Millisecond

			if _, err := c.Search(context.Background(), "x"); err == nil {
				t.Fatal("expected an error")
			}
			if calls != tt.wantCalls {
				t.Errorf("requests: got %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestSearchStopsOnRepeatedCursor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(tokenOr(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"after":"t3_same","children":[{"data":{"id":"a","title":"t"}}]}}`)
	}))
	t.Cleanup(srv.Close)

	posts, err := newTestCollector(t, srv).Search(context.Background(), "loop")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 2 || len(posts) != 2 {
		t.Errorf("got %d requests and %d posts, want 2 and 2", calls, len(posts))
	}
}

func TestSearchSpacesRequests(t *testing.T) {
	var searches int32
	srv := fakeReddit(t, 300, &searches)
	c := newTestCollector(t, srv, WithRateLimit(50))

	start := time.Now()
	if _, err := c.Search(context.Background(), "spaced"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Three pages: the first request is immediate, the next two wait 50ms each.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("3 requests took %v, want at least 100ms", elapsed)
	}
}
