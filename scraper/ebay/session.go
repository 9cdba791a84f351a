package ebay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"market-screener/models"
	"market-screener/utils"
)

// ChromeOptions configures the headless browser used for collection.
type ChromeOptions struct {
	StartURL     string
	ChromeBin    string
	Headless     bool
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Selectors    Selectors
}

// chromeSession drives one Chrome instance through the eBay search flow.
type chromeSession struct {
	opts        ChromeOptions
	logger      *utils.Logger
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChromeSessionFactory returns a SessionFactory that starts a fresh Chrome
// process for every collection run.
func NewChromeSessionFactory(opts ChromeOptions, logger *utils.Logger) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		chromeBin := opts.ChromeBin
		if chromeBin == "" {
			chromeBin = findChromeBinary()
		}
		logger.Debug("[ebay] Using browser binary: %q", chromeBin)

		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("lang", "de-DE"),
			chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		)
		if chromeBin != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)

		// Suppress chromedp log noise
		tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

		// Starts the browser so launch failures surface here.
		if err := chromedp.Run(tabCtx); err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("launch chrome: %w", err)
		}

		return &chromeSession{
			opts:        opts,
			logger:      logger,
			ctx:         tabCtx,
			cancelAlloc: cancelAlloc,
			cancelTab:   cancelTab,
		}, nil
	}
}

func (s *chromeSession) Open(ctx context.Context) error {
	if err := s.run(ctx, chromedp.Navigate(s.opts.StartURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", s.opts.StartURL, err)
	}
	if err := s.waitFor(ctx, "start page loaded", `document.readyState === "complete"`); err != nil {
		return err
	}

	// The consent banner only shows for fresh profiles in the EU.
	present, err := s.exists(ctx, s.opts.Selectors.ConsentButton)
	if err != nil {
		return err
	}
	if present {
		if err := s.run(ctx, chromedp.Click(s.opts.Selectors.ConsentButton, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("accept consent: %w", err)
		}
		s.logger.Debug("[ebay] Consent banner accepted")
	}

	if err := s.run(ctx, network.ClearBrowserCookies()); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

func (s *chromeSession) Search(ctx context.Context, query string) error {
	sel := s.opts.Selectors.SearchInput
	if err := s.waitFor(ctx, "search box", existsJS(sel)); err != nil {
		return err
	}

	if err := s.run(ctx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, query+kb.Enter, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("type query: %w", err)
	}

	return s.waitFor(ctx, "search results",
		`location.pathname.indexOf("/sch/") !== -1 && document.readyState === "complete"`)
}

func (s *chromeSession) SelectBuyNow(ctx context.Context) error {
	sel := s.opts.Selectors.BuyNowFilter
	present, err := s.exists(ctx, sel)
	if err != nil {
		return err
	}
	if !present {
		// eBay drops the filter bar on empty result pages.
		s.logger.Warn("[ebay] Buy-now filter not found, continuing with all offers")
		return nil
	}
	return s.clickAndWaitForNavigation(ctx, sel, "buy-now results")
}

func (s *chromeSession) FirstImage(ctx context.Context) (string, error) {
	var src string
	js := fmt.Sprintf(`(function() {
		var img = document.querySelector(%q);
		if (!img) return "";
		return img.getAttribute("src") || img.getAttribute("data-src") || "";
	})()`, s.opts.Selectors.ResultImage)

	if err := s.run(ctx, chromedp.Evaluate(js, &src)); err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if src == "" {
		return "", errors.New("no result image on page")
	}
	return src, nil
}

func (s *chromeSession) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) NextPage(ctx context.Context) error {
	sel := s.opts.Selectors.NextPage
	var enabled bool
	js := fmt.Sprintf(`(function() {
		var a = document.querySelector(%q);
		return !!a && a.getAttribute("aria-disabled") !== "true";
	})()`, sel)

	if err := s.run(ctx, chromedp.Evaluate(js, &enabled)); err != nil {
		return fmt.Errorf("look up next control: %w", err)
	}
	if !enabled {
		return models.ErrNoNextPage
	}
	return s.clickAndWaitForNavigation(ctx, sel, "next results page")
}

// Close shuts the browser down. It is safe to call more than once.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelTab()
	s.cancelAlloc()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// clickAndWaitForNavigation clicks sel and polls until the URL changed and the
// new document finished loading.
func (s *chromeSession) clickAndWaitForNavigation(ctx context.Context, sel, what string) error {
	var before string
	if err := s.run(ctx, chromedp.Location(&before)); err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if err := s.run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return s.waitFor(ctx, what,
		fmt.Sprintf(`location.href !== %q && document.readyState === "complete"`, before))
}

// pollGrace lets chromedp's own polling timeout fire before the surrounding
// context deadline does.
const pollGrace = 2 * time.Second

// waitFor polls a JavaScript condition in the page until it is truthy or the
// wait timeout expires. A poll broken by a navigation is restarted in the new
// document.
func (s *chromeSession) waitFor(ctx context.Context, what, js string) error {
	deadline := time.Now().Add(s.opts.WaitTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &models.TimeoutError{Condition: what, After: s.opts.WaitTimeout}
		}

		opts := []chromedp.PollOption{chromedp.WithPollingTimeout(remaining)}
		if s.opts.PollInterval > 0 {
			opts = append(opts, chromedp.WithPollingInterval(s.opts.PollInterval))
		}
		var ok bool
		err := s.runWithin(ctx, remaining+pollGrace, chromedp.Poll(js, &ok, opts...))
		if err == nil || errors.Is(err, chromedp.ErrPollingTimeout) || ctx.Err() != nil {
			return pollError(what, s.opts.WaitTimeout, err)
		}

		s.logger.Debug("[ebay] Poll for %s interrupted: %v", what, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
}

// pollError turns chromedp's polling timeout into a *models.TimeoutError.
func pollError(what string, after time.Duration, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chromedp.ErrPollingTimeout):
		return &models.TimeoutError{Condition: what, After: after}
	default:
		return fmt.Errorf("wait for %s: %w", what, err)
	}
}

func (s *chromeSession) exists(ctx context.Context, sel string) (bool, error) {
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(existsJS(sel), &ok)); err != nil {
		return false, fmt.Errorf("query %s: %w", sel, err)
	}
	return ok, nil
}

// run executes actions on the browser tab, bounded by the wait timeout and
// aborted early when the caller's context is done.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	return s.runWithin(ctx, s.opts.WaitTimeout, actions...)
}

func (s *chromeSession) runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func existsJS(sel string) string {
	return fmt.Sprintf(`document.querySelector(%q) !== null`, sel)
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
