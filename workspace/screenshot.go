package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sitesmith/core"
	"sitesmith/logging"
)

// ScreenshotOptions configures a BrowserScreenshotter.
type ScreenshotOptions struct {
	// ControlURL connects to an existing browser instead of launching one.
	ControlURL string

	// Width and Height set the viewport of the captured page.
	Width  int
	Height int

	// NavigateTimeout bounds page load before the capture.
	NavigateTimeout time.Duration

	// Logger receives structured capture records.
	Logger logging.Logger
}

// BrowserScreenshotter captures preview screenshots with a headless browser.
// The browser is launched lazily on first capture and reused afterwards.
type BrowserScreenshotter struct {
	opts ScreenshotOptions

	mu      sync.Mutex
	browser *rod.Browser
}

var _ core.Screenshotter = (*BrowserScreenshotter)(nil)

// NewBrowserScreenshotter creates a screenshotter.
func NewBrowserScreenshotter(optFns ...func(o *ScreenshotOptions)) *BrowserScreenshotter {
	opts := ScreenshotOptions{
		Width:           1280,
		Height:          800,
		NavigateTimeout: 15 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &BrowserScreenshotter{opts: opts}
}

// Capture implements core.Screenshotter, returning PNG bytes of the fully
// loaded page.
func (s *BrowserScreenshotter) Capture(ctx context.Context, url string) ([]byte, error) {
	browser, err := s.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(s.opts.NavigateTimeout)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Width,
		Height:            s.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", url, err)
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}
	s.opts.Logger.Debug("screenshot.captured", "url", url, "bytes", len(data))
	return data, nil
}

// Close shuts the browser down if one was launched.
func (s *BrowserScreenshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

func (s *BrowserScreenshotter) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	controlURL := s.opts.ControlURL
	if controlURL == "" {
		url, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	// The browser outlives individual captures; only pages are bound to the
	// caller's context.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s.browser = browser
	return browser, nil
}
