package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"html2pdf/internal/config"
	"html2pdf/internal/domain"
	"html2pdf/internal/infra/logging"
)

// RenderOptions bundles the translated print params with the load and
// settle behavior for one conversion.
type RenderOptions struct {
	Print           *page.PrintToPDFParams
	NavTimeout      time.Duration
	SettleDelay     time.Duration
	WaitNetworkIdle bool
}

// RenderInTab loads the request's content into an existing tab and
// prints it to PDF. ctx is the tab context, already bounded by the
// caller's render timeout. All returned errors are classified.
func RenderInTab(ctx context.Context, req *domain.Request, ro RenderOptions) ([]byte, error) {
	if err := loadContent(ctx, req, ro); err != nil {
		return nil, err
	}

	if ro.SettleDelay > 0 {
		if err := chromedp.Run(ctx, chromedp.Sleep(ro.SettleDelay)); err != nil {
			return nil, classifyRenderError(err)
		}
	}

	var pdfBuf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdfBuf, _, err = ro.Print.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, classifyRenderError(err)
	}
	if len(pdfBuf) == 0 {
		return nil, domain.NewError(domain.KindRenderFailed, "conversion produced no output", nil)
	}
	return pdfBuf, nil
}

// RenderOnce starts a throwaway Chrome instance for a single
// conversion. Used when the tab pool is disabled; the temporary profile
// dir is removed on every exit path.
func RenderOnce(req *domain.Request, ro RenderOptions, cfg config.Config) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "chromedata-*")
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "conversion failed", fmt.Errorf("cannot create temp profile dir: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			// never mask the render error with a cleanup failure
			logging.Warn("failed to remove temp profile dir", "dir", tmpDir, "error", rmErr.Error())
		}
	}()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg, tmpDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := time.Duration(cfg.PDF.TimeoutSecs) * time.Second
	chromeCtx, cancel = context.WithTimeout(chromeCtx, timeout)
	defer cancel()

	return RenderInTab(chromeCtx, req, ro)
}

// loadContent delivers the HTML into the tab: navigation for URL mode,
// direct document injection for file mode.
func loadContent(ctx context.Context, req *domain.Request, ro RenderOptions) error {
	switch req.SourceType {
	case domain.SourceURL:
		return navigate(ctx, req.URL, ro)
	case domain.SourceFile:
		return injectDocument(ctx, req.FileContent)
	default:
		return domain.NewError(domain.KindInternal, "conversion failed", fmt.Errorf("unknown source type %q", req.SourceType))
	}
}

// navigate drives the tab to url under its own timeout. With
// WaitNetworkIdle the readiness condition is the networkIdle lifecycle
// event (a quiescence window for client-rendered pages) instead of the
// basic load.
func navigate(ctx context.Context, url string, ro RenderOptions) error {
	navCtx := ctx
	if ro.NavTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, ro.NavTimeout)
		defer cancel()
	}

	var action chromedp.Action
	if ro.WaitNetworkIdle {
		action = navigateAndWaitIdle(url)
	} else {
		action = chromedp.Tasks{
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	}

	if err := chromedp.Run(navCtx, action); err != nil {
		return classifyNavigationError(err, navCtx)
	}
	return nil
}

// navigateAndWaitIdle navigates and blocks until Chrome reports the
// networkIdle lifecycle event. The listener is installed before the
// navigation starts so the event cannot be missed.
func navigateAndWaitIdle(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		idle := make(chan struct{}, 1)
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return err
		}
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// injectDocument sets the uploaded bytes as the tab's document content.
// No temporary file is staged; content goes straight over the CDP wire.
func injectDocument(ctx context.Context, content []byte) error {
	if !utf8.Valid(content) {
		return domain.NewError(domain.KindContentDecode, "uploaded file is not valid UTF-8 text", nil)
	}
	html := string(content)

	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return classifyRenderError(err)
	}
	return nil
}

// classifyNavigationError maps Chrome net error codes onto the typed
// taxonomy where the error originates, so the HTTP boundary never has
// to pattern-match raw engine text.
func classifyNavigationError(err error, navCtx context.Context) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindNavigationTimeout, "conversion timed out while loading the page", err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED"), strings.Contains(msg, "net::ERR_NAME_RESOLUTION_FAILED"):
		return domain.NewError(domain.KindNavigationFailed, "website not found", err)
	case strings.Contains(msg, "net::ERR_CONNECTION_REFUSED"), strings.Contains(msg, "net::ERR_CONNECTION_RESET"), strings.Contains(msg, "net::ERR_CONNECTION_TIMED_OUT"):
		return domain.NewError(domain.KindNavigationFailed, "the site may be down or blocking access", err)
	case strings.Contains(msg, "net::ERR_CERT"), strings.Contains(msg, "net::ERR_SSL"):
		return domain.NewError(domain.KindNavigationFailed, "could not establish a secure connection to the site", err)
	case strings.Contains(msg, "net::ERR"):
		return domain.NewError(domain.KindNavigationFailed, "could not load the page", err)
	}
	return domain.NewError(domain.KindNavigationFailed, "could not load the page", err)
}

// classifyRenderError tags print-phase failures.
func classifyRenderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindRenderTimeout, "conversion timed out", err)
	}
	return domain.NewError(domain.KindRenderFailed, "conversion failed", err)
}
