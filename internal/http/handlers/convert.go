package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	neturl "net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"html2pdf/internal/config"
	"html2pdf/internal/domain"
	"html2pdf/internal/infra/chrome"
	"html2pdf/internal/infra/logging"
)

// ConvertService bundles configuration and dependencies for the
// conversion endpoint. One instance is shared by all routes so they use
// the same Chrome pool.
type ConvertService struct {
	Config *config.Config
	Redis  *redis.Client

	poolMu sync.Mutex
	pool   *chrome.Pool

	// render seams, overridable in tests
	renderInTab func(ctx context.Context, req *domain.Request, ro chrome.RenderOptions) ([]byte, error)
	renderOnce  func(req *domain.Request, ro chrome.RenderOptions, cfg config.Config) ([]byte, error)

	started time.Time
}

// NewConvertService creates a conversion service. rdb may be nil when
// the PDF cache is disabled.
func NewConvertService(cfg config.Config, rdb *redis.Client) *ConvertService {
	return &ConvertService{
		Config:      &cfg,
		Redis:       rdb,
		renderInTab: chrome.RenderInTab,
		renderOnce:  chrome.RenderOnce,
		started:     time.Now(),
	}
}

// InitPool eagerly creates and warms the Chrome pool so a broken engine
// refuses to serve instead of failing every request. No-op when the
// pool is disabled.
func (svc *ConvertService) InitPool(ctx context.Context) error {
	if svc.Config.PDF.ChromePoolSize <= 0 {
		return nil
	}
	pool, err := svc.getChromePool()
	if err != nil {
		return err
	}
	return pool.Warmup(ctx)
}

// ClosePool shuts the shared browser down. Called on graceful shutdown.
func (svc *ConvertService) ClosePool() {
	svc.poolMu.Lock()
	pool := svc.pool
	svc.poolMu.Unlock()
	if pool != nil {
		pool.Close()
	}
}

func (svc *ConvertService) getChromePool() (*chrome.Pool, error) {
	svc.poolMu.Lock()
	defer svc.poolMu.Unlock()

	if svc.Config.PDF.ChromePoolSize <= 0 {
		return nil, nil
	}
	if svc.pool != nil {
		return svc.pool, nil
	}
	pool, err := chrome.NewPool(*svc.Config)
	if err != nil {
		return nil, err
	}
	svc.pool = pool
	return svc.pool, nil
}

// HandleConvert is the conversion endpoint. Lifecycle: validate, acquire
// a tab, load content, render, emit; the tab and any temporary state are
// released on every exit path. All error conditions are decided before
// the first response byte.
func (svc *ConvertService) HandleConvert(c *fiber.Ctx) error {
	req, err := parseConvertRequest(c, *svc.Config)
	if err != nil {
		return respondError(c, err)
	}

	cacheKey := computeCacheKey(req)
	if svc.Redis != nil && svc.Config.Cache.PDFCacheEnabled {
		if cached, err := svc.getCachedPDF(c, cacheKey); err == nil && cached != nil {
			return sendPDF(c, cached, req.FileName)
		}
	}

	pdfBuf, err := svc.render(req)
	if err != nil {
		return respondError(c, err)
	}

	if svc.Config.Limits.MaxPDFBytes > 0 && len(pdfBuf) > svc.Config.Limits.MaxPDFBytes {
		return respondError(c, domain.NewError(domain.KindRenderFailed, "generated PDF exceeds the allowed size", nil))
	}

	if svc.Redis != nil && svc.Config.Cache.PDFCacheEnabled {
		svc.setCachedPDF(c, cacheKey, pdfBuf)
	}

	rid, _ := c.Locals("requestid").(string)
	logging.Info("PDF generated",
		"source", string(req.SourceType),
		"filename", req.FileName,
		"bytes", len(pdfBuf),
		"request_id", rid,
	)
	return sendPDF(c, pdfBuf, req.FileName)
}

// render runs the post-validation lifecycle: acquire a tab (pooled or
// throwaway), load + print, release. The pool path retries once after a
// browser interruption, matching a crashed shared instance.
func (svc *ConvertService) render(req *domain.Request) ([]byte, error) {
	ro := chrome.RenderOptions{
		Print:           chrome.PrintParams(req.Settings),
		NavTimeout:      time.Duration(svc.Config.PDF.NavTimeoutSecs) * time.Second,
		SettleDelay:     time.Duration(svc.Config.PDF.SettleDelayMS) * time.Millisecond,
		WaitNetworkIdle: req.Settings.WaitForDynamicContent,
	}

	pool, err := svc.getChromePool()
	if err != nil {
		return nil, domain.NewError(domain.KindFatalStartup, "conversion engine is unavailable", err)
	}
	if pool == nil {
		return svc.renderOnce(req, ro, *svc.Config)
	}

	timeout := time.Duration(svc.Config.PDF.TimeoutSecs) * time.Second

	runOnce := func() ([]byte, error) {
		acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer acquireCancel()

		tab, err := pool.Acquire(acquireCtx)
		if err != nil {
			return nil, domain.NewError(domain.KindRenderTimeout, "conversion timed out waiting for capacity", err)
		}

		var pdfBuf []byte
		var renderErr error
		func() {
			defer func() { pool.Release(tab, renderErr) }()
			ctx, cancel := context.WithTimeout(tab.Ctx, timeout)
			defer cancel()
			pdfBuf, renderErr = svc.renderInTab(ctx, req, ro)
		}()
		return pdfBuf, renderErr
	}

	pdfBuf, renderErr := runOnce()
	if renderErr != nil && chrome.IsSessionInterrupted(renderErr) {
		logging.Warn("chrome session interrupted; restarting pool and retrying once", "error", renderErr.Error())
		if restartErr := pool.Restart(); restartErr != nil {
			return nil, renderErr
		}
		return runOnce()
	}
	return pdfBuf, renderErr
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// parseConvertRequest validates raw request fields into a domain
// request. Accepts multipart, urlencoded and JSON bodies. Pure with
// respect to the engine: no session is touched until this passes.
func parseConvertRequest(c *fiber.Ctx, cfg config.Config) (*domain.Request, error) {
	typ := c.FormValue("type")
	urlStr := c.FormValue("url")
	rawSettings := c.FormValue("settings")

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var in struct {
			Type     string          `json:"type"`
			URL      string          `json:"url"`
			Settings json.RawMessage `json:"settings"`
		}
		if err := json.Unmarshal(c.Body(), &in); err != nil {
			return nil, domain.NewError(domain.KindMissingParameter, "request body is not valid JSON", err)
		}
		typ, urlStr = in.Type, in.URL
		rawSettings = settingsString(in.Settings)
	}
	settings := domain.ParseSettings(rawSettings)

	switch strings.ToLower(typ) {
	case "url":
		return parseURLRequest(c, urlStr, settings)
	case "file":
		return parseFileRequest(c, cfg, settings)
	default:
		return nil, domain.NewError(domain.KindMissingParameter, "type must be \"url\" or \"file\"", nil)
	}
}

// settingsString tolerates settings sent either as a JSON string field
// or as an inline object.
func settingsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseURLRequest(c *fiber.Ctx, urlStr string, settings domain.Settings) (*domain.Request, error) {
	if urlStr == "" {
		urlStr = c.Query("url")
	}
	if urlStr == "" {
		return nil, domain.NewError(domain.KindMissingParameter, "url is required when type is \"url\"", nil)
	}
	parsed, err := neturl.ParseRequestURI(urlStr)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domain.NewError(domain.KindInvalidURL, "url must be a valid HTTP or HTTPS address", err)
	}

	return &domain.Request{
		SourceType: domain.SourceURL,
		URL:        urlStr,
		FileName:   suggestFileName(parsed.Host),
		Settings:   settings,
	}, nil
}

// parseFileRequest takes the first uploaded file regardless of its
// multipart field name. Additional files are ignored (first-file-wins).
func parseFileRequest(c *fiber.Ctx, cfg config.Config, settings domain.Settings) (*domain.Request, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, domain.NewError(domain.KindMissingParameter, "an HTML file upload is required when type is \"file\"", err)
	}

	fh := firstFile(form)
	if fh == nil {
		return nil, domain.NewError(domain.KindMissingParameter, "an HTML file upload is required when type is \"file\"", nil)
	}

	if !isHTMLUpload(fh) {
		return nil, domain.NewError(domain.KindUnsupportedFileType, "uploaded file must be an HTML document", nil)
	}
	if cfg.Limits.MaxUploadBytes > 0 && fh.Size > int64(cfg.Limits.MaxUploadBytes) {
		return nil, domain.NewError(domain.KindPayloadTooLarge, "uploaded file exceeds the allowed size", nil)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, domain.NewError(domain.KindContentDecode, "uploaded file could not be read", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.NewError(domain.KindContentDecode, "uploaded file could not be read", err)
	}
	if len(content) == 0 {
		return nil, domain.NewError(domain.KindMissingParameter, "uploaded file is empty", nil)
	}

	return &domain.Request{
		SourceType:  domain.SourceFile,
		FileContent: content,
		FileName:    suggestFileName(fh.Filename),
		Settings:    settings,
	}, nil
}

// firstFile returns the first file part across all multipart fields.
// Field names are sorted so the choice is deterministic when a client
// sends files under several names.
func firstFile(form *multipart.Form) *multipart.FileHeader {
	keys := make([]string, 0, len(form.File))
	for k := range form.File {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, fh := range form.File[k] {
			if fh != nil {
				return fh
			}
		}
	}
	return nil
}

// isHTMLUpload accepts uploads whose content type or filename indicates HTML.
func isHTMLUpload(fh *multipart.FileHeader) bool {
	ct := strings.ToLower(fh.Header.Get("Content-Type"))
	if strings.Contains(ct, "html") {
		return true
	}
	name := strings.ToLower(fh.Filename)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

// suggestFileName derives a sanitized attachment name ending in .pdf.
func suggestFileName(source string) string {
	name := strings.TrimSpace(source)
	for _, ext := range []string{".html", ".htm"} {
		name = strings.TrimSuffix(name, ext)
	}
	name = filenameSanitizer.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document.pdf"
	}
	return name + ".pdf"
}

// sendPDF emits the success response. Headers carry the exact byte
// length; fiber writes Content-Length from the buffered body.
func sendPDF(c *fiber.Ctx, pdfBuf []byte, filename string) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Set(fiber.HeaderContentLength, strconv.Itoa(len(pdfBuf)))
	return c.Send(pdfBuf)
}
