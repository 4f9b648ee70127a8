package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"html2pdf/internal/config"
	"html2pdf/internal/infra/logging"
)

// ErrPoolClosed is returned by Acquire after the pool has been shut down.
var ErrPoolClosed = errors.New("chrome pool is closed")

// Tab is one exclusively-owned page context on the shared browser.
// It is valid between Acquire and Release and never shared across requests.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Pool maintains a shared headless Chrome instance and hands out tabs
// up to a fixed capacity. Tabs are created fresh per Acquire; the
// semaphore only bounds how many are open at once.
type Pool struct {
	mu  sync.Mutex
	cfg config.Config
	sem chan struct{}

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	profileDir  string
	closed      bool
	restarts    int
	lastRestart time.Time
}

// Stats is a snapshot of pool state for the observability endpoint.
type Stats struct {
	Enabled      bool   `json:"enabled"`
	Capacity     int    `json:"capacity"`
	Idle         int    `json:"idle"`
	InUse        int    `json:"in_use"`
	PoolSizeConf int    `json:"pool_size_conf"`
	ProfileDir   string `json:"profile_dir"`
	TimeoutSecs  int    `json:"timeout_secs"`
	Restarts     int    `json:"restarts"`
	LastRestart  string `json:"last_restart,omitempty"`
}

// NewPool builds a pool of cfg.PDF.ChromePoolSize tabs. The browser
// process itself launches lazily on first use; call Warmup to force the
// launch and surface startup failures early.
func NewPool(cfg config.Config) (*Pool, error) {
	if cfg.PDF.ChromePoolSize <= 0 {
		return nil, errors.New("chrome pool disabled: pool size must be positive")
	}

	dir, err := createProfileDir(cfg)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.PDF.ChromePoolSize),
		profileDir: dir,
	}
	for i := 0; i < cfg.PDF.ChromePoolSize; i++ {
		p.sem <- struct{}{}
	}
	p.launchLocked()
	return p, nil
}

// launchLocked (re)creates the allocator and browser contexts. Callers
// hold p.mu or own p exclusively.
func (p *Pool) launchLocked() {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg, p.profileDir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.allocCancel = allocCancel
}

// allocatorOptions builds the Chrome launch flags. Sandboxing is
// disabled when configured: restrictive containers cannot host the
// Chrome sandbox, at the cost of weaker isolation against hostile HTML.
func allocatorOptions(cfg config.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.PDF.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.PDF.ChromePath))
	}
	if cfg.PDF.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// createProfileDir makes a fresh per-pool Chrome profile directory under
// cfg.PDF.UserDataDir, or the system temp dir when unset.
func createProfileDir(cfg config.Config) (string, error) {
	base := cfg.PDF.UserDataDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", fmt.Errorf("cannot create profile base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create profile dir: %w", err)
	}
	return dir, nil
}

// Warmup forces the browser process to launch so that a missing binary
// or resource exhaustion is caught at startup instead of on the first
// conversion request.
func (p *Pool) Warmup(ctx context.Context) error {
	p.mu.Lock()
	browserCtx := p.browserCtx
	p.mu.Unlock()
	if browserCtx == nil {
		return ErrPoolClosed
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("chrome launch failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chrome launch: %w", ctx.Err())
	}
}

// Acquire takes a pool slot and opens a fresh tab on the shared browser.
// It blocks until a slot frees up or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	sem := p.sem
	browserCtx := p.browserCtx
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sem:
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	return &Tab{Ctx: tabCtx, cancel: tabCancel}, nil
}

// Release closes the tab and returns its slot. Safe to call exactly
// once per acquired tab; renderErr is logged for diagnostics only.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab == nil {
		return
	}
	if tab.cancel != nil {
		tab.cancel()
	}
	if renderErr != nil && !IsSessionInterrupted(renderErr) {
		logging.Warn("tab released after render error", "error", renderErr.Error())
	}
	select {
	case p.sem <- struct{}{}:
	default:
		// capacity accounting bug if we ever get here
		logging.Error("chrome pool released more tabs than acquired")
	}
}

// Restart tears down the browser and relaunches it with a fresh profile
// dir. In-flight tabs die with the old browser; their Release still
// returns the slot.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	oldDir := p.profileDir
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return err
	}
	p.profileDir = dir
	p.launchLocked()
	p.restarts++
	p.lastRestart = time.Now()
	if oldDir != "" {
		if rmErr := os.RemoveAll(oldDir); rmErr != nil {
			logging.Warn("failed to remove old profile dir", "dir", oldDir, "error", rmErr.Error())
		}
	}
	return nil
}

// Close shuts the browser down and removes the profile dir. Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	if p.profileDir != "" {
		if err := os.RemoveAll(p.profileDir); err != nil {
			logging.Warn("failed to remove profile dir", "dir", p.profileDir, "error", err.Error())
		}
	}
}

// Stats returns a snapshot for the observability endpoint.
func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Enabled:      !p.closed,
		Capacity:     cap(p.sem),
		Idle:         len(p.sem),
		PoolSizeConf: p.cfg.PDF.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
	}
	s.InUse = s.Capacity - s.Idle
	if p.closed {
		s.Enabled = false
		s.Capacity = 0
		s.Idle = 0
		s.InUse = 0
	}
	if !p.lastRestart.IsZero() {
		s.LastRestart = p.lastRestart.Format(time.RFC3339)
	}
	return s
}

// IsSessionInterrupted reports whether err indicates the browser or tab
// went away mid-conversion (context teardown, crashed target), as
// opposed to an ordinary render failure.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "target crashed") ||
		strings.Contains(msg, "websocket: close")
}
