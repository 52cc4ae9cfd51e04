package driver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// ChromeOptions configures the Chrome processes ChromeBrowser launches.
type ChromeOptions struct {
	// ExecPath overrides Chrome discovery.
	ExecPath string

	// NoSandbox disables the Chrome sandbox, needed in most containers.
	NoSandbox bool

	// WindowWidth and WindowHeight size desktop windows.
	WindowWidth  int
	WindowHeight int

	Logger zerolog.Logger
}

// ChromeBrowser implements Browser with chromedp. Every page runs in its own
// Chrome process so sessions never share cookies or storage.
type ChromeBrowser struct {
	opts ChromeOptions
}

// NewChromeBrowser creates a ChromeBrowser.
func NewChromeBrowser(opts ChromeOptions) *ChromeBrowser {
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = constants.DefaultWindowWidth
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = constants.DefaultWindowHeight
	}
	return &ChromeBrowser{opts: opts}
}

// NewPage launches Chrome for capability and applies device emulation for
// mobile capabilities. Only chromium capabilities are supported.
func (b *ChromeBrowser) NewPage(ctx context.Context, capability domain.Capability) (Page, error) {
	if engine := capability.BrowserEngine(); engine != constants.BrowserChromium {
		return nil, fmt.Errorf("%w: browser %q is not supported by the chrome driver", trellerrors.ErrInvalidCapability, engine)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", capability.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(b.opts.WindowWidth, b.opts.WindowHeight),
	)
	if b.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}

	// The page outlives the open call, so it must not inherit its cancellation.
	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, allocOpts...)
	logger := b.opts.Logger.With().Str("capability", capability.Label()).Logger()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug().Msgf(format, args...)
		}),
	)

	p := &chromePage{ctx: tabCtx, cancel: tabCancel, allocCancel: allocCancel}

	actions := []chromedp.Action{chromedp.Navigate("about:blank")}
	if d := capability.Device; d != nil {
		emulate := []chromedp.EmulateViewportOption{chromedp.EmulateMobile}
		if d.Scale > 0 {
			emulate = append(emulate, chromedp.EmulateScale(d.Scale))
		}
		if d.Touch {
			emulate = append(emulate, chromedp.EmulateTouch)
		}
		actions = append(actions, chromedp.EmulateViewport(d.Width, d.Height, emulate...))
		if d.UserAgent != "" {
			actions = append(actions, emulation.SetUserAgentOverride(d.UserAgent))
		}
	}

	// The first Run allocates the browser and ties it to the tab context;
	// running it on a derived context would kill Chrome when that ends.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = p.Close(ctx)
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	if err := p.run(ctx, actions...); err != nil {
		_ = p.Close(ctx)
		return nil, fmt.Errorf("prepare page: %w", err)
	}
	return p, nil
}

type chromePage struct {
	ctx         context.Context //nolint:containedctx // chromedp addresses the tab through its context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// run executes actions on the tab, bounded by the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// queryScript collects text, value and visibility of every match.
const queryScript = `Array.from(document.querySelectorAll(%s)).map(function (el) {
	var style = window.getComputedStyle(el);
	var rect = el.getBoundingClientRect();
	return {
		text: el.innerText || el.textContent || "",
		value: el.value === undefined ? "" : String(el.value),
		visible: style.visibility !== "hidden" && style.display !== "none" && rect.width > 0 && rect.height > 0
	};
})`

func (p *chromePage) Query(ctx context.Context, selector string) ([]Element, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	var els []Element
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(queryScript, quoted), &els)); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return els, nil
}

func (p *chromePage) SetValue(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Value(ctx context.Context, selector string) (string, error) {
	var v string
	err := p.run(ctx, chromedp.Value(selector, &v, chromedp.ByQuery))
	return v, err
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) Close(_ context.Context) error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	p.allocCancel()
	return err
}
