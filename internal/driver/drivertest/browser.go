// Package drivertest provides an in-memory driver.Browser for tests.
//
// A Browser hosts one Site per host name. Tests place elements on a site,
// optionally with a render delay, to model applications whose content
// appears asynchronously. Pages see only the site of the host they are on,
// so two tenants with different web hosts are isolated the way real
// deployments are.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mrz1836/trellis/internal/domain"
	"github.com/mrz1836/trellis/internal/driver"
)

var (
	// ErrPageClosed is returned by operations on a closed page.
	ErrPageClosed = errors.New("page closed")

	// ErrNoElement is returned when an interaction finds no visible element.
	ErrNoElement = errors.New("no visible element matches selector")
)

// Browser is an in-memory driver.Browser.
type Browser struct {
	mu         sync.Mutex
	sites      map[string]*Site
	pages      []*Page
	newPageErr error
	closeErr   error
}

// NewBrowser creates an empty Browser.
func NewBrowser() *Browser {
	return &Browser{sites: make(map[string]*Site)}
}

// Site returns the site for host, creating it on first use.
func (b *Browser) Site(host string) *Site {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sites[host]
	if !ok {
		s = newSite()
		b.sites[host] = s
	}
	return s
}

// FailNewPage makes every later NewPage call fail with err.
func (b *Browser) FailNewPage(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newPageErr = err
}

// FailClose makes every later Page.Close call return err.
func (b *Browser) FailClose(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeErr = err
}

// Pages returns every page created so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Page, len(b.pages))
	copy(out, b.pages)
	return out
}

// OpenPages counts pages that have not been closed.
func (b *Browser) OpenPages() int {
	n := 0
	for _, p := range b.Pages() {
		if !p.Closed() {
			n++
		}
	}
	return n
}

// NewPage implements driver.Browser.
func (b *Browser) NewPage(ctx context.Context, capability domain.Capability) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	p := &Page{browser: b, id: len(b.pages) + 1, capability: capability}
	b.pages = append(b.pages, p)
	return p, nil
}

// Page is an in-memory driver.Page.
type Page struct {
	browser    *Browser
	id         int
	capability domain.Capability

	mu       sync.Mutex
	previous string
	location string
	readyAt  time.Time
	closed   bool
	clicks   []string
}

// ID returns the page number, unique within its Browser.
func (p *Page) ID() int { return p.id }

// Capability returns the capability the page was created for.
func (p *Page) Capability() domain.Capability { return p.capability }

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clicks returns the selectors clicked on this page, in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) currentLocation() string {
	if time.Now().Before(p.readyAt) {
		return p.previous
	}
	return p.location
}

// site returns the site for the current location, or nil before the first navigation.
func (p *Page) site() (*Site, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPageClosed
	}
	loc := p.currentLocation()
	p.mu.Unlock()

	if loc == "" {
		return nil, nil //nolint:nilnil // blank page has no site
	}
	u, err := url.Parse(loc)
	if err != nil {
		return nil, err
	}
	return p.browser.Site(u.Host), nil
}

// Navigate implements driver.Page. The location changes after the target
// site's navigate delay, to the redirect target when the path has one.
func (p *Page) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	site := p.browser.Site(u.Host)
	if err := site.navigateError(); err != nil {
		return err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if to, ok := site.redirect(path); ok {
		ref, err := url.Parse(to)
		if err != nil {
			return err
		}
		target = u.ResolveReference(ref).String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPageClosed
	}
	p.previous = p.currentLocation()
	p.location = target
	p.readyAt = time.Now().Add(site.navigateDelay())
	return nil
}

// Location implements driver.Page.
func (p *Page) Location(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrPageClosed
	}
	return p.currentLocation(), nil
}

// Query implements driver.Page.
func (p *Page) Query(_ context.Context, selector string) ([]driver.Element, error) {
	site, err := p.site()
	if err != nil || site == nil {
		return nil, err
	}
	return site.query(selector), nil
}

// SetValue implements driver.Page.
func (p *Page) SetValue(_ context.Context, selector, value string) error {
	site, err := p.site()
	if err != nil {
		return err
	}
	if site == nil || len(site.query(selector)) == 0 {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	site.setValue(selector, value)
	return nil
}

// Value implements driver.Page.
func (p *Page) Value(_ context.Context, selector string) (string, error) {
	site, err := p.site()
	if err != nil {
		return "", err
	}
	if site == nil {
		return "", fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return site.value(selector), nil
}

// Click implements driver.Page.
func (p *Page) Click(_ context.Context, selector string) error {
	site, err := p.site()
	if err != nil {
		return err
	}
	if site == nil || !anyVisible(site.query(selector)) {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	p.mu.Unlock()

	if nav := site.click(selector); nav != "" {
		return p.Navigate(context.Background(), nav)
	}
	return nil
}

// Close implements driver.Page.
func (p *Page) Close(_ context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return p.browser.closeErr
}

func anyVisible(els []driver.Element) bool {
	for _, el := range els {
		if el.Visible {
			return true
		}
	}
	return false
}
