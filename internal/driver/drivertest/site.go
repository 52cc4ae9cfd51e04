package drivertest

import (
	"sync"
	"time"

	"github.com/mrz1836/trellis/internal/driver"
)

type element struct {
	selector  string
	text      string
	hidden    bool
	visibleAt time.Time
}

type pendingValue struct {
	value     string
	appliedAt time.Time
}

// ClickHandler reacts to a click. It may change the site and may return a
// URL the page navigates to.
type ClickHandler func(s *Site) (navigate string)

// Site is the application state served on one host.
type Site struct {
	mu         sync.Mutex
	elements   []*element
	values     map[string]pendingValue
	handlers   map[string]ClickHandler
	navDelay   time.Duration
	valueDelay time.Duration
	navErr     error
	redirects  map[string]string
}

func newSite() *Site {
	return &Site{
		values:    make(map[string]pendingValue),
		handlers:  make(map[string]ClickHandler),
		redirects: make(map[string]string),
	}
}

// Show adds a visible element that starts rendering after delay.
func (s *Site) Show(selector, text string, delay time.Duration) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = append(s.elements, &element{selector: selector, text: text, visibleAt: time.Now().Add(delay)})
	return s
}

// Hidden adds an element that matches selector but is not visible.
func (s *Site) Hidden(selector, text string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = append(s.elements, &element{selector: selector, text: text, hidden: true})
	return s
}

// Remove deletes every element matching selector.
func (s *Site) Remove(selector string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.elements[:0]
	for _, el := range s.elements {
		if el.selector != selector {
			kept = append(kept, el)
		}
	}
	s.elements = kept
	return s
}

// OnClick registers the handler run when selector is clicked.
func (s *Site) OnClick(selector string, h ClickHandler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[selector] = h
	return s
}

// NavigateDelay sets how long a navigation to this site takes to settle.
func (s *Site) NavigateDelay(d time.Duration) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navDelay = d
	return s
}

// ValueDelay sets how long a typed value takes to be reflected.
func (s *Site) ValueDelay(d time.Duration) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valueDelay = d
	return s
}

// FailNavigation makes navigations to this site fail with err.
func (s *Site) FailNavigation(err error) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navErr = err
	return s
}

// Redirect makes navigations to path on this site end at to, which is a
// path on the same host or an absolute URL.
func (s *Site) Redirect(path, to string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[path] = to
	return s
}

// Value returns the value currently reflected for selector.
func (s *Site) Value(selector string) string {
	return s.value(selector)
}

func (s *Site) navigateDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navDelay
}

func (s *Site) redirect(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	to, ok := s.redirects[path]
	return to, ok
}

func (s *Site) navigateError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navErr
}

func (s *Site) query(selector string) []driver.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []driver.Element
	for _, el := range s.elements {
		if el.selector != selector || now.Before(el.visibleAt) {
			continue
		}
		out = append(out, driver.Element{Text: el.text, Visible: !el.hidden})
	}
	if v, ok := s.values[selector]; ok && !now.Before(v.appliedAt) {
		for i := range out {
			out[i].Value = v.value
		}
	}
	return out
}

func (s *Site) setValue(selector, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[selector] = pendingValue{value: value, appliedAt: time.Now().Add(s.valueDelay)}
}

func (s *Site) value(selector string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[selector]
	if !ok || time.Now().Before(v.appliedAt) {
		return ""
	}
	return v.value
}

func (s *Site) click(selector string) string {
	s.mu.Lock()
	h := s.handlers[selector]
	s.mu.Unlock()
	if h == nil {
		return ""
	}
	return h(s)
}
