package driver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mrz1836/trellis/internal/logging"
	"github.com/mrz1836/trellis/internal/wait"
)

// Navigate loads path relative to the tenant's web base URL and waits until
// every until condition holds. With no conditions it waits until the browser
// reports the target location; pages that redirect should pass the condition
// that proves where they land.
func (s *Session) Navigate(ctx context.Context, path string, until ...wait.Condition) error {
	if err := s.requireUI("navigate"); err != nil {
		return err
	}
	target := s.tenant.WebURL(path)
	s.logger.Debug().Str("url", logging.SafeValue("url", target)).Msg("navigate")

	if err := s.page.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	if len(until) == 0 {
		until = []wait.Condition{s.LocationIs(target)}
	}
	for _, cond := range until {
		if err := s.Await(ctx, cond); err != nil {
			return fmt.Errorf("navigate to %s: %w", target, err)
		}
	}
	return nil
}

// OnTenantSite holds once the current URL is on the tenant's web origin,
// whatever path the application redirected to.
func (s *Session) OnTenantSite() wait.Condition {
	origin := s.tenant.BaseURLWeb
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	return wait.NewCondition("location on "+origin, func(ctx context.Context) (bool, error) {
		loc, err := s.Location(ctx)
		if err != nil {
			return false, err
		}
		return loc == origin || strings.HasPrefix(loc, origin+"/") ||
			strings.HasPrefix(loc, origin+"?") || strings.HasPrefix(loc, origin+"#"), nil
	})
}

// LocationIs holds when the current URL is target, ignoring a trailing
// slash, query string and fragment.
func (s *Session) LocationIs(target string) wait.Condition {
	want := normalizeLocation(target)
	return wait.NewCondition("location is "+want, func(ctx context.Context) (bool, error) {
		loc, err := s.Location(ctx)
		if err != nil {
			return false, err
		}
		return normalizeLocation(loc) == want, nil
	})
}

// LocationContains holds when the current URL contains fragment.
func (s *Session) LocationContains(fragment string) wait.Condition {
	return wait.NewCondition(fmt.Sprintf("location contains %q", fragment), func(ctx context.Context) (bool, error) {
		loc, err := s.Location(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(loc, fragment), nil
	})
}

func normalizeLocation(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// Location returns the current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	if err := s.requireUI("location"); err != nil {
		return "", err
	}
	return s.page.Location(ctx)
}

// Fill waits for selector to be visible, sets its value and waits until the
// page reflects the new value.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	if err := s.requireUI("fill"); err != nil {
		return err
	}
	if err := s.Await(ctx, s.Locate(selector).Visible()); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	if err := s.page.SetValue(ctx, selector, value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}

	reflected := wait.NewCondition(selector+" value reflected", func(ctx context.Context) (bool, error) {
		if err := s.ensureOpen(); err != nil {
			return false, err
		}
		got, err := s.page.Value(ctx, selector)
		if err != nil {
			return false, err
		}
		return got == value, nil
	})
	if err := s.Await(ctx, reflected); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// Click waits for selector to be visible, clicks it, then waits for every
// after condition in order. Clicks that navigate or open dialogs should pass
// the condition that proves the transition happened.
func (s *Session) Click(ctx context.Context, selector string, after ...wait.Condition) error {
	if err := s.requireUI("click"); err != nil {
		return err
	}
	if err := s.Await(ctx, s.Locate(selector).Visible()); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	if err := s.page.Click(ctx, selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	for _, cond := range after {
		if err := s.Await(ctx, cond); err != nil {
			return fmt.Errorf("after click %s: %w", selector, err)
		}
	}
	return nil
}

// AssertVisible waits until selector matches a visible element.
func (s *Session) AssertVisible(ctx context.Context, selector string) error {
	if err := s.requireUI("assert visible"); err != nil {
		return err
	}
	return s.Await(ctx, s.Locate(selector).Visible())
}

// AssertText waits until a visible element matching selector contains text.
func (s *Session) AssertText(ctx context.Context, selector, text string) error {
	if err := s.requireUI("assert text"); err != nil {
		return err
	}
	return s.Locate(selector).WaitText(ctx, text)
}

// AssertNotVisible confirms that no visible element matching selector
// contains text for the whole observation window. An empty text checks
// that selector matches no visible element at all. Seeing it at any point
// fails with ErrIsolationViolation.
func (s *Session) AssertNotVisible(ctx context.Context, selector, text string) error {
	if err := s.requireUI("assert not visible"); err != nil {
		return err
	}
	loc := s.Locate(selector)
	cond := loc.Visible()
	if text != "" {
		cond = loc.HasText(text)
	}
	return s.Hold(ctx, cond)
}
